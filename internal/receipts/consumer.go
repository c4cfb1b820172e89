package receipts

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/manafoundation/wishlist-backend/pkg/enums"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
	"github.com/manafoundation/wishlist-backend/pkg/outbox"
	"github.com/manafoundation/wishlist-backend/pkg/outbox/idempotency"
	"github.com/manafoundation/wishlist-backend/pkg/outbox/payloads"
)

const receiptConsumer = "donation-receipts"

type ledgerStore interface {
	MarkReceiptSent(ctx context.Context, id uuid.UUID) (bool, error)
}

// Consumer watches domain events and turns receipt_pending entries into
// dispatcher calls. Failures nack the message and clear the idempotency
// marker; funding state is never touched.
type Consumer struct {
	ledger       ledgerStore
	dispatcher   Dispatcher
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a donation receipt consumer.
func NewConsumer(ledger ledgerStore, dispatcher Dispatcher, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		ledger:       ledger,
		dispatcher:   dispatcher,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventReceiptPending) {
		c.logg.Info(logCtx, "skipping non-receipt event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, receiptConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload payloads.ReceiptPendingEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, receiptConsumer, eventID)
		return processResult{nack: true}
	}

	logCtx = c.logg.WithDonationID(logCtx, payload.DonationID.String())
	if err := c.handleReceipt(ctx, payload, logCtx); err != nil {
		c.logg.Error(logCtx, "receipt handling failed", err)
		_ = c.idempotency.Delete(ctx, receiptConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handleReceipt(ctx context.Context, payload payloads.ReceiptPendingEvent, logCtx context.Context) error {
	if payload.DonationID == uuid.Nil {
		return fmt.Errorf("donation id missing")
	}
	if payload.DonorEmail == "" {
		// Anonymous donation, nothing to send.
		c.logg.Info(logCtx, "no donor email, skipping receipt")
		return nil
	}

	if err := c.dispatcher.Dispatch(ctx, payload); err != nil {
		return fmt.Errorf("dispatch receipt: %w", err)
	}

	flipped, err := c.ledger.MarkReceiptSent(ctx, payload.DonationID)
	if err != nil {
		return fmt.Errorf("mark receipt sent: %w", err)
	}
	if !flipped {
		c.logg.Info(logCtx, "receipt already marked sent")
		return nil
	}
	c.logg.Info(logCtx, "receipt sent")
	return nil
}
