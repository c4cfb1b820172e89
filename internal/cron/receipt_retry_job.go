package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
	"github.com/manafoundation/wishlist-backend/pkg/metrics"
	"github.com/manafoundation/wishlist-backend/pkg/outbox"
	"github.com/manafoundation/wishlist-backend/pkg/outbox/payloads"
)

const (
	receiptRetryAge   = 6 * time.Hour
	receiptRetryBatch = 100
)

type unreceiptedLister interface {
	ListUnreceipted(ctx context.Context, olderThan time.Time, limit int) ([]models.Donation, error)
}

type receiptEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ReceiptRetryJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Ledger  unreceiptedLister
	Outbox  receiptEmitter
	Metrics *metrics.CronJobMetrics
	Age     time.Duration
	Batch   int
}

// NewReceiptRetryJob re-emits receipt_pending events for ledger entries whose
// receipt flag never flipped. Delivery stays at-least-once: a retry racing the
// original event can produce a duplicate email, never a lost one.
func NewReceiptRetryJob(params ReceiptRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	age := params.Age
	if age <= 0 {
		age = receiptRetryAge
	}
	batch := params.Batch
	if batch <= 0 {
		batch = receiptRetryBatch
	}
	return &receiptRetryJob{
		logg:    params.Logger,
		db:      params.DB,
		ledger:  params.Ledger,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		age:     age,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type receiptRetryJob struct {
	logg    *logger.Logger
	db      txRunner
	ledger  unreceiptedLister
	outbox  receiptEmitter
	metrics *metrics.CronJobMetrics
	age     time.Duration
	batch   int
	now     func() time.Time
}

func (j *receiptRetryJob) Name() string { return "receipt-retry" }

func (j *receiptRetryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.age)
	stale, err := j.ledger.ListUnreceipted(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list unreceipted: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	var emitted int64
	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, donation := range stale {
			event := outbox.DomainEvent{
				EventType:     enums.EventReceiptPending,
				AggregateType: enums.AggregateDonation,
				AggregateID:   donation.ID,
				Source:        "receipt-retry",
				Data: payloads.ReceiptPendingEvent{
					DonationID:  donation.ID,
					Kind:        donation.Kind,
					DonorEmail:  donation.DonorEmail,
					DonorName:   donation.DonorName,
					AmountCents: donation.AmountCents,
					ItemTitle:   derefString(donation.ItemTitle),
					Program:     donation.Program,
				},
			}
			if err := j.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
			emitted++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("receipt retry: %w", err)
	}
	j.metrics.AddRows(j.Name(), emitted)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"reemitted": emitted,
	})
	j.logg.Info(logCtx, "stale receipts re-queued")
	return nil
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
