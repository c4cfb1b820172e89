package stripewebhook

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/manafoundation/wishlist-backend/internal/checkout"
	"github.com/manafoundation/wishlist-backend/internal/funding"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
	pkgerrors "github.com/manafoundation/wishlist-backend/pkg/errors"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
)

type fundingHandler interface {
	HandleCaptured(ctx context.Context, event funding.CapturedEvent) (*funding.Result, error)
}

// Service translates raw Stripe events into typed donation intents and hands
// captured payments to the funding state machine. Unrecognized event types
// are accepted and ignored.
type Service struct {
	funding fundingHandler
	logg    *logger.Logger
}

func NewService(handler fundingHandler, logg *logger.Logger) (*Service, error) {
	if handler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "funding handler required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{funding: handler, logg: logg}, nil
}

// HandleEvent processes one verified webhook event. The returned result is
// nil for event types that carry no captured payment.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (*funding.Result, error) {
	if event == nil || event.Data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithProviderEventID(ctx, string(event.ID))

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			// Async payment methods complete later; the follow-up event
			// carries the capture.
			s.logg.Info(ctx, "checkout session completed without capture, waiting for async payment")
			return nil, nil
		}
		captured, err := s.decodeIntent(event, &session)
		if err != nil {
			return nil, err
		}
		return s.funding.HandleCaptured(ctx, captured)

	case stripe.EventTypeCheckoutSessionExpired:
		s.logg.Info(ctx, "checkout session expired")
		return nil, nil

	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		s.logg.Warn(ctx, "async payment failed for checkout session")
		return nil, nil

	default:
		return nil, nil
	}
}

// decodeIntent validates the loosely typed metadata bag into one of the
// closed set of donation intents before any business logic runs.
func (s *Service) decodeIntent(event *stripe.Event, session *stripe.CheckoutSession) (funding.CapturedEvent, error) {
	var captured funding.CapturedEvent

	if session.ID == "" {
		return captured, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	meta := session.Metadata
	kind, err := enums.ParseDonationKind(meta[checkout.MetaKind])
	if err != nil {
		return captured, pkgerrors.New(pkgerrors.CodeValidation, "session metadata has no recognizable donation kind")
	}

	captured = funding.CapturedEvent{
		SessionID:   session.ID,
		Kind:        kind,
		AmountCents: session.AmountTotal,
		ItemTitle:   meta[checkout.MetaItemTitle],
		DonorEmail:  meta[checkout.MetaDonorEmail],
		DonorName:   meta[checkout.MetaDonorName],
		OccurredAt:  time.Unix(event.Created, 0).UTC(),
	}

	if captured.DonorEmail == "" && session.CustomerDetails != nil {
		captured.DonorEmail = session.CustomerDetails.Email
	}
	if captured.DonorName == "" && session.CustomerDetails != nil {
		captured.DonorName = session.CustomerDetails.Name
	}
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		captured.PaymentIntentID = &session.PaymentIntent.ID
	}
	if session.Customer != nil && session.Customer.ID != "" {
		captured.CustomerID = &session.Customer.ID
	}

	switch kind {
	case enums.DonationKindUnitPurchase, enums.DonationKindPoolContribution:
		itemID, parseErr := uuid.Parse(meta[checkout.MetaItemID])
		if parseErr != nil {
			return captured, pkgerrors.New(pkgerrors.CodeValidation, "session metadata item id is not a uuid")
		}
		captured.ItemID = &itemID
	}

	if kind == enums.DonationKindUnitPurchase {
		qty, parseErr := strconv.ParseInt(meta[checkout.MetaQuantity], 10, 64)
		if parseErr != nil || qty < 1 {
			return captured, pkgerrors.New(pkgerrors.CodeValidation, "session metadata quantity is invalid")
		}
		captured.Quantity = qty
	}

	if kind == enums.DonationKindGeneralGift {
		if raw := meta[checkout.MetaCampaignID]; raw != "" {
			campaignID, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				return captured, pkgerrors.New(pkgerrors.CodeValidation, "session metadata campaign id is not a uuid")
			}
			captured.CampaignID = &campaignID
		}
	}

	return captured, nil
}
