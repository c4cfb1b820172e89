package funding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/manafoundation/wishlist-backend/internal/catalog"
	"github.com/manafoundation/wishlist-backend/internal/donors"
	"github.com/manafoundation/wishlist-backend/pkg/config"
	"github.com/manafoundation/wishlist-backend/pkg/db"
	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
	pkgerrors "github.com/manafoundation/wishlist-backend/pkg/errors"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
	"github.com/manafoundation/wishlist-backend/pkg/outbox"
	"github.com/manafoundation/wishlist-backend/pkg/outbox/payloads"
)

const eventSource = "funding"

// errStaleCounters means a concurrent transaction advanced the item counters
// between our read and write; the whole read-modify-write is retried.
var errStaleCounters = errors.New("item counters changed concurrently")

// errItemVanished aborts the funding transaction when the referenced item no
// longer exists; the caller escalates to a reconciliation gap.
var errItemVanished = errors.New("referenced item vanished")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type itemStore interface {
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*models.FundableItem, error)
	ApplyFundingTx(tx *gorm.DB, item *models.FundableItem, prev catalog.CounterSnapshot) (bool, error)
}

type donationStore interface {
	InsertTx(tx *gorm.DB, donation *models.Donation) error
	FindByStripeSessionID(ctx context.Context, sessionID string) (*models.Donation, error)
}

type donorStore interface {
	RecordContributionTx(tx *gorm.DB, c donors.Contribution) (*models.Donor, error)
}

type campaignStore interface {
	AddRaisedTx(tx *gorm.DB, id uuid.UUID, amountCents int64) error
}

type sideStore interface {
	InsertOverfundingNoteTx(tx *gorm.DB, note *models.OverfundingNote) error
	RecordGap(ctx context.Context, gap *models.ReconciliationGap) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CapturedEvent is the validated payment capture handed in from the webhook
// boundary. SessionID doubles as the idempotency key.
type CapturedEvent struct {
	SessionID       string
	Kind            enums.DonationKind
	AmountCents     int64
	Quantity        int64
	ItemID          *uuid.UUID
	ItemTitle       string
	DonorEmail      string
	DonorName       string
	CampaignID      *uuid.UUID
	PaymentIntentID *string
	CustomerID      *string
	OccurredAt      time.Time
}

// Result reports what one capture did. Duplicate means the event had already
// been applied and nothing changed.
type Result struct {
	DonationID  uuid.UUID
	Duplicate   bool
	NewlyFunded bool
}

// Service is the payment event handler: it owns the transition from "payment
// captured" to "counters updated + ledger entry created".
type Service interface {
	HandleCaptured(ctx context.Context, event CapturedEvent) (*Result, error)
}

type service struct {
	tx        txRunner
	items     itemStore
	donations donationStore
	donors    donorStore
	campaigns campaignStore
	side      sideStore
	outbox    outboxEmitter
	funding   config.FundingConfig
	logg      *logger.Logger
}

// NewService wires the payment event handler.
func NewService(
	tx txRunner,
	items itemStore,
	donations donationStore,
	donorRepo donorStore,
	campaignRepo campaignStore,
	side sideStore,
	emitter outboxEmitter,
	funding config.FundingConfig,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if items == nil {
		return nil, fmt.Errorf("item store required")
	}
	if donations == nil {
		return nil, fmt.Errorf("donation store required")
	}
	if donorRepo == nil {
		return nil, fmt.Errorf("donor store required")
	}
	if campaignRepo == nil {
		return nil, fmt.Errorf("campaign store required")
	}
	if side == nil {
		return nil, fmt.Errorf("side store required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if funding.MaxTxAttempts <= 0 {
		funding.MaxTxAttempts = 4
	}
	if funding.RetryBaseBackoff <= 0 {
		funding.RetryBaseBackoff = 50 * time.Millisecond
	}
	return &service{
		tx:        tx,
		items:     items,
		donations: donations,
		donors:    donorRepo,
		campaigns: campaignRepo,
		side:      side,
		outbox:    emitter,
		funding:   funding,
		logg:      logg,
	}, nil
}

func (s *service) HandleCaptured(ctx context.Context, event CapturedEvent) (*Result, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"session_id": event.SessionID,
		"kind":       string(event.Kind),
	})

	// Fast path: a ledger row for this session means the event was already
	// applied in full.
	existing, err := s.donations.FindByStripeSessionID(ctx, event.SessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logg.Info(ctx, "duplicate payment event skipped")
		return &Result{DonationID: existing.ID, Duplicate: true}, nil
	}

	backoff := retry.WithMaxRetries(uint64(s.funding.MaxTxAttempts-1),
		retry.NewExponential(s.funding.RetryBaseBackoff))

	var result *Result
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, attemptErr := s.attempt(ctx, event)
		if attemptErr != nil {
			if isRetryableConflict(attemptErr) {
				return retry.RetryableError(attemptErr)
			}
			return attemptErr
		}
		result = r
		return nil
	})
	if err != nil {
		if isRetryableConflict(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeTransientConflict, err,
				"funding transaction kept conflicting, redeliver the event")
		}
		return nil, err
	}

	if result.Duplicate {
		s.logg.Info(ctx, "duplicate payment event skipped")
	} else {
		s.logg.Info(s.logg.WithDonationID(ctx, result.DonationID.String()), "payment event applied")
	}
	return result, nil
}

// attempt runs one full funding transaction. Everything inside WithTx commits
// or rolls back together; the reconciliation gap is the only write performed
// outside it, precisely because it must survive the rollback.
func (s *service) attempt(ctx context.Context, event CapturedEvent) (*Result, error) {
	donationID := uuid.New()
	result := &Result{DonationID: donationID}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		donation := s.buildDonation(donationID, event)
		var fundedItem *models.FundableItem

		switch event.Kind {
		case enums.DonationKindUnitPurchase, enums.DonationKindPoolContribution:
			item, err := s.items.FindByIDTx(tx, *event.ItemID)
			if err != nil {
				return err
			}
			if item == nil {
				return errItemVanished
			}
			donation.Program = item.Program
			if donation.ItemTitle == nil || *donation.ItemTitle == "" {
				donation.ItemTitle = &item.Title
			}

			crossed, err := s.applyItemFunding(ctx, tx, item, donationID, event)
			if err != nil {
				return err
			}
			result.NewlyFunded = crossed
			if crossed {
				fundedItem = item
			}

		case enums.DonationKindGeneralGift:
			if event.CampaignID != nil {
				donation.CampaignID = event.CampaignID
				if err := s.campaigns.AddRaisedTx(tx, *event.CampaignID, event.AmountCents); err != nil {
					return err
				}
			}
		}

		if err := s.donations.InsertTx(tx, donation); err != nil {
			return err
		}

		if _, err := s.donors.RecordContributionTx(tx, donors.Contribution{
			Name:        event.DonorName,
			Email:       event.DonorEmail,
			Kind:        event.Kind,
			AmountCents: event.AmountCents,
			OccurredAt:  event.OccurredAt,
		}); err != nil {
			return err
		}

		if err := s.emitDonationEvents(ctx, tx, donation); err != nil {
			return err
		}
		if fundedItem != nil {
			return s.emitFullyFunded(ctx, tx, fundedItem, donationID)
		}
		return nil
	})

	if txErr == nil {
		return result, nil
	}

	if db.IsUniqueViolation(txErr, "stripe_session_id") {
		existing, lookupErr := s.donations.FindByStripeSessionID(ctx, event.SessionID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing != nil {
			return &Result{DonationID: existing.ID, Duplicate: true}, nil
		}
		return nil, txErr
	}

	if errors.Is(txErr, errItemVanished) {
		return nil, s.escalateGap(ctx, event)
	}

	return nil, txErr
}

// applyItemFunding mutates the item counters for one donation and reports
// whether this donation was the first to cross the funding goal. Crossing is
// judged against the pre-write counters so only one of two concurrent
// crossing writes performs the flagging side effect.
func (s *service) applyItemFunding(ctx context.Context, tx *gorm.DB, item *models.FundableItem, donationID uuid.UUID, event CapturedEvent) (bool, error) {
	prev := catalog.Snapshot(item)
	wasFunded := catalog.IsFullyFunded(item)
	crossed := false

	switch event.Kind {
	case enums.DonationKindUnitPurchase:
		item.QuantityFunded += int(event.Quantity)

	case enums.DonationKindPoolContribution:
		item.PoolFundedCents += event.AmountCents
		item.PoolContributorCount++

		goal := catalog.PoolGoal(item)
		if goal > 0 && prev.PoolFundedCents < goal && item.PoolFundedCents >= goal {
			now := event.OccurredAt
			if now.IsZero() {
				now = time.Now().UTC()
			}
			item.PoolCompletedAt = &now
			if excess := item.PoolFundedCents - goal; excess > 0 {
				note := &models.OverfundingNote{
					ItemID:      item.ID,
					ItemTitle:   item.Title,
					DonationID:  &donationID,
					ExcessCents: excess,
				}
				if err := s.side.InsertOverfundingNoteTx(tx, note); err != nil {
					return false, err
				}
			}
		}
	}

	if !wasFunded && catalog.IsFullyFunded(item) && item.FulfillmentStatus == enums.FulfillmentStatusUnordered {
		item.FulfillmentStatus = enums.FulfillmentStatusPending
		crossed = true
	}

	applied, err := s.items.ApplyFundingTx(tx, item, prev)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, errStaleCounters
	}
	return crossed, nil
}

func (s *service) emitDonationEvents(ctx context.Context, tx *gorm.DB, donation *models.Donation) error {
	title := ""
	if donation.ItemTitle != nil {
		title = *donation.ItemTitle
	}
	recorded := payloads.DonationRecordedEvent{
		DonationID:  donation.ID,
		Kind:        donation.Kind,
		ItemID:      donation.ItemID,
		ItemTitle:   title,
		AmountCents: donation.AmountCents,
		DonorEmail:  donation.DonorEmail,
		DonorName:   donation.DonorName,
		Program:     donation.Program,
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventDonationRecorded,
		AggregateType: enums.AggregateDonation,
		AggregateID:   donation.ID,
		Source:        eventSource,
		Data:          recorded,
	}); err != nil {
		return err
	}

	receipt := payloads.ReceiptPendingEvent{
		DonationID:  donation.ID,
		Kind:        donation.Kind,
		DonorEmail:  donation.DonorEmail,
		DonorName:   donation.DonorName,
		AmountCents: donation.AmountCents,
		ItemTitle:   title,
		Program:     donation.Program,
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReceiptPending,
		AggregateType: enums.AggregateDonation,
		AggregateID:   donation.ID,
		Source:        eventSource,
		Data:          receipt,
	})
}

func (s *service) emitFullyFunded(ctx context.Context, tx *gorm.DB, item *models.FundableItem, donationID uuid.UUID) error {
	fundedAt := time.Now().UTC()
	if item.PoolCompletedAt != nil {
		fundedAt = *item.PoolCompletedAt
	}
	payload := payloads.ItemFullyFundedEvent{
		ItemID:           item.ID,
		Title:            item.Title,
		TriggerDonation:  donationID,
		FundedAt:         fundedAt,
		QuantityNeeded:   item.QuantityNeeded,
		QuantityFunded:   catalog.DisplayQuantityFunded(item),
		PoolFundedCents:  item.PoolFundedCents,
		PoolGoalCents:    catalog.PoolGoal(item),
		PoolCompletedAt:  item.PoolCompletedAt,
		ContributorCount: item.PoolContributorCount,
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventItemFullyFunded,
		AggregateType: enums.AggregateFundableItem,
		AggregateID:   item.ID,
		Source:        eventSource,
		Data:          payload,
	})
}

// escalateGap files the unapplyable capture for operator follow-up. The money
// already moved externally, so this must never be silently dropped.
func (s *service) escalateGap(ctx context.Context, event CapturedEvent) error {
	gap := &models.ReconciliationGap{
		StripeSessionID: event.SessionID,
		Kind:            event.Kind,
		AmountCents:     event.AmountCents,
		ItemID:          event.ItemID,
		DonorEmail:      event.DonorEmail,
		Reason:          "referenced item no longer exists",
	}
	if err := s.side.RecordGap(ctx, gap); err != nil {
		s.logg.Error(ctx, "failed to record reconciliation gap", err)
		return err
	}
	s.logg.Error(ctx, "captured payment could not be applied", errItemVanished)
	return pkgerrors.New(pkgerrors.CodeReconciliationGap,
		"captured payment references a missing item, filed for reconciliation")
}

func (s *service) buildDonation(id uuid.UUID, event CapturedEvent) *models.Donation {
	name := event.DonorName
	if name == "" {
		name = "Anonymous"
	}
	donation := &models.Donation{
		ID:                    id,
		Kind:                  event.Kind,
		DonorName:             name,
		DonorEmail:            donors.NormalizeEmail(event.DonorEmail),
		AmountCents:           event.AmountCents,
		Program:               "General",
		ItemID:                event.ItemID,
		StripeSessionID:       event.SessionID,
		StripePaymentIntentID: event.PaymentIntentID,
		StripeCustomerID:      event.CustomerID,
	}
	if event.ItemTitle != "" {
		donation.ItemTitle = &event.ItemTitle
	}
	if event.Kind == enums.DonationKindUnitPurchase {
		qty := int(event.Quantity)
		donation.QuantityPurchased = &qty
	}
	return donation
}

func validateEvent(event CapturedEvent) error {
	if event.SessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if !event.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown donation kind")
	}
	if event.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "captured amount must be positive")
	}
	switch event.Kind {
	case enums.DonationKindUnitPurchase:
		if event.ItemID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item id required for unit purchase")
		}
		if event.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity required for unit purchase")
		}
	case enums.DonationKindPoolContribution:
		if event.ItemID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item id required for pool contribution")
		}
	}
	return nil
}

func isRetryableConflict(err error) bool {
	return errors.Is(err, errStaleCounters) ||
		errors.Is(err, donors.ErrConcurrentUpsert) ||
		pkgerrors.IsSerializationFailure(err)
}
