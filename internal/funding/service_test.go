package funding

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/manafoundation/wishlist-backend/internal/campaigns"
	"github.com/manafoundation/wishlist-backend/internal/catalog"
	"github.com/manafoundation/wishlist-backend/internal/donors"
	"github.com/manafoundation/wishlist-backend/internal/ledger"
	"github.com/manafoundation/wishlist-backend/pkg/config"
	"github.com/manafoundation/wishlist-backend/pkg/db"
	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
	pkgerrors "github.com/manafoundation/wishlist-backend/pkg/errors"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
	"github.com/manafoundation/wishlist-backend/pkg/outbox"
)

func setupFundingDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:funding_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE fundable_items (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			program TEXT NOT NULL DEFAULT 'General',
			category TEXT,
			unit_price_cents INTEGER NOT NULL,
			funding_mode TEXT NOT NULL DEFAULT 'unit',
			quantity_needed INTEGER NOT NULL DEFAULT 1,
			quantity_funded INTEGER NOT NULL DEFAULT 0,
			pool_goal_cents INTEGER NOT NULL DEFAULT 0,
			pool_funded_cents INTEGER NOT NULL DEFAULT 0,
			pool_contributor_count INTEGER NOT NULL DEFAULT 0,
			pool_minimum_cents INTEGER NOT NULL DEFAULT 0,
			pool_completed_at DATETIME,
			vendor_name TEXT,
			vendor_url TEXT,
			stripe_product_id TEXT,
			stripe_price_id TEXT,
			fulfillment_status TEXT NOT NULL DEFAULT 'unordered',
			order_id TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE donations (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			donor_name TEXT NOT NULL DEFAULT 'Anonymous',
			donor_email TEXT NOT NULL,
			amount_cents INTEGER NOT NULL,
			program TEXT NOT NULL DEFAULT 'General',
			item_id TEXT,
			item_title TEXT,
			campaign_id TEXT,
			quantity_purchased INTEGER,
			stripe_session_id TEXT NOT NULL,
			stripe_payment_intent_id TEXT,
			stripe_customer_id TEXT,
			receipt_sent INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME
		)`,
		`CREATE UNIQUE INDEX donations_stripe_session_id_key ON donations (stripe_session_id)`,
		`CREATE TABLE donors (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT 'Anonymous',
			tier TEXT NOT NULL DEFAULT 'general',
			tags TEXT,
			lifetime_cents INTEGER NOT NULL DEFAULT 0,
			donation_count INTEGER NOT NULL DEFAULT 0,
			notes TEXT,
			last_contact_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE UNIQUE INDEX donors_email_key ON donors (email)`,
		`CREATE TABLE campaigns (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			program TEXT NOT NULL DEFAULT 'General',
			fundraising_goal_cents INTEGER NOT NULL DEFAULT 0,
			fundraising_raised_cents INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE overfunding_notes (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			item_title TEXT NOT NULL,
			donation_id TEXT,
			excess_cents INTEGER NOT NULL,
			created_at DATETIME
		)`,
		`CREATE TABLE reconciliation_gaps (
			id TEXT PRIMARY KEY,
			stripe_session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			amount_cents INTEGER NOT NULL,
			item_id TEXT,
			donor_email TEXT,
			reason TEXT NOT NULL,
			resolved_at DATETIME,
			created_at DATETIME
		)`,
		`CREATE UNIQUE INDEX reconciliation_gaps_session_key ON reconciliation_gaps (stripe_session_id)`,
		`CREATE TABLE outbox_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME,
			published_at DATETIME,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT
		)`,
	}
	for _, stmt := range statements {
		require.NoError(t, conn.Exec(stmt).Error)
	}

	t.Cleanup(func() {
		sqlDB, err := conn.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

type fundingFixture struct {
	conn *gorm.DB
	svc  Service
}

func newFundingFixture(t *testing.T) *fundingFixture {
	t.Helper()
	conn := setupFundingDB(t)
	logg := logger.New(logger.Options{})

	svc, err := NewService(
		db.NewFromConn(conn),
		catalog.NewRepository(conn),
		ledger.NewRepository(conn),
		donors.NewRepository(conn),
		campaigns.NewRepository(conn),
		NewRepository(conn),
		outbox.NewService(outbox.NewRepository(conn), logg),
		config.FundingConfig{MaxTxAttempts: 3, RetryBaseBackoff: time.Millisecond},
		logg,
	)
	require.NoError(t, err)
	return &fundingFixture{conn: conn, svc: svc}
}

func (f *fundingFixture) seedItem(t *testing.T, mutate func(*models.FundableItem)) *models.FundableItem {
	t.Helper()
	item := &models.FundableItem{
		ID:             uuid.New(),
		Title:          "Twin mattress",
		Program:        "Housing",
		UnitPriceCents: 4500,
		FundingMode:    enums.FundingModeUnit,
		QuantityNeeded: 10,
	}
	if mutate != nil {
		mutate(item)
	}
	require.NoError(t, f.conn.Create(item).Error)
	return item
}

func (f *fundingFixture) reloadItem(t *testing.T, id uuid.UUID) *models.FundableItem {
	t.Helper()
	var item models.FundableItem
	require.NoError(t, f.conn.First(&item, "id = ?", id).Error)
	return &item
}

func (f *fundingFixture) outboxTypes(t *testing.T) []string {
	t.Helper()
	var types []string
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).
		Order("rowid ASC").Pluck("event_type", &types).Error)
	return types
}

func unitEvent(itemID uuid.UUID, qty int64) CapturedEvent {
	return CapturedEvent{
		SessionID:   "cs_test_" + uuid.NewString(),
		Kind:        enums.DonationKindUnitPurchase,
		AmountCents: 4500 * qty,
		Quantity:    qty,
		ItemID:      &itemID,
		DonorEmail:  "donor@example.org",
		DonorName:   "Dana Whitfield",
		OccurredAt:  time.Now().UTC(),
	}
}

func TestHandleCapturedUnitPurchaseCrossesGoal(t *testing.T) {
	f := newFundingFixture(t)
	item := f.seedItem(t, func(i *models.FundableItem) { i.QuantityFunded = 9 })

	res, err := f.svc.HandleCaptured(context.Background(), unitEvent(item.ID, 1))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.True(t, res.NewlyFunded)

	reloaded := f.reloadItem(t, item.ID)
	assert.Equal(t, 10, reloaded.QuantityFunded)
	assert.Equal(t, enums.FulfillmentStatusPending, reloaded.FulfillmentStatus)

	var donationCount int64
	require.NoError(t, f.conn.Model(&models.Donation{}).Count(&donationCount).Error)
	assert.Equal(t, int64(1), donationCount)

	assert.Equal(t, []string{"donation_recorded", "receipt_pending", "item_fully_funded"}, f.outboxTypes(t))
}

func TestHandleCapturedUnitPurchaseBelowGoal(t *testing.T) {
	f := newFundingFixture(t)
	item := f.seedItem(t, nil)

	res, err := f.svc.HandleCaptured(context.Background(), unitEvent(item.ID, 3))
	require.NoError(t, err)
	assert.False(t, res.NewlyFunded)

	reloaded := f.reloadItem(t, item.ID)
	assert.Equal(t, 3, reloaded.QuantityFunded)
	assert.Equal(t, enums.FulfillmentStatusUnordered, reloaded.FulfillmentStatus)
	assert.Equal(t, []string{"donation_recorded", "receipt_pending"}, f.outboxTypes(t))
}

func TestHandleCapturedPoolOverfunding(t *testing.T) {
	f := newFundingFixture(t)
	item := f.seedItem(t, func(i *models.FundableItem) {
		i.Title = "Box truck"
		i.FundingMode = enums.FundingModePool
		i.QuantityNeeded = 1
		i.UnitPriceCents = 500000
		i.PoolGoalCents = 500000
		i.PoolFundedCents = 480000
		i.PoolContributorCount = 12
	})

	event := CapturedEvent{
		SessionID:   "cs_test_" + uuid.NewString(),
		Kind:        enums.DonationKindPoolContribution,
		AmountCents: 25000,
		ItemID:      &item.ID,
		DonorEmail:  "donor@example.org",
		OccurredAt:  time.Now().UTC(),
	}
	res, err := f.svc.HandleCaptured(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, res.NewlyFunded)

	reloaded := f.reloadItem(t, item.ID)
	assert.Equal(t, int64(505000), reloaded.PoolFundedCents)
	assert.Equal(t, 13, reloaded.PoolContributorCount)
	assert.Equal(t, enums.FulfillmentStatusPending, reloaded.FulfillmentStatus)
	require.NotNil(t, reloaded.PoolCompletedAt)
	assert.Equal(t, 0, reloaded.QuantityFunded, "stored units stay untouched, display is derived")
	assert.Equal(t, 1, catalog.DisplayQuantityFunded(reloaded))

	var note models.OverfundingNote
	require.NoError(t, f.conn.First(&note, "item_id = ?", item.ID).Error)
	assert.Equal(t, int64(5000), note.ExcessCents)
	require.NotNil(t, note.DonationID)
	assert.Equal(t, res.DonationID, *note.DonationID)
}

func TestHandleCapturedReplayIsIdempotent(t *testing.T) {
	f := newFundingFixture(t)
	item := f.seedItem(t, func(i *models.FundableItem) { i.QuantityFunded = 9 })

	event := unitEvent(item.ID, 1)
	first, err := f.svc.HandleCaptured(context.Background(), event)
	require.NoError(t, err)

	second, err := f.svc.HandleCaptured(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.DonationID, second.DonationID)

	reloaded := f.reloadItem(t, item.ID)
	assert.Equal(t, 10, reloaded.QuantityFunded, "replay must not double-count")

	var donationCount int64
	require.NoError(t, f.conn.Model(&models.Donation{}).Count(&donationCount).Error)
	assert.Equal(t, int64(1), donationCount)
}

func TestHandleCapturedConservation(t *testing.T) {
	f := newFundingFixture(t)
	item := f.seedItem(t, func(i *models.FundableItem) {
		i.FundingMode = enums.FundingModeBoth
		i.PoolGoalCents = 45000
	})

	for _, qty := range []int64{2, 3} {
		_, err := f.svc.HandleCaptured(context.Background(), unitEvent(item.ID, qty))
		require.NoError(t, err)
	}
	for _, amount := range []int64{2500, 4000} {
		_, err := f.svc.HandleCaptured(context.Background(), CapturedEvent{
			SessionID:   "cs_test_" + uuid.NewString(),
			Kind:        enums.DonationKindPoolContribution,
			AmountCents: amount,
			ItemID:      &item.ID,
			DonorEmail:  "donor@example.org",
		})
		require.NoError(t, err)
	}

	reloaded := f.reloadItem(t, item.ID)
	sums, err := ledger.NewRepository(f.conn).SumsByItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, reloaded.QuantityFunded, sums.UnitQuantity)
	assert.Equal(t, reloaded.PoolFundedCents, sums.PoolCents)
	assert.Equal(t, reloaded.PoolContributorCount, sums.Contributors)
}

func TestHandleCapturedVanishedItem(t *testing.T) {
	f := newFundingFixture(t)
	missingID := uuid.New()

	event := unitEvent(missingID, 1)
	_, err := f.svc.HandleCaptured(context.Background(), event)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeReconciliationGap))

	var gap models.ReconciliationGap
	require.NoError(t, f.conn.First(&gap, "stripe_session_id = ?", event.SessionID).Error)
	assert.Equal(t, "referenced item no longer exists", gap.Reason)
	require.NotNil(t, gap.ItemID)
	assert.Equal(t, missingID, *gap.ItemID)

	var donationCount int64
	require.NoError(t, f.conn.Model(&models.Donation{}).Count(&donationCount).Error)
	assert.Zero(t, donationCount, "rolled back, nothing half-applied")

	// Redelivery files no second gap and still reports the same failure.
	_, err = f.svc.HandleCaptured(context.Background(), event)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeReconciliationGap))
	var gapCount int64
	require.NoError(t, f.conn.Model(&models.ReconciliationGap{}).Count(&gapCount).Error)
	assert.Equal(t, int64(1), gapCount)
}

func TestHandleCapturedGeneralGiftWithCampaign(t *testing.T) {
	f := newFundingFixture(t)
	campaign := &models.Campaign{
		ID:                   uuid.New(),
		Name:                 "Winter drive",
		FundraisingGoalCents: 1000000,
	}
	require.NoError(t, f.conn.Create(campaign).Error)

	res, err := f.svc.HandleCaptured(context.Background(), CapturedEvent{
		SessionID:   "cs_test_" + uuid.NewString(),
		Kind:        enums.DonationKindGeneralGift,
		AmountCents: 10000,
		DonorEmail:  "giver@example.org",
		DonorName:   "Priya Raman",
		CampaignID:  &campaign.ID,
	})
	require.NoError(t, err)
	assert.False(t, res.NewlyFunded)

	var reloaded models.Campaign
	require.NoError(t, f.conn.First(&reloaded, "id = ?", campaign.ID).Error)
	assert.Equal(t, int64(10000), reloaded.FundraisingRaisedCents)

	donor, err := donors.NewRepository(f.conn).FindByEmail(context.Background(), "giver@example.org")
	require.NoError(t, err)
	require.NotNil(t, donor)
	assert.Equal(t, int64(10000), donor.LifetimeCents)
}

func TestHandleCapturedDonorAggregation(t *testing.T) {
	f := newFundingFixture(t)
	item := f.seedItem(t, nil)

	for range 3 {
		_, err := f.svc.HandleCaptured(context.Background(), unitEvent(item.ID, 1))
		require.NoError(t, err)
	}

	donor, err := donors.NewRepository(f.conn).FindByEmail(context.Background(), "donor@example.org")
	require.NoError(t, err)
	require.NotNil(t, donor)
	assert.Equal(t, 3, donor.DonationCount)
	assert.Equal(t, int64(13500), donor.LifetimeCents)
}

// flakyItemStore wraps the real repository to force one interleaving: either
// a stale first read or a rejected first apply, the way a concurrent writer
// would.
type flakyItemStore struct {
	real      *catalog.Repository
	staleItem *models.FundableItem
	failApply bool
	reads     int
	applies   int
}

func (s *flakyItemStore) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*models.FundableItem, error) {
	s.reads++
	if s.staleItem != nil && s.reads == 1 {
		stale := *s.staleItem
		return &stale, nil
	}
	return s.real.FindByIDTx(tx, id)
}

func (s *flakyItemStore) ApplyFundingTx(tx *gorm.DB, item *models.FundableItem, prev catalog.CounterSnapshot) (bool, error) {
	s.applies++
	if s.failApply && s.applies == 1 {
		return false, nil
	}
	return s.real.ApplyFundingTx(tx, item, prev)
}

type flakyDonorStore struct {
	real     *donors.Repository
	failures int
	calls    int
}

func (s *flakyDonorStore) RecordContributionTx(tx *gorm.DB, c donors.Contribution) (*models.Donor, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, fmt.Errorf("record donor: %w", donors.ErrConcurrentUpsert)
	}
	return s.real.RecordContributionTx(tx, c)
}

func newServiceWithStores(t *testing.T, conn *gorm.DB, items itemStore, donorStore donorStore) Service {
	t.Helper()
	logg := logger.New(logger.Options{})
	svc, err := NewService(
		db.NewFromConn(conn),
		items,
		ledger.NewRepository(conn),
		donorStore,
		campaigns.NewRepository(conn),
		NewRepository(conn),
		outbox.NewService(outbox.NewRepository(conn), logg),
		config.FundingConfig{MaxTxAttempts: 3, RetryBaseBackoff: time.Millisecond},
		logg,
	)
	require.NoError(t, err)
	return svc
}

func TestHandleCapturedRetriesStaleCountersOnce(t *testing.T) {
	conn := setupFundingDB(t)
	items := &flakyItemStore{real: catalog.NewRepository(conn), failApply: true}
	svc := newServiceWithStores(t, conn, items, donors.NewRepository(conn))

	item := &models.FundableItem{
		ID:             uuid.New(),
		Title:          "Twin mattress",
		Program:        "Housing",
		UnitPriceCents: 4500,
		FundingMode:    enums.FundingModeUnit,
		QuantityNeeded: 10,
		QuantityFunded: 9,
	}
	require.NoError(t, conn.Create(item).Error)

	res, err := svc.HandleCaptured(context.Background(), unitEvent(item.ID, 1))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.True(t, res.NewlyFunded)
	assert.Equal(t, 2, items.applies, "first apply rejected, second lands")

	var reloaded models.FundableItem
	require.NoError(t, conn.First(&reloaded, "id = ?", item.ID).Error)
	assert.Equal(t, 10, reloaded.QuantityFunded)

	var donationCount int64
	require.NoError(t, conn.Model(&models.Donation{}).Count(&donationCount).Error)
	assert.Equal(t, int64(1), donationCount, "aborted attempt leaves no ledger row")

	donor, err := donors.NewRepository(conn).FindByEmail(context.Background(), "donor@example.org")
	require.NoError(t, err)
	require.NotNil(t, donor)
	assert.Equal(t, int64(4500), donor.LifetimeCents, "lifetime reflects exactly one addition")
	assert.Equal(t, 1, donor.DonationCount)
}

func TestHandleCapturedSingleCrossing(t *testing.T) {
	conn := setupFundingDB(t)
	realItems := catalog.NewRepository(conn)

	item := &models.FundableItem{
		ID:                   uuid.New(),
		Title:                "Box truck",
		Program:              "Logistics",
		UnitPriceCents:       500000,
		FundingMode:          enums.FundingModePool,
		QuantityNeeded:       1,
		PoolGoalCents:        500000,
		PoolFundedCents:      480000,
		PoolContributorCount: 12,
	}
	require.NoError(t, conn.Create(item).Error)
	preCrossing := *item

	poolEvent := func(amount int64) CapturedEvent {
		return CapturedEvent{
			SessionID:   "cs_test_" + uuid.NewString(),
			Kind:        enums.DonationKindPoolContribution,
			AmountCents: amount,
			ItemID:      &item.ID,
			DonorEmail:  "donor@example.org",
			OccurredAt:  time.Now().UTC(),
		}
	}

	first, err := newServiceWithStores(t, conn, realItems, donors.NewRepository(conn)).
		HandleCaptured(context.Background(), poolEvent(25000))
	require.NoError(t, err)
	assert.True(t, first.NewlyFunded)

	// The second contribution reads the pre-crossing state, as a concurrent
	// handler would; the snapshot guard forces it onto the crossed row.
	items := &flakyItemStore{real: realItems, staleItem: &preCrossing}
	second, err := newServiceWithStores(t, conn, items, donors.NewRepository(conn)).
		HandleCaptured(context.Background(), poolEvent(30000))
	require.NoError(t, err)
	assert.False(t, second.NewlyFunded, "only the first crossing raises the flag")
	assert.Equal(t, 2, items.reads)

	var reloaded models.FundableItem
	require.NoError(t, conn.First(&reloaded, "id = ?", item.ID).Error)
	assert.Equal(t, int64(535000), reloaded.PoolFundedCents)
	assert.Equal(t, 14, reloaded.PoolContributorCount)
	assert.Equal(t, enums.FulfillmentStatusPending, reloaded.FulfillmentStatus)

	var fundedEvents int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", "item_fully_funded").Count(&fundedEvents).Error)
	assert.Equal(t, int64(1), fundedEvents)

	var notes []models.OverfundingNote
	require.NoError(t, conn.Find(&notes).Error)
	require.Len(t, notes, 1, "the aborted attempt's note rolls back")
	assert.Equal(t, int64(5000), notes[0].ExcessCents)
}

func TestHandleCapturedRetriesDonorCreateRace(t *testing.T) {
	conn := setupFundingDB(t)
	donorStore := &flakyDonorStore{real: donors.NewRepository(conn), failures: 1}
	svc := newServiceWithStores(t, conn, catalog.NewRepository(conn), donorStore)

	item := &models.FundableItem{
		ID:             uuid.New(),
		Title:          "Twin mattress",
		Program:        "Housing",
		UnitPriceCents: 4500,
		FundingMode:    enums.FundingModeUnit,
		QuantityNeeded: 10,
	}
	require.NoError(t, conn.Create(item).Error)

	res, err := svc.HandleCaptured(context.Background(), unitEvent(item.ID, 1))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 2, donorStore.calls)

	var reloaded models.FundableItem
	require.NoError(t, conn.First(&reloaded, "id = ?", item.ID).Error)
	assert.Equal(t, 1, reloaded.QuantityFunded, "aborted attempt's counter bump rolls back")

	donor, err := donorStore.real.FindByEmail(context.Background(), "donor@example.org")
	require.NoError(t, err)
	require.NotNil(t, donor)
	assert.Equal(t, int64(4500), donor.LifetimeCents)
	assert.Equal(t, 1, donor.DonationCount)
}

func TestHandleCapturedValidation(t *testing.T) {
	f := newFundingFixture(t)

	cases := []struct {
		name  string
		event CapturedEvent
	}{
		{"missing session", CapturedEvent{Kind: enums.DonationKindGeneralGift, AmountCents: 100}},
		{"bad kind", CapturedEvent{SessionID: "cs_1", Kind: "mystery", AmountCents: 100}},
		{"zero amount", CapturedEvent{SessionID: "cs_2", Kind: enums.DonationKindGeneralGift}},
		{"unit without item", CapturedEvent{SessionID: "cs_3", Kind: enums.DonationKindUnitPurchase, AmountCents: 100, Quantity: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.HandleCaptured(context.Background(), tc.event)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
		})
	}
}
