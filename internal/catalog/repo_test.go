package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
	"github.com/manafoundation/wishlist-backend/pkg/pagination"
)

func setupCatalogDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	ddl := `
	CREATE TABLE fundable_items (
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
	);`
	require.NoError(t, db.Exec(ddl).Error)

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedItem(t *testing.T, db *gorm.DB, mutate func(*models.FundableItem)) *models.FundableItem {
	t.Helper()
	item := &models.FundableItem{
		ID:             uuid.New(),
		Title:          "Twin mattress",
		Category:       "Housing",
		UnitPriceCents: 4500,
		QuantityNeeded: 10,
		FundingMode:    enums.FundingModeUnit,
	}
	if mutate != nil {
		mutate(item)
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func TestFindByIDMissingReturnsNil(t *testing.T) {
	db := setupCatalogDB(t)
	repo := NewRepository(db)

	item, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestFindByIDLoadsRow(t *testing.T) {
	db := setupCatalogDB(t)
	repo := NewRepository(db)
	seeded := seedItem(t, db, nil)

	item, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Twin mattress", item.Title)
	assert.Equal(t, int64(4500), item.UnitPriceCents)
}

func TestListPendingFulfillment(t *testing.T) {
	db := setupCatalogDB(t)
	repo := NewRepository(db)

	seedItem(t, db, nil)
	pending := seedItem(t, db, func(i *models.FundableItem) {
		i.FulfillmentStatus = enums.FulfillmentStatusPending
	})

	rows, err := repo.ListPendingFulfillment(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, pending.ID, rows[0].ID)
}

func TestListPublicPageWalksCatalog(t *testing.T) {
	db := setupCatalogDB(t)
	repo := NewRepository(db)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		created := base.Add(time.Duration(i) * time.Hour)
		seedItem(t, db, func(item *models.FundableItem) {
			item.CreatedAt = created
			item.UpdatedAt = created
		})
	}

	first, cursor, err := repo.ListPublicPage(context.Background(), pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotEmpty(t, cursor)
	assert.True(t, first[0].CreatedAt.After(first[1].CreatedAt))

	second, cursor, err := repo.ListPublicPage(context.Background(), pagination.Params{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.NotEmpty(t, cursor)
	assert.True(t, first[1].CreatedAt.After(second[0].CreatedAt))

	last, cursor, err := repo.ListPublicPage(context.Background(), pagination.Params{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Empty(t, cursor, "final page carries no cursor")
}

func TestListPublicPageRejectsBadCursor(t *testing.T) {
	db := setupCatalogDB(t)
	repo := NewRepository(db)

	_, _, err := repo.ListPublicPage(context.Background(), pagination.Params{Cursor: "%%%"})
	require.Error(t, err)
}

func TestApplyFundingTxPersistsCounters(t *testing.T) {
	db := setupCatalogDB(t)
	repo := NewRepository(db)
	seeded := seedItem(t, db, nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		item, err := repo.FindByIDTx(tx, seeded.ID)
		require.NoError(t, err)
		require.NotNil(t, item)

		prev := Snapshot(item)
		item.QuantityFunded = 3
		item.FulfillmentStatus = enums.FulfillmentStatusUnordered

		applied, err := repo.ApplyFundingTx(tx, item, prev)
		require.NoError(t, err)
		assert.True(t, applied)
		return nil
	})
	require.NoError(t, err)

	reloaded, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.QuantityFunded)
}

func TestApplyFundingTxRejectsStaleSnapshot(t *testing.T) {
	db := setupCatalogDB(t)
	repo := NewRepository(db)
	seeded := seedItem(t, db, nil)

	stale := Snapshot(seeded)

	// Another writer advances the counters first.
	require.NoError(t, db.Model(&models.FundableItem{}).
		Where("id = ?", seeded.ID).
		Update("quantity_funded", 2).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		seeded.QuantityFunded = 1
		applied, err := repo.ApplyFundingTx(tx, seeded, stale)
		require.NoError(t, err)
		assert.False(t, applied)
		return nil
	})
	require.NoError(t, err)

	reloaded, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.QuantityFunded, "stale write must not land")
}

func TestApplyFundingTxRejectsSweepClaimedItem(t *testing.T) {
	db := setupCatalogDB(t)
	repo := NewRepository(db)
	seeded := seedItem(t, db, func(i *models.FundableItem) {
		i.QuantityFunded = 9
		i.FulfillmentStatus = enums.FulfillmentStatusPending
	})

	stale := Snapshot(seeded)

	// The sweep claims the item before the funding write lands.
	orderID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		claimed, err := repo.CompareAndSetFulfillment(tx, seeded.ID,
			enums.FulfillmentStatusPending, enums.FulfillmentStatusProcessing, &orderID)
		require.NoError(t, err)
		require.True(t, claimed)
		return nil
	})
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		seeded.QuantityFunded = 10
		seeded.FulfillmentStatus = enums.FulfillmentStatusPending
		applied, err := repo.ApplyFundingTx(tx, seeded, stale)
		require.NoError(t, err)
		assert.False(t, applied)
		return nil
	})
	require.NoError(t, err)

	reloaded, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.FulfillmentStatusProcessing, reloaded.FulfillmentStatus,
		"claimed item must not regress to pending")
	require.NotNil(t, reloaded.OrderID)
	assert.Equal(t, orderID, *reloaded.OrderID)
	assert.Equal(t, 9, reloaded.QuantityFunded)
}

func TestApplyFundingTxCarriesCompletionFields(t *testing.T) {
	db := setupCatalogDB(t)
	repo := NewRepository(db)
	seeded := seedItem(t, db, func(i *models.FundableItem) {
		i.FundingMode = enums.FundingModePool
		i.PoolGoalCents = 10000
	})

	completedAt := time.Now().UTC().Truncate(time.Second)
	err := db.Transaction(func(tx *gorm.DB) error {
		item, err := repo.FindByIDTx(tx, seeded.ID)
		require.NoError(t, err)

		prev := Snapshot(item)
		item.PoolFundedCents = 10000
		item.PoolContributorCount = 4
		item.PoolCompletedAt = &completedAt
		item.FulfillmentStatus = enums.FulfillmentStatusPending

		applied, err := repo.ApplyFundingTx(tx, item, prev)
		require.NoError(t, err)
		assert.True(t, applied)
		return nil
	})
	require.NoError(t, err)

	reloaded, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), reloaded.PoolFundedCents)
	assert.Equal(t, 4, reloaded.PoolContributorCount)
	require.NotNil(t, reloaded.PoolCompletedAt)
	assert.Equal(t, enums.FulfillmentStatusPending, reloaded.FulfillmentStatus)
}

func TestCompareAndSetFulfillment(t *testing.T) {
	db := setupCatalogDB(t)
	repo := NewRepository(db)
	seeded := seedItem(t, db, func(i *models.FundableItem) {
		i.FulfillmentStatus = enums.FulfillmentStatusPending
	})

	orderID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		won, err := repo.CompareAndSetFulfillment(tx, seeded.ID,
			enums.FulfillmentStatusPending, enums.FulfillmentStatusProcessing, &orderID)
		require.NoError(t, err)
		assert.True(t, won)

		// Second attempt against the same expected status loses.
		won, err = repo.CompareAndSetFulfillment(tx, seeded.ID,
			enums.FulfillmentStatusPending, enums.FulfillmentStatusProcessing, nil)
		require.NoError(t, err)
		assert.False(t, won)
		return nil
	})
	require.NoError(t, err)

	reloaded, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.FulfillmentStatusProcessing, reloaded.FulfillmentStatus)
	require.NotNil(t, reloaded.OrderID)
	assert.Equal(t, orderID, *reloaded.OrderID)
}

func TestUpdateProviderRefs(t *testing.T) {
	db := setupCatalogDB(t)
	repo := NewRepository(db)
	seeded := seedItem(t, db, nil)

	require.NoError(t, repo.UpdateProviderRefs(context.Background(), seeded.ID, "prod_123", "price_456"))

	reloaded, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.StripeProductID)
	require.NotNil(t, reloaded.StripePriceID)
	assert.Equal(t, "prod_123", *reloaded.StripeProductID)
	assert.Equal(t, "price_456", *reloaded.StripePriceID)
}
