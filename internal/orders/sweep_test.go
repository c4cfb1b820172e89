package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/manafoundation/wishlist-backend/internal/catalog"
	"github.com/manafoundation/wishlist-backend/internal/vendors"
	"github.com/manafoundation/wishlist-backend/pkg/config"
	"github.com/manafoundation/wishlist-backend/pkg/db"
	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
	"github.com/manafoundation/wishlist-backend/pkg/outbox"
	"github.com/manafoundation/wishlist-backend/pkg/types"
)

func setupSweepDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
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
		`CREATE TABLE fulfillment_orders (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'processing',
			origin TEXT NOT NULL DEFAULT 'auto',
			items TEXT,
			vendor_name TEXT,
			vendor_url TEXT,
			shipping_address TEXT,
			total_cents INTEGER NOT NULL,
			funding_source TEXT NOT NULL,
			tracking_number TEXT,
			notes TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE vendor_configs (
			id TEXT PRIMARY KEY,
			vendor_name TEXT NOT NULL,
			display_name TEXT NOT NULL,
			affiliate_tag TEXT,
			default_shipping_address TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE UNIQUE INDEX vendor_configs_vendor_name_key ON vendor_configs (vendor_name)`,
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

func testOrgConfig() config.OrgConfig {
	return config.OrgConfig{
		ShipName:       "Mana Foundation Warehouse",
		ShipLine1:      "245 Citrus Avenue",
		ShipCity:       "Orlando",
		ShipState:      "FL",
		ShipPostalCode: "32801",
		ShipCountry:    "US",
	}
}

func newSweeper(t *testing.T, conn *gorm.DB) Sweeper {
	t.Helper()
	logg := logger.New(logger.Options{})
	s, err := NewSweeper(
		db.NewFromConn(conn),
		catalog.NewRepository(conn),
		vendors.NewRepository(conn),
		NewRepository(conn),
		outbox.NewService(outbox.NewRepository(conn), logg),
		testOrgConfig(),
		logg,
	)
	require.NoError(t, err)
	return s
}

func seedPendingItem(t *testing.T, conn *gorm.DB, mutate func(*models.FundableItem)) *models.FundableItem {
	t.Helper()
	item := &models.FundableItem{
		ID:                uuid.New(),
		Title:             "Twin mattress",
		Program:           "Housing",
		UnitPriceCents:    4500,
		FundingMode:       enums.FundingModeUnit,
		QuantityNeeded:    10,
		QuantityFunded:    10,
		FulfillmentStatus: enums.FulfillmentStatusPending,
		VendorName:        "acme-beds",
		VendorURL:         "https://vendor.example/mattress",
	}
	if mutate != nil {
		mutate(item)
	}
	require.NoError(t, conn.Create(item).Error)
	return item
}

func TestRunSweepCreatesOrder(t *testing.T) {
	conn := setupSweepDB(t)
	item := seedPendingItem(t, conn, nil)
	sweep := newSweeper(t, conn)

	summary, err := sweep.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Zero(t, summary.Errors)
	require.Len(t, summary.Results, 1)
	require.NotNil(t, summary.Results[0].OrderID)

	var order models.FulfillmentOrder
	require.NoError(t, conn.First(&order, "item_id = ?", item.ID).Error)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)
	assert.Equal(t, enums.OrderOriginAuto, order.Origin)
	assert.Equal(t, int64(45000), order.TotalCents)
	assert.Equal(t, enums.FundingSourceUnitDonations, order.FundingSource)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 10, order.Items[0].Quantity)
	assert.Equal(t, "Mana Foundation Warehouse", order.ShippingAddress.Name, "no vendor config falls back to the org address")

	var reloaded models.FundableItem
	require.NoError(t, conn.First(&reloaded, "id = ?", item.ID).Error)
	assert.Equal(t, enums.FulfillmentStatusProcessing, reloaded.FulfillmentStatus)
	require.NotNil(t, reloaded.OrderID)
	assert.Equal(t, order.ID, *reloaded.OrderID)

	var eventCount int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventOrderCreated).Count(&eventCount).Error)
	assert.Equal(t, int64(1), eventCount)
}

func TestRunSweepTwiceCreatesOneOrder(t *testing.T) {
	conn := setupSweepDB(t)
	item := seedPendingItem(t, conn, nil)
	sweep := newSweeper(t, conn)

	_, err := sweep.RunSweep(context.Background())
	require.NoError(t, err)
	summary, err := sweep.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Processed, "second run finds nothing pending")

	var orderCount int64
	require.NoError(t, conn.Model(&models.FulfillmentOrder{}).
		Where("item_id = ?", item.ID).Count(&orderCount).Error)
	assert.Equal(t, int64(1), orderCount)
}

func TestRunSweepUsesVendorAddress(t *testing.T) {
	conn := setupSweepDB(t)
	vendor := &models.VendorConfig{
		ID:          uuid.New(),
		VendorName:  "acme-beds",
		DisplayName: "Acme Beds",
		DefaultShippingAddress: types.Address{
			Name:       "Acme Receiving",
			Line1:      "9 Dock Street",
			City:       "Tampa",
			State:      "FL",
			PostalCode: "33601",
			Country:    "US",
		},
	}
	require.NoError(t, conn.Create(vendor).Error)
	seedPendingItem(t, conn, nil)
	sweep := newSweeper(t, conn)

	_, err := sweep.RunSweep(context.Background())
	require.NoError(t, err)

	var order models.FulfillmentOrder
	require.NoError(t, conn.First(&order).Error)
	assert.Equal(t, "Acme Receiving", order.ShippingAddress.Name)
	assert.Equal(t, "Tampa", order.ShippingAddress.City)
}

func TestRunSweepSkipsUnderfundedPendingItem(t *testing.T) {
	conn := setupSweepDB(t)
	item := seedPendingItem(t, conn, func(i *models.FundableItem) {
		i.QuantityFunded = 4
	})
	sweep := newSweeper(t, conn)

	summary, err := sweep.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)

	var reloaded models.FundableItem
	require.NoError(t, conn.First(&reloaded, "id = ?", item.ID).Error)
	assert.Equal(t, enums.FulfillmentStatusPending, reloaded.FulfillmentStatus, "left flagged for inspection")

	var orderCount int64
	require.NoError(t, conn.Model(&models.FulfillmentOrder{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)
}

func TestRunSweepPoolItemTotals(t *testing.T) {
	conn := setupSweepDB(t)
	seedPendingItem(t, conn, func(i *models.FundableItem) {
		i.Title = "Box truck"
		i.FundingMode = enums.FundingModePool
		i.QuantityNeeded = 1
		i.QuantityFunded = 0
		i.UnitPriceCents = 500000
		i.PoolGoalCents = 500000
		i.PoolFundedCents = 505000
	})
	sweep := newSweeper(t, conn)

	summary, err := sweep.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)

	var order models.FulfillmentOrder
	require.NoError(t, conn.First(&order).Error)
	assert.Equal(t, int64(505000), order.TotalCents)
	assert.Equal(t, enums.FundingSourcePool, order.FundingSource)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 1, order.Items[0].Quantity, "pool completion projects full quantity")
}

func TestRunSweepHandlesMultiplePendingItems(t *testing.T) {
	conn := setupSweepDB(t)
	seedPendingItem(t, conn, nil)
	seedPendingItem(t, conn, func(i *models.FundableItem) {
		i.Title = "Space heater"
		i.VendorName = ""
		i.QuantityNeeded = 12
		i.QuantityFunded = 12
	})
	sweep := newSweeper(t, conn)

	summary, err := sweep.RunSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.Errors)

	var orderCount int64
	require.NoError(t, conn.Model(&models.FulfillmentOrder{}).Count(&orderCount).Error)
	assert.Equal(t, int64(2), orderCount)
}
