package donors

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/manafoundation/wishlist-backend/pkg/enums"
)

func setupDonorsDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:donors_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	ddl := `
	CREATE TABLE donors (
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
	);
	CREATE UNIQUE INDEX donors_email_key ON donors (email);`
	require.NoError(t, conn.Exec(ddl).Error)

	t.Cleanup(func() {
		sqlDB, err := conn.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func TestRecordContributionCreatesDonor(t *testing.T) {
	conn := setupDonorsDB(t)
	repo := NewRepository(conn)

	err := conn.Transaction(func(tx *gorm.DB) error {
		donor, err := repo.RecordContributionTx(tx, Contribution{
			Name:        "Priya Raman",
			Email:       "  Priya@Example.ORG ",
			Kind:        enums.DonationKindUnitPurchase,
			AmountCents: 4500,
		})
		require.NoError(t, err)
		require.NotNil(t, donor)
		assert.Equal(t, "priya@example.org", donor.Email)
		assert.Equal(t, enums.DonorTierMajor, donor.Tier)
		assert.True(t, donor.Tags.Contains("unit_purchase"))
		return nil
	})
	require.NoError(t, err)

	found, err := repo.FindByEmail(context.Background(), "PRIYA@example.org")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(4500), found.LifetimeCents)
	assert.Equal(t, 1, found.DonationCount)
}

func TestRecordContributionAccumulates(t *testing.T) {
	conn := setupDonorsDB(t)
	repo := NewRepository(conn)

	record := func(c Contribution) {
		err := conn.Transaction(func(tx *gorm.DB) error {
			_, err := repo.RecordContributionTx(tx, c)
			return err
		})
		require.NoError(t, err)
	}

	record(Contribution{Email: "sam@example.org", Kind: enums.DonationKindPoolContribution, AmountCents: 2000})
	record(Contribution{Name: "Sam Ortiz", Email: "sam@example.org", Kind: enums.DonationKindUnitPurchase, AmountCents: 9000})

	donor, err := repo.FindByEmail(context.Background(), "sam@example.org")
	require.NoError(t, err)
	require.NotNil(t, donor)
	assert.Equal(t, int64(11000), donor.LifetimeCents)
	assert.Equal(t, 2, donor.DonationCount)
	assert.Equal(t, "Sam Ortiz", donor.Name, "anonymous placeholder yields to a real name")
	assert.Equal(t, enums.DonorTierMajor, donor.Tier, "unit purchase upgrades the tier")
	assert.True(t, donor.Tags.Contains("pool_contribution"))
	assert.True(t, donor.Tags.Contains("unit_purchase"))
}

func TestRecordContributionConcurrentCreateIsRetryable(t *testing.T) {
	conn := setupDonorsDB(t)
	repo := NewRepository(conn)

	// A rival row lands between the miss and the create, hitting the unique
	// email index exactly like a concurrent first-time donation would.
	raced := false
	require.NoError(t, conn.Callback().Create().Before("gorm:create").Register("rival_donor", func(d *gorm.DB) {
		if raced {
			return
		}
		raced = true
		rivalErr := d.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO donors (id, email) VALUES (?, ?)",
			uuid.NewString(), "casey@example.org").Error
		if rivalErr != nil {
			d.AddError(rivalErr)
		}
	}))

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, err := repo.RecordContributionTx(tx, Contribution{
			Name:        "Casey Nwosu",
			Email:       "casey@example.org",
			Kind:        enums.DonationKindPoolContribution,
			AmountCents: 2500,
		})
		return err
	})
	require.ErrorIs(t, err, ErrConcurrentUpsert)
}

func TestRecordContributionSkipsAnonymous(t *testing.T) {
	conn := setupDonorsDB(t)
	repo := NewRepository(conn)

	err := conn.Transaction(func(tx *gorm.DB) error {
		donor, err := repo.RecordContributionTx(tx, Contribution{
			Kind:        enums.DonationKindGeneralGift,
			AmountCents: 500,
		})
		require.NoError(t, err)
		assert.Nil(t, donor)
		return nil
	})
	require.NoError(t, err)

	rows, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
