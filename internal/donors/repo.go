package donors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manafoundation/wishlist-backend/pkg/db"
	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
	"github.com/manafoundation/wishlist-backend/pkg/types"
)

// ErrConcurrentUpsert means two first-time donations for the same address
// raced the unique email index; the losing transaction retries and takes the
// update path.
var ErrConcurrentUpsert = errors.New("donor created concurrently")

// Repository maintains the per-donor rollup keyed by normalized email.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// NormalizeEmail lowercases and trims the contact address so case and
// whitespace variants collapse onto one donor row.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Contribution is one captured payment applied to the donor rollup.
type Contribution struct {
	Name        string
	Email       string
	Kind        enums.DonationKind
	AmountCents int64
	OccurredAt  time.Time
}

// RecordContributionTx upserts the donor row for one contribution inside the
// caller's transaction. An empty email means an anonymous gift and is skipped.
// Returns the donor row, nil for anonymous contributions.
//
// Lifetime totals are incremented in SQL rather than written from the read
// value, so two concurrent donations from the same address both land. A
// concurrent first-time create surfaces as ErrConcurrentUpsert and the whole
// funding transaction is retried.
func (r *Repository) RecordContributionTx(tx *gorm.DB, c Contribution) (*models.Donor, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	email := NormalizeEmail(c.Email)
	if email == "" {
		return nil, nil
	}
	occurredAt := c.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	var donor models.Donor
	err := tx.First(&donor, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		donor = models.Donor{
			ID:            uuid.New(),
			Email:         email,
			Name:          donorName(c.Name),
			Tier:          enums.DonorTierForKind(c.Kind),
			Tags:          types.StringSet{}.Add(string(c.Kind)),
			LifetimeCents: c.AmountCents,
			DonationCount: 1,
			LastContactAt: &occurredAt,
		}
		// Email is the only unique index on donors, so any unique violation
		// here is a concurrent first-time create.
		if createErr := tx.Create(&donor).Error; createErr != nil {
			if db.IsUniqueViolation(createErr, "") {
				return nil, fmt.Errorf("%w: %s", ErrConcurrentUpsert, email)
			}
			return nil, createErr
		}
		return &donor, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"lifetime_cents":  gorm.Expr("lifetime_cents + ?", c.AmountCents),
		"donation_count":  gorm.Expr("donation_count + 1"),
		"tags":            donor.Tags.Add(string(c.Kind)),
		"last_contact_at": occurredAt,
	}
	if donor.Name == "Anonymous" && donorName(c.Name) != "Anonymous" {
		updates["name"] = donorName(c.Name)
	}
	if enums.DonorTierForKind(c.Kind) == enums.DonorTierMajor {
		updates["tier"] = enums.DonorTierMajor
	}
	if updateErr := tx.Model(&models.Donor{}).
		Where("id = ?", donor.ID).
		Updates(updates).Error; updateErr != nil {
		return nil, updateErr
	}
	if reloadErr := tx.First(&donor, "id = ?", donor.ID).Error; reloadErr != nil {
		return nil, reloadErr
	}
	return &donor, nil
}

// FindByEmail loads the rollup for a normalized address, nil when absent.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Donor, error) {
	var donor models.Donor
	err := r.db.WithContext(ctx).First(&donor, "email = ?", NormalizeEmail(email)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &donor, nil
}

// List returns donors ordered by lifetime giving.
func (r *Repository) List(ctx context.Context, limit int) ([]models.Donor, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Donor
	err := r.db.WithContext(ctx).
		Order("lifetime_cents DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func donorName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Anonymous"
	}
	return name
}
