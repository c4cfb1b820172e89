package campaigns

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manafoundation/wishlist-backend/pkg/db/models"
)

// Repository persists fundraising campaigns.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads one campaign, nil when missing.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.db.WithContext(ctx).First(&campaign, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// AddRaisedTx increments the campaign's raised total inside the caller's
// transaction. A missing campaign is not an error: the attribution is best
// effort and the donation ledger remains the source of truth.
func (r *Repository) AddRaisedTx(tx *gorm.DB, id uuid.UUID, amountCents int64) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.Campaign{}).
		Where("id = ?", id).
		Update("fundraising_raised_cents", gorm.Expr("fundraising_raised_cents + ?", amountCents)).
		Error
}

// List returns campaigns newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]models.Campaign, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Campaign
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
