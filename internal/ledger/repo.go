package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
)

// Repository persists donation ledger rows. Donations are append-only; the
// single mutable field is receipt_sent.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// InsertTx appends one donation inside the caller's transaction. The unique
// index on stripe_session_id surfaces redelivered sessions as an error the
// caller classifies, not as a second row.
func (r *Repository) InsertTx(tx *gorm.DB, donation *models.Donation) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(donation).Error
}

// FindByStripeSessionID returns the ledger row for a checkout session, or nil
// when the session has not been recorded.
func (r *Repository) FindByStripeSessionID(ctx context.Context, sessionID string) (*models.Donation, error) {
	var donation models.Donation
	err := r.db.WithContext(ctx).First(&donation, "stripe_session_id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &donation, nil
}

// FindByID loads one donation by primary key, nil when missing.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Donation, error) {
	var donation models.Donation
	err := r.db.WithContext(ctx).First(&donation, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &donation, nil
}

// MarkReceiptSent flips receipt_sent exactly once. Returns false when the row
// is missing or the receipt was already sent, so redelivered receipt events
// collapse to a no-op.
func (r *Repository) MarkReceiptSent(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Donation{}).
		Where("id = ? AND receipt_sent = ?", id, false).
		Update("receipt_sent", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListByItem returns every donation attributed to one item, oldest first.
func (r *Repository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.Donation, error) {
	var rows []models.Donation
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ItemSums is the ledger-side view of an item's funding, used to reconcile
// the denormalized counters on the item row against recorded donations.
type ItemSums struct {
	UnitQuantity int
	PoolCents    int64
	Contributors int
}

// SumsByItem aggregates ledger rows for one item by donation kind.
func (r *Repository) SumsByItem(ctx context.Context, itemID uuid.UUID) (ItemSums, error) {
	var sums ItemSums

	row := r.db.WithContext(ctx).Model(&models.Donation{}).
		Select("COALESCE(SUM(quantity_purchased), 0)").
		Where("item_id = ? AND kind = ?", itemID, enums.DonationKindUnitPurchase).
		Row()
	if err := row.Scan(&sums.UnitQuantity); err != nil {
		return ItemSums{}, err
	}

	row = r.db.WithContext(ctx).Model(&models.Donation{}).
		Select("COALESCE(SUM(amount_cents), 0), COUNT(*)").
		Where("item_id = ? AND kind = ?", itemID, enums.DonationKindPoolContribution).
		Row()
	if err := row.Scan(&sums.PoolCents, &sums.Contributors); err != nil {
		return ItemSums{}, err
	}
	return sums, nil
}

// ListUnreceipted returns donations still awaiting a receipt, oldest first.
// Anonymous donations have no address to deliver to and are excluded.
func (r *Repository) ListUnreceipted(ctx context.Context, olderThan time.Time, limit int) ([]models.Donation, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Donation
	err := r.db.WithContext(ctx).
		Where("receipt_sent = ? AND donor_email <> '' AND created_at < ?", false, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
