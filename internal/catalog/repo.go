package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
	"github.com/manafoundation/wishlist-backend/pkg/pagination"
)

// Repository exposes fundable item persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an item repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads one item outside any transaction.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.FundableItem, error) {
	var item models.FundableItem
	err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// FindByIDTx loads one item inside the caller's transaction.
func (r *Repository) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*models.FundableItem, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var item models.FundableItem
	err := tx.First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ListPublicPage returns one cursor page of the catalog plus the cursor for
// the next page, empty when the listing is exhausted.
func (r *Repository) ListPublicPage(ctx context.Context, params pagination.Params) ([]models.FundableItem, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.FundableItem
	if err := query.Find(&rows).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

// ListPendingFulfillment returns items flagged for the order sweep.
func (r *Repository) ListPendingFulfillment(ctx context.Context) ([]models.FundableItem, error) {
	var rows []models.FundableItem
	err := r.db.WithContext(ctx).
		Where("fulfillment_status = ?", enums.FulfillmentStatusPending).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// CounterSnapshot is the pre-transaction view of an item's funding counters
// and fulfillment status. ApplyFundingTx uses it as an optimistic guard: the
// write only lands if no concurrent transaction advanced the counters or the
// status in between. Status is part of the guard because the sweep advances
// it independently; without it a funding write could drag a claimed item
// back to pending behind the sweep's compare-and-set.
type CounterSnapshot struct {
	QuantityFunded       int
	PoolFundedCents      int64
	PoolContributorCount int
	FulfillmentStatus    enums.FulfillmentStatus
}

// Snapshot captures the counters the caller read before mutating.
func Snapshot(item *models.FundableItem) CounterSnapshot {
	return CounterSnapshot{
		QuantityFunded:       item.QuantityFunded,
		PoolFundedCents:      item.PoolFundedCents,
		PoolContributorCount: item.PoolContributorCount,
		FulfillmentStatus:    item.FulfillmentStatus,
	}
}

// ApplyFundingTx persists counter mutations guarded by the pre-read snapshot.
// Returns false when a concurrent writer got there first; the caller retries
// the whole read-modify-write.
func (r *Repository) ApplyFundingTx(tx *gorm.DB, item *models.FundableItem, prev CounterSnapshot) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	res := tx.Model(&models.FundableItem{}).
		Where("id = ? AND quantity_funded = ? AND pool_funded_cents = ? AND pool_contributor_count = ? AND fulfillment_status = ?",
			item.ID, prev.QuantityFunded, prev.PoolFundedCents, prev.PoolContributorCount, prev.FulfillmentStatus).
		Updates(map[string]any{
			"quantity_funded":        item.QuantityFunded,
			"pool_funded_cents":      item.PoolFundedCents,
			"pool_contributor_count": item.PoolContributorCount,
			"pool_completed_at":      item.PoolCompletedAt,
			"fulfillment_status":     item.FulfillmentStatus,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateProviderRefs caches the lazily created payment-provider product and
// price ids on the item row.
func (r *Repository) UpdateProviderRefs(ctx context.Context, id uuid.UUID, productID, priceID string) error {
	return r.db.WithContext(ctx).Model(&models.FundableItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stripe_product_id": productID,
			"stripe_price_id":   priceID,
		}).Error
}

// CompareAndSetFulfillment advances fulfillment status only when the row still
// holds the expected status. Returns false when another writer won.
func (r *Repository) CompareAndSetFulfillment(tx *gorm.DB, id uuid.UUID, from, to enums.FulfillmentStatus, orderID *uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	updates := map[string]any{"fulfillment_status": to}
	if orderID != nil {
		updates["order_id"] = *orderID
	}
	res := tx.Model(&models.FundableItem{}).
		Where("id = ? AND fulfillment_status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
