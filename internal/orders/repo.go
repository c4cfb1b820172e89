package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manafoundation/wishlist-backend/pkg/db/models"
	"github.com/manafoundation/wishlist-backend/pkg/enums"
)

// Repository persists fulfillment orders.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// InsertTx creates one order inside the caller's transaction.
func (r *Repository) InsertTx(tx *gorm.DB, order *models.FulfillmentOrder) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return tx.Create(order).Error
}

// FindByID loads one order, nil when missing.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.FulfillmentOrder, error) {
	var order models.FulfillmentOrder
	err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListByItem returns every order generated for one item, newest first.
func (r *Repository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]models.FulfillmentOrder, error) {
	var rows []models.FulfillmentOrder
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// List returns recent orders, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status *enums.OrderStatus, limit int) ([]models.FulfillmentOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var rows []models.FulfillmentOrder
	err := q.Find(&rows).Error
	return rows, err
}

// UpdateStatus advances an order's operator-owned status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus, tracking *string) error {
	updates := map[string]any{"status": status}
	if tracking != nil {
		updates["tracking_number"] = *tracking
	}
	return r.db.WithContext(ctx).Model(&models.FulfillmentOrder{}).
		Where("id = ?", id).
		Updates(updates).Error
}
