package vendors

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/manafoundation/wishlist-backend/pkg/db/models"
)

// Repository reads admin-managed vendor records.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByVendorName returns the vendor config for a name, nil when the vendor
// has no record. Order generation falls back to the organization address in
// that case.
func (r *Repository) FindByVendorName(ctx context.Context, vendorName string) (*models.VendorConfig, error) {
	if vendorName == "" {
		return nil, nil
	}
	var vendor models.VendorConfig
	err := r.db.WithContext(ctx).First(&vendor, "vendor_name = ?", vendorName).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &vendor, nil
}

// List returns every vendor config ordered by display name.
func (r *Repository) List(ctx context.Context) ([]models.VendorConfig, error) {
	var rows []models.VendorConfig
	err := r.db.WithContext(ctx).Order("display_name ASC").Find(&rows).Error
	return rows, err
}
