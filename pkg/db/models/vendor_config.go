package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/manafoundation/wishlist-backend/pkg/types"
)

// VendorConfig is the admin-managed vendor record keyed by vendor name.
type VendorConfig struct {
	ID                     uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorName             string        `gorm:"column:vendor_name;not null;uniqueIndex:vendor_configs_vendor_name_key"`
	DisplayName            string        `gorm:"column:display_name;not null"`
	AffiliateTag           *string       `gorm:"column:affiliate_tag"`
	DefaultShippingAddress types.Address `gorm:"column:default_shipping_address;type:jsonb;serializer:json"`
	CreatedAt              time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}
