package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/manafoundation/wishlist-backend/pkg/enums"
	"github.com/manafoundation/wishlist-backend/pkg/types"
)

// OrderLineItem is the purchase snapshot stored on a fulfillment order.
type OrderLineItem struct {
	ItemID         uuid.UUID `json:"item_id"`
	Title          string    `json:"title"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	TotalCents     int64     `json:"total_cents"`
}

// FulfillmentOrder is the purchase record generated once an item is fully
// funded. Created only by the order sweep; status advanced only by operators.
type FulfillmentOrder struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID          uuid.UUID           `gorm:"column:item_id;type:uuid;not null;index:fulfillment_orders_item_id_idx"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'processing'"`
	Origin          enums.OrderOrigin   `gorm:"column:origin;type:text;not null;default:'auto'"`
	Items           []OrderLineItem     `gorm:"column:items;type:jsonb;serializer:json"`
	VendorName      string              `gorm:"column:vendor_name"`
	VendorURL       string              `gorm:"column:vendor_url"`
	ShippingAddress types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	TotalCents      int64               `gorm:"column:total_cents;not null"`
	FundingSource   enums.FundingSource `gorm:"column:funding_source;type:text;not null"`
	TrackingNumber  *string             `gorm:"column:tracking_number"`
	Notes           *string             `gorm:"column:notes"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
