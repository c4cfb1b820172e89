package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/manafoundation/wishlist-backend/pkg/enums"
)

// FundableItem is the durable funding record for one catalog entry. Funding
// counters are mutated only by the payment event handler; fulfillment status
// and the order back-reference only by the order sweep.
type FundableItem struct {
	ID                   uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title                string                  `gorm:"column:title;not null"`
	Program              string                  `gorm:"column:program;not null;default:'General'"`
	Category             string                  `gorm:"column:category"`
	UnitPriceCents       int64                   `gorm:"column:unit_price_cents;not null"`
	FundingMode          enums.FundingMode       `gorm:"column:funding_mode;type:text;not null;default:'unit'"`
	QuantityNeeded       int                     `gorm:"column:quantity_needed;not null;default:1"`
	QuantityFunded       int                     `gorm:"column:quantity_funded;not null;default:0"`
	PoolGoalCents        int64                   `gorm:"column:pool_goal_cents;not null;default:0"`
	PoolFundedCents      int64                   `gorm:"column:pool_funded_cents;not null;default:0"`
	PoolContributorCount int                     `gorm:"column:pool_contributor_count;not null;default:0"`
	PoolMinimumCents     int64                   `gorm:"column:pool_minimum_cents;not null;default:0"`
	PoolCompletedAt      *time.Time              `gorm:"column:pool_completed_at"`
	VendorName           string                  `gorm:"column:vendor_name"`
	VendorURL            string                  `gorm:"column:vendor_url"`
	StripeProductID      *string                 `gorm:"column:stripe_product_id"`
	StripePriceID        *string                 `gorm:"column:stripe_price_id"`
	FulfillmentStatus    enums.FulfillmentStatus `gorm:"column:fulfillment_status;type:text;not null;default:'unordered';index:fundable_items_fulfillment_status_idx"`
	OrderID              *uuid.UUID              `gorm:"column:order_id;type:uuid"`
	CreatedAt            time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
