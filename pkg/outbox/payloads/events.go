package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/manafoundation/wishlist-backend/pkg/enums"
	"github.com/manafoundation/wishlist-backend/pkg/types"
)

// DonationRecordedEvent is emitted once per ledger entry when a payment lands.
type DonationRecordedEvent struct {
	DonationID  uuid.UUID          `json:"donation_id"`
	Kind        enums.DonationKind `json:"kind"`
	ItemID      *uuid.UUID         `json:"item_id,omitempty"`
	ItemTitle   string             `json:"item_title,omitempty"`
	AmountCents int64              `json:"amount_cents"`
	DonorEmail  string             `json:"donor_email"`
	DonorName   string             `json:"donor_name,omitempty"`
	Program     string             `json:"program,omitempty"`
}

// ReceiptPendingEvent tells the notification worker to send a thank-you receipt.
type ReceiptPendingEvent struct {
	DonationID  uuid.UUID          `json:"donation_id"`
	Kind        enums.DonationKind `json:"kind"`
	DonorEmail  string             `json:"donor_email"`
	DonorName   string             `json:"donor_name,omitempty"`
	AmountCents int64              `json:"amount_cents"`
	ItemTitle   string             `json:"item_title,omitempty"`
	Program     string             `json:"program,omitempty"`
}

// ItemFullyFundedEvent fires exactly once, on the donation that crosses an
// item's funding goal.
type ItemFullyFundedEvent struct {
	ItemID           uuid.UUID  `json:"item_id"`
	Title            string     `json:"title"`
	TriggerDonation  uuid.UUID  `json:"trigger_donation_id"`
	FundedAt         time.Time  `json:"funded_at"`
	QuantityNeeded   int        `json:"quantity_needed"`
	QuantityFunded   int        `json:"quantity_funded"`
	PoolFundedCents  int64      `json:"pool_funded_cents,omitempty"`
	PoolGoalCents    int64      `json:"pool_goal_cents,omitempty"`
	PoolCompletedAt  *time.Time `json:"pool_completed_at,omitempty"`
	ContributorCount int        `json:"contributor_count,omitempty"`
}

// OrderCreatedEvent carries everything the operator needs to place the
// purchase with the vendor.
type OrderCreatedEvent struct {
	OrderID         uuid.UUID           `json:"order_id"`
	ItemIDs         []uuid.UUID         `json:"item_ids"`
	VendorName      string              `json:"vendor_name"`
	VendorURL       string              `json:"vendor_url,omitempty"`
	TotalCents      int64               `json:"total_cents"`
	FundingSource   enums.FundingSource `json:"funding_source"`
	ShippingAddress types.Address       `json:"shipping_address"`
	Origin          enums.OrderOrigin   `json:"origin"`
	CreatedAt       time.Time           `json:"created_at"`
}
