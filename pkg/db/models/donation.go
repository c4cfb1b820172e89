package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/manafoundation/wishlist-backend/pkg/enums"
)

// Donation is the immutable ledger entry for one captured payment. The unique
// index on stripe_session_id is what makes webhook redelivery idempotent.
// Only the receipt_sent flag may change after creation.
type Donation struct {
	ID                    uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Kind                  enums.DonationKind `gorm:"column:kind;type:text;not null"`
	DonorName             string             `gorm:"column:donor_name;not null;default:'Anonymous'"`
	DonorEmail            string             `gorm:"column:donor_email;not null;index:donations_donor_email_idx"`
	AmountCents           int64              `gorm:"column:amount_cents;not null"`
	Program               string             `gorm:"column:program;not null;default:'General'"`
	ItemID                *uuid.UUID         `gorm:"column:item_id;type:uuid;index:donations_item_id_idx"`
	ItemTitle             *string            `gorm:"column:item_title"`
	CampaignID            *uuid.UUID         `gorm:"column:campaign_id;type:uuid"`
	QuantityPurchased     *int               `gorm:"column:quantity_purchased"`
	StripeSessionID       string             `gorm:"column:stripe_session_id;not null;uniqueIndex:donations_stripe_session_id_key"`
	StripePaymentIntentID *string            `gorm:"column:stripe_payment_intent_id"`
	StripeCustomerID      *string            `gorm:"column:stripe_customer_id"`
	ReceiptSent           bool               `gorm:"column:receipt_sent;not null;default:false"`
	CreatedAt             time.Time          `gorm:"column:created_at;autoCreateTime"`
}
