package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/manafoundation/wishlist-backend/pkg/enums"
)

// ReconciliationGap records a captured payment that could not be applied,
// typically because its referenced item vanished. Money already moved
// externally, so these rows are an operator work queue, not an error log.
type ReconciliationGap struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StripeSessionID string             `gorm:"column:stripe_session_id;not null;uniqueIndex:reconciliation_gaps_session_key"`
	Kind            enums.DonationKind `gorm:"column:kind;type:text;not null"`
	AmountCents     int64              `gorm:"column:amount_cents;not null"`
	ItemID          *uuid.UUID         `gorm:"column:item_id;type:uuid"`
	DonorEmail      string             `gorm:"column:donor_email"`
	Reason          string             `gorm:"column:reason;not null"`
	ResolvedAt      *time.Time         `gorm:"column:resolved_at"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
}
