package models

import (
	"time"

	"github.com/google/uuid"
)

// OverfundingNote records the excess when a pool contribution pushes funding
// past the goal. Written for admin review, never consumed by the pipeline.
type OverfundingNote struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID      uuid.UUID  `gorm:"column:item_id;type:uuid;not null;index:overfunding_notes_item_id_idx"`
	ItemTitle   string     `gorm:"column:item_title;not null"`
	DonationID  *uuid.UUID `gorm:"column:donation_id;type:uuid"`
	ExcessCents int64      `gorm:"column:excess_cents;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
