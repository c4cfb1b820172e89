package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/manafoundation/wishlist-backend/pkg/enums"
	"github.com/manafoundation/wishlist-backend/pkg/types"
)

// Donor aggregates lifetime giving per normalized contact address.
type Donor struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email         string          `gorm:"column:email;not null;uniqueIndex:donors_email_key"`
	Name          string          `gorm:"column:name;not null;default:'Anonymous'"`
	Tier          enums.DonorTier `gorm:"column:tier;type:text;not null;default:'general'"`
	Tags          types.StringSet `gorm:"column:tags;type:jsonb;serializer:json"`
	LifetimeCents int64           `gorm:"column:lifetime_cents;not null;default:0"`
	DonationCount int             `gorm:"column:donation_count;not null;default:0"`
	Notes         string          `gorm:"column:notes"`
	LastContactAt *time.Time      `gorm:"column:last_contact_at"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
