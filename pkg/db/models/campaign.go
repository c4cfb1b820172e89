package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign is a fundraising event that general gifts can attribute to.
type Campaign struct {
	ID                     uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                   string    `gorm:"column:name;not null"`
	Program                string    `gorm:"column:program;not null;default:'General'"`
	FundraisingGoalCents   int64     `gorm:"column:fundraising_goal_cents;not null;default:0"`
	FundraisingRaisedCents int64     `gorm:"column:fundraising_raised_cents;not null;default:0"`
	CreatedAt              time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
