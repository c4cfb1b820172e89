package funding

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/manafoundation/wishlist-backend/pkg/db"
	"github.com/manafoundation/wishlist-backend/pkg/db/models"
)

// Repository persists the handler's side tables: overfunding notes and
// reconciliation gaps.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// InsertOverfundingNoteTx records pool excess inside the funding transaction.
func (r *Repository) InsertOverfundingNoteTx(tx *gorm.DB, note *models.OverfundingNote) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	return tx.Create(note).Error
}

// RecordGap files a reconciliation gap in its own transaction so it survives
// the rollback of the funding transaction that produced it. Redelivered
// events collapse onto the existing row via the session unique index.
func (r *Repository) RecordGap(ctx context.Context, gap *models.ReconciliationGap) error {
	if gap.ID == uuid.Nil {
		gap.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Create(gap).Error
	if err != nil && db.IsUniqueViolation(err, "stripe_session_id") {
		return nil
	}
	return err
}

// ListOpenGaps returns unresolved gaps, oldest first.
func (r *Repository) ListOpenGaps(ctx context.Context, limit int) ([]models.ReconciliationGap, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.ReconciliationGap
	err := r.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
