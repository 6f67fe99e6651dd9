package outbox

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

// FetchDue returns unpublished events older than the coalesce window, oldest
// first. Events younger than the window stay queued so rapid successive
// changes to the same aggregate collapse into one notification.
func (r *Repository) FetchDue(limit, maxAttempts int, coalesceWindow time.Duration) ([]models.OutboxEvent, error) {
	cutoff := time.Now().Add(-coalesceWindow)
	var rows []models.OutboxEvent
	err := r.db.Where("published_at IS NULL").
		Where("attempt_count < ?", maxAttempts).
		Where("created_at <= ?", cutoff).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.OutboxEvent{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"published_at": time.Now(),
		}).Error
}

func (r *Repository) MarkFailed(id uuid.UUID, cause error) error {
	return r.db.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    cause.Error(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// DeletePublishedBefore prunes delivered events past the retention horizon.
func (r *Repository) DeletePublishedBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("published_at IS NOT NULL").
		Where("published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return result.RowsAffected, result.Error
}

// CountStuck reports unpublished events that exhausted their attempts.
func (r *Repository) CountStuck(maxAttempts int) (int64, error) {
	var count int64
	err := r.db.Model(&models.OutboxEvent{}).
		Where("published_at IS NULL").
		Where("attempt_count >= ?", maxAttempts).
		Count(&count).Error
	return count, err
}
