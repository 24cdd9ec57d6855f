package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an idempotency repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, record *models.IdempotencyRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByEndpointAndKey(ctx context.Context, endpoint, key string) (*models.IdempotencyRecord, error) {
	var record models.IdempotencyRecord
	err := r.db.WithContext(ctx).
		Where("endpoint = ? AND idempotency_key = ?", endpoint, key).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// TakeoverStale atomically reclaims an in_progress row that predates the
// cutoff so a crashed execution's retry can proceed. Returns false when
// another caller finalized or reclaimed the row first.
func (r *repository) TakeoverStale(ctx context.Context, id uuid.UUID, requestHash string, cutoff, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.IdempotencyRecord{}).
		Where("id = ? AND status = ? AND created_at < ?", id, enums.IdempotencyStatusInProgress, cutoff).
		Updates(map[string]any{
			"request_hash":  requestHash,
			"status":        enums.IdempotencyStatusInProgress,
			"status_code":   nil,
			"response_body": nil,
			"completed_at":  nil,
			"created_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Finalize(ctx context.Context, id uuid.UUID, status enums.IdempotencyStatus, statusCode int, responseBody []byte, completedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.IdempotencyRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"status_code":   statusCode,
			"response_body": responseBody,
			"completed_at":  completedAt,
		}).Error
}

func (r *repository) PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []enums.IdempotencyStatus{
			enums.IdempotencyStatusCompleted,
			enums.IdempotencyStatusFailed,
		}, cutoff).
		Delete(&models.IdempotencyRecord{})
	return res.RowsAffected, res.Error
}

func (r *repository) PurgeStaleInProgressBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.IdempotencyStatusInProgress, cutoff).
		Delete(&models.IdempotencyRecord{})
	return res.RowsAffected, res.Error
}
