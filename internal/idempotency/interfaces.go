package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
)

// Repository defines persistence operations for idempotency records.
type Repository interface {
	Insert(ctx context.Context, record *models.IdempotencyRecord) error
	FindByEndpointAndKey(ctx context.Context, endpoint, key string) (*models.IdempotencyRecord, error)
	TakeoverStale(ctx context.Context, id uuid.UUID, requestHash string, cutoff, now time.Time) (bool, error)
	Finalize(ctx context.Context, id uuid.UUID, status enums.IdempotencyStatus, statusCode int, responseBody []byte, completedAt time.Time) error
	PurgeTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeStaleInProgressBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
