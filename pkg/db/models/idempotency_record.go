package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/evermark/servicedesk-backend/pkg/enums"
)

// IdempotencyRecord stores one guarded execution per (endpoint, key) pair.
// The unique index is the mechanism preventing duplicate side-effect
// execution under concurrent retries.
type IdempotencyRecord struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Endpoint       string                  `gorm:"column:endpoint;not null;uniqueIndex:idx_idempotency_records_endpoint_key"`
	IdempotencyKey string                  `gorm:"column:idempotency_key;not null;uniqueIndex:idx_idempotency_records_endpoint_key"`
	RequestHash    string                  `gorm:"column:request_hash;not null"`
	Status         enums.IdempotencyStatus `gorm:"column:status;type:idempotency_status;not null;default:'in_progress'"`
	StatusCode     *int                    `gorm:"column:status_code"`
	ResponseBody   []byte                  `gorm:"column:response_body"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	CompletedAt    *time.Time              `gorm:"column:completed_at"`
}
