package models

import (
	"time"

	"github.com/google/uuid"
)

// SerialRegistry is the canonical per-serial-number history record. Rows are
// created lazily on the first case or tracking event referencing a serial
// and updated on every subsequent touch, never deleted.
type SerialRegistry struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SerialNumber string    `gorm:"column:serial_number;not null;uniqueIndex:idx_serial_registries_serial_number"`

	Brand *string `gorm:"column:brand"`
	Model *string `gorm:"column:model"`

	// InventoryItemID is set on first association and never cleared.
	InventoryItemID *uuid.UUID `gorm:"column:inventory_item_id;type:uuid"`

	// RmaCount is monotonically non-decreasing across the registry's life.
	RmaCount int `gorm:"column:rma_count;not null;default:0"`

	FirstSeenAt time.Time  `gorm:"column:first_seen_at;not null"`
	LastRmaAt   *time.Time `gorm:"column:last_rma_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
