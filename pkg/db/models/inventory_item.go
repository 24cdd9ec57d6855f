package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem is a read model over the merchandising catalog, used to
// validate case/registry links and enrich case detail views. The onboarding
// pipeline owns the full record.
type InventoryItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU       *string   `gorm:"column:sku;uniqueIndex:idx_inventory_items_sku"`
	Title     string    `gorm:"column:title;not null"`
	Brand     *string   `gorm:"column:brand"`
	Model     *string   `gorm:"column:model"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
