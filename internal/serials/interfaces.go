package serials

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/evermark/servicedesk-backend/pkg/db/models"
)

// Repository defines persistence operations for the serial registry and its
// service-event log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, registry *models.SerialRegistry) error
	IncrementTouch(ctx context.Context, serialNumber string, touch TouchUpdate) (int64, error)
	FindBySerial(ctx context.Context, serialNumber string) (*models.SerialRegistry, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.SerialRegistry, error)
	InsertEvent(ctx context.Context, event *models.SerialServiceEvent) error
	ListEventsByRegistry(ctx context.Context, registryID uuid.UUID) ([]models.SerialServiceEvent, error)
}

// TouchUpdate carries the refinements applied when a known serial is touched
// again. InventoryItemID only lands when the column is still null.
type TouchUpdate struct {
	LastRmaAt       time.Time
	Brand           *string
	Model           *string
	InventoryItemID *uuid.UUID
}
