package serials

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/evermark/servicedesk-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a serials repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, registry *models.SerialRegistry) error {
	return r.db.WithContext(ctx).Create(registry).Error
}

// IncrementTouch bumps rma_count and refreshes last_rma_at in one statement.
// Brand/model land when non-empty; inventory_item_id keeps the first writer.
func (r *repository) IncrementTouch(ctx context.Context, serialNumber string, touch TouchUpdate) (int64, error) {
	updates := map[string]any{
		"rma_count":   gorm.Expr("rma_count + 1"),
		"last_rma_at": touch.LastRmaAt,
	}
	if touch.Brand != nil && *touch.Brand != "" {
		updates["brand"] = *touch.Brand
	}
	if touch.Model != nil && *touch.Model != "" {
		updates["model"] = *touch.Model
	}
	if touch.InventoryItemID != nil {
		updates["inventory_item_id"] = gorm.Expr("COALESCE(inventory_item_id, ?)", *touch.InventoryItemID)
	}

	res := r.db.WithContext(ctx).
		Model(&models.SerialRegistry{}).
		Where("serial_number = ?", serialNumber).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) FindBySerial(ctx context.Context, serialNumber string) (*models.SerialRegistry, error) {
	var registry models.SerialRegistry
	err := r.db.WithContext(ctx).
		Where("serial_number = ?", serialNumber).
		First(&registry).Error
	if err != nil {
		return nil, err
	}
	return &registry, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SerialRegistry, error) {
	var registry models.SerialRegistry
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&registry).Error
	if err != nil {
		return nil, err
	}
	return &registry, nil
}

func (r *repository) InsertEvent(ctx context.Context, event *models.SerialServiceEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListEventsByRegistry(ctx context.Context, registryID uuid.UUID) ([]models.SerialServiceEvent, error) {
	var events []models.SerialServiceEvent
	err := r.db.WithContext(ctx).
		Where("serial_registry_id = ?", registryID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
