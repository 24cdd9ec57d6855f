package rma

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/evermark/servicedesk-backend/pkg/db/models"
)

// Repository defines persistence operations for RMA cases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rmaCase *models.RmaCase) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RmaCase, error)
	FindOpenByShopifyReturnID(ctx context.Context, returnID string) (*models.RmaCase, error)
	FindOpenByOrderAndSerial(ctx context.Context, orderID, serialNumber string) (*models.RmaCase, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	List(ctx context.Context, filter ListFilter) ([]models.RmaCase, int64, error)
	ListEscalatable(ctx context.Context, asOf time.Time, limit int) ([]models.RmaCase, error)
	MarkUrgent(ctx context.Context, id uuid.UUID, asOf time.Time) (int64, error)
}
