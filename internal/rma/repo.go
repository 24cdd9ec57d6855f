package rma

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an RMA case repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, rmaCase *models.RmaCase) error {
	return r.db.WithContext(ctx).Create(rmaCase).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RmaCase, error) {
	var rmaCase models.RmaCase
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&rmaCase).Error
	if err != nil {
		return nil, err
	}
	return &rmaCase, nil
}

func (r *repository) FindOpenByShopifyReturnID(ctx context.Context, returnID string) (*models.RmaCase, error) {
	var rmaCase models.RmaCase
	err := r.db.WithContext(ctx).
		Where("shopify_return_id = ?", returnID).
		Where("status <> ?", enums.RmaCaseStatusBackToCustomer).
		Order("created_at ASC").
		First(&rmaCase).Error
	if err != nil {
		return nil, err
	}
	return &rmaCase, nil
}

func (r *repository) FindOpenByOrderAndSerial(ctx context.Context, orderID, serialNumber string) (*models.RmaCase, error) {
	var rmaCase models.RmaCase
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Where("serial_number = ?", serialNumber).
		Where("status <> ?", enums.RmaCaseStatusBackToCustomer).
		Order("created_at ASC").
		First(&rmaCase).Error
	if err != nil {
		return nil, err
	}
	return &rmaCase, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.RmaCase{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.RmaCase, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.RmaCase{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.WarrantyStatus != nil {
		query = query.Where("warranty_status = ?", *filter.WarrantyStatus)
	}
	if filter.Priority != nil {
		query = query.Where("priority = ?", *filter.Priority)
	}
	if filter.AssignedTechnicianEmail != nil {
		query = query.Where("assigned_technician_email = ?", *filter.AssignedTechnicianEmail)
	}
	if filter.SerialNumber != nil {
		query = query.Where("serial_number = ?", *filter.SerialNumber)
	}
	if filter.CustomerEmail != nil {
		query = query.Where("lower(customer_email) = lower(?)", *filter.CustomerEmail)
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		needle := "%" + strings.ToLower(strings.TrimSpace(*filter.Search)) + "%"
		query = query.Where(
			`lower(coalesce(order_id, '')) LIKE ?
			OR lower(coalesce(order_name, '')) LIKE ?
			OR lower(coalesce(serial_number, '')) LIKE ?
			OR lower(coalesce(issue_summary, '')) LIKE ?
			OR lower(coalesce(customer_name, '')) LIKE ?
			OR lower(coalesce(customer_email, '')) LIKE ?`,
			needle, needle, needle, needle, needle, needle,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var cases []models.RmaCase
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&cases).Error
	if err != nil {
		return nil, 0, err
	}
	return cases, total, nil
}

// ListEscalatable returns open cases past their SLA due date that are not
// already urgent, oldest due date first.
func (r *repository) ListEscalatable(ctx context.Context, asOf time.Time, limit int) ([]models.RmaCase, error) {
	var cases []models.RmaCase
	err := r.db.WithContext(ctx).
		Where("status <> ?", enums.RmaCaseStatusBackToCustomer).
		Where("priority <> ?", enums.RmaPriorityUrgent).
		Where("sla_due_at IS NOT NULL AND sla_due_at < ?", asOf).
		Order("sla_due_at ASC").
		Limit(limit).
		Find(&cases).Error
	if err != nil {
		return nil, err
	}
	return cases, nil
}

// MarkUrgent bumps a still-open, still-overdue case to urgent. The conditions
// are repeated in the WHERE clause so a case that closed or was escalated
// between list and update is skipped, reported by a zero row count.
func (r *repository) MarkUrgent(ctx context.Context, id uuid.UUID, asOf time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RmaCase{}).
		Where("id = ?", id).
		Where("status <> ?", enums.RmaCaseStatusBackToCustomer).
		Where("priority <> ?", enums.RmaPriorityUrgent).
		Where("sla_due_at IS NOT NULL AND sla_due_at < ?", asOf).
		Update("priority", enums.RmaPriorityUrgent)
	return res.RowsAffected, res.Error
}
