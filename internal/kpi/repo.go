package kpi

import (
	"context"

	"gorm.io/gorm"

	"github.com/evermark/servicedesk-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gorm-backed KPI repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListForRollup(ctx context.Context, filter Filter) ([]models.RmaCase, error) {
	query := r.db.WithContext(ctx).Model(&models.RmaCase{})
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
		query = query.Where("lower(assigned_technician_email) = lower(?)", *filter.AssignedTechnicianEmail)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var cases []models.RmaCase
	if err := query.Find(&cases).Error; err != nil {
		return nil, err
	}
	return cases, nil
}
