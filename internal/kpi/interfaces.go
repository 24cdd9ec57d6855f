package kpi

import (
	"context"

	"github.com/evermark/servicedesk-backend/pkg/db/models"
)

// Repository loads the case rows the rollup folds over.
type Repository interface {
	ListForRollup(ctx context.Context, filter Filter) ([]models.RmaCase, error)
}
