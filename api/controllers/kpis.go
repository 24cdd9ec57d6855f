package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/evermark/servicedesk-backend/api/responses"
	"github.com/evermark/servicedesk-backend/internal/kpi"
	"github.com/evermark/servicedesk-backend/pkg/enums"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
	"github.com/evermark/servicedesk-backend/pkg/logger"
)

// KpiReport computes the operations rollup for the filtered case set.
func KpiReport(svc kpi.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "kpi service unavailable"))
			return
		}

		filter, err := kpiFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Compute(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}

func kpiFilter(r *http.Request) (kpi.Filter, error) {
	var filter kpi.Filter
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("source")); raw != "" {
		source, err := enums.ParseRmaSource(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid source filter")
		}
		filter.Source = &source
	}
	if raw := strings.TrimSpace(q.Get("warranty_status")); raw != "" {
		status, err := enums.ParseWarrantyStatus(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid warranty_status filter")
		}
		filter.WarrantyStatus = &status
	}
	if raw := strings.TrimSpace(q.Get("priority")); raw != "" {
		priority, err := enums.ParseRmaPriority(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid priority filter")
		}
		filter.Priority = &priority
	}
	if raw := strings.TrimSpace(q.Get("assigned_technician_email")); raw != "" {
		email := strings.ToLower(raw)
		filter.AssignedTechnicianEmail = &email
	}
	if raw := strings.TrimSpace(q.Get("created_from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "created_from must be RFC3339")
		}
		filter.CreatedFrom = &from
	}
	if raw := strings.TrimSpace(q.Get("created_to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "created_to must be RFC3339")
		}
		filter.CreatedTo = &to
	}

	return filter, nil
}
