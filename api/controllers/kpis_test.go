package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evermark/servicedesk-backend/internal/kpi"
	"github.com/evermark/servicedesk-backend/pkg/enums"
)

type testKpiService struct {
	computeFn func(ctx context.Context, filter kpi.Filter) (*kpi.Report, error)
}

func (s *testKpiService) Compute(ctx context.Context, filter kpi.Filter) (*kpi.Report, error) {
	if s.computeFn != nil {
		return s.computeFn(ctx, filter)
	}
	return &kpi.Report{}, nil
}

func TestKpiReportParsesFilters(t *testing.T) {
	var captured kpi.Filter
	svc := &testKpiService{
		computeFn: func(_ context.Context, filter kpi.Filter) (*kpi.Report, error) {
			captured = filter
			rate := 50.0
			return &kpi.Report{
				TotalCases:         4,
				OpenCases:          2,
				WarrantyHitRatePct: &rate,
				GeneratedAt:        time.Now().UTC(),
			}, nil
		},
	}

	target := "/api/v1/kpis?source=shopify_webhook&warranty_status=in_warranty" +
		"&assigned_technician_email=Tech@Example.com" +
		"&created_from=2026-08-01T00:00:00Z&created_to=2026-08-31T00:00:00Z"
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()
	KpiReport(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Source == nil || *captured.Source != enums.RmaSourceShopifyWebhook {
		t.Fatalf("source filter = %v", captured.Source)
	}
	if captured.WarrantyStatus == nil || *captured.WarrantyStatus != enums.WarrantyStatusInWarranty {
		t.Fatalf("warranty filter = %v", captured.WarrantyStatus)
	}
	if captured.AssignedTechnicianEmail == nil || *captured.AssignedTechnicianEmail != "tech@example.com" {
		t.Fatalf("technician filter = %v", captured.AssignedTechnicianEmail)
	}
	if captured.CreatedFrom == nil || !captured.CreatedFrom.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("created_from = %v", captured.CreatedFrom)
	}
	if captured.CreatedTo == nil || !captured.CreatedTo.Equal(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("created_to = %v", captured.CreatedTo)
	}

	var envelope struct {
		Data struct {
			TotalCases         int      `json:"total_cases"`
			OpenCases          int      `json:"open_cases"`
			WarrantyHitRatePct *float64 `json:"warranty_hit_rate_pct"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.TotalCases != 4 || envelope.Data.OpenCases != 2 {
		t.Fatalf("report = %+v", envelope.Data)
	}
	if envelope.Data.WarrantyHitRatePct == nil || *envelope.Data.WarrantyHitRatePct != 50.0 {
		t.Fatalf("warranty rate = %v", envelope.Data.WarrantyHitRatePct)
	}
}

func TestKpiReportEmptyFiltersPassThrough(t *testing.T) {
	var captured kpi.Filter
	svc := &testKpiService{
		computeFn: func(_ context.Context, filter kpi.Filter) (*kpi.Report, error) {
			captured = filter
			return &kpi.Report{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/kpis", nil)
	resp := httptest.NewRecorder()
	KpiReport(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if captured.Source != nil || captured.WarrantyStatus != nil || captured.Priority != nil {
		t.Fatalf("expected empty filter, got %+v", captured)
	}
}

func TestKpiReportRejectsBadTimestamp(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/kpis?created_from=yesterday", nil)
	resp := httptest.NewRecorder()
	KpiReport(&testKpiService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if errorCodeOf(t, resp.Body.Bytes()) != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error code: %s", resp.Body.String())
	}
}

func TestKpiReportRejectsBadSource(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/kpis?source=fax", nil)
	resp := httptest.NewRecorder()
	KpiReport(&testKpiService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
