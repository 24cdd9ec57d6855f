package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	webhookcontrollers "github.com/evermark/servicedesk-backend/api/controllers/webhooks"
	"github.com/evermark/servicedesk-backend/internal/idempotency"
	"github.com/evermark/servicedesk-backend/internal/kpi"
	"github.com/evermark/servicedesk-backend/internal/notify"
	"github.com/evermark/servicedesk-backend/internal/recommend"
	"github.com/evermark/servicedesk-backend/internal/rma"
	"github.com/evermark/servicedesk-backend/internal/serials"
	shopifywebhook "github.com/evermark/servicedesk-backend/internal/webhooks/shopify"
	"github.com/evermark/servicedesk-backend/pkg/config"
	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
	"github.com/evermark/servicedesk-backend/pkg/logger"
	"github.com/evermark/servicedesk-backend/pkg/redis"
	"github.com/evermark/servicedesk-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubCaseService struct {
	createFn func(ctx context.Context, input rma.CreateCaseInput) (*rma.CreateCaseResult, error)
	listFn   func(ctx context.Context, filter rma.ListFilter) (*rma.CaseList, error)
}

func (s *stubCaseService) Create(ctx context.Context, input rma.CreateCaseInput) (*rma.CreateCaseResult, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return &rma.CreateCaseResult{Case: &models.RmaCase{ID: uuid.New(), Status: enums.RmaCaseStatusReceived}}, nil
}

func (s *stubCaseService) Update(ctx context.Context, id uuid.UUID, input rma.UpdateCaseInput) (*models.RmaCase, error) {
	return &models.RmaCase{ID: id, Status: enums.RmaCaseStatusReceived}, nil
}

func (s *stubCaseService) Get(ctx context.Context, id uuid.UUID) (*rma.CaseDetail, error) {
	return &rma.CaseDetail{Case: models.RmaCase{ID: id, Status: enums.RmaCaseStatusReceived}}, nil
}

func (s *stubCaseService) List(ctx context.Context, filter rma.ListFilter) (*rma.CaseList, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return &rma.CaseList{}, nil
}

type stubSerialService struct {
	historyFn func(ctx context.Context, serialNumber string) (*serials.History, error)
}

func (s *stubSerialService) UpsertTx(ctx context.Context, tx *gorm.DB, input serials.UpsertInput) (*models.SerialRegistry, error) {
	return nil, nil
}

func (s *stubSerialService) AppendEventTx(ctx context.Context, tx *gorm.DB, input serials.AppendEventInput) (*models.SerialServiceEvent, error) {
	return nil, nil
}

func (s *stubSerialService) AppendEvent(ctx context.Context, serialNumber string, input serials.AppendEventInput) (*models.SerialServiceEvent, error) {
	return &models.SerialServiceEvent{ID: uuid.New(), EventType: input.EventType, Summary: input.Summary}, nil
}

func (s *stubSerialService) History(ctx context.Context, serialNumber string) (*serials.History, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, serialNumber)
	}
	return &serials.History{Registry: models.SerialRegistry{ID: uuid.New(), SerialNumber: serialNumber}}, nil
}

type stubKpiService struct{}

func (stubKpiService) Compute(ctx context.Context, filter kpi.Filter) (*kpi.Report, error) {
	return &kpi.Report{GeneratedAt: time.Now().UTC()}, nil
}

type stubRecommendService struct {
	recommendFn func(ctx context.Context, caseID uuid.UUID, actorEmail *string) (*types.AiRecommendation, error)
}

func (s *stubRecommendService) Recommend(ctx context.Context, caseID uuid.UUID, actorEmail *string) (*types.AiRecommendation, error) {
	if s.recommendFn != nil {
		return s.recommendFn(ctx, caseID, actorEmail)
	}
	return &types.AiRecommendation{Recommendation: "monitor", Confidence: 0.5}, nil
}

type stubNotifyService struct{}

func (stubNotifyService) Notify(ctx context.Context, caseID uuid.UUID, input notify.Input) (*notify.Result, error) {
	return &notify.Result{}, nil
}

type stubShopifyService struct {
	handleFn func(ctx context.Context, topic string, event *shopifywebhook.ReturnEvent) (*shopifywebhook.Result, error)
}

func (s *stubShopifyService) HandleReturnCreated(ctx context.Context, topic string, event *shopifywebhook.ReturnEvent) (*shopifywebhook.Result, error) {
	if s.handleFn != nil {
		return s.handleFn(ctx, topic, event)
	}
	return &shopifywebhook.Result{}, nil
}

type routerStubs struct {
	cases     rma.Service
	serials   serials.Service
	kpis      kpi.Service
	recommend recommend.Service
	notify    notify.Service
	shopify   webhookcontrollers.ShopifyWebhookService
	guard     *idempotency.Service
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		RateLimit: config.RateLimitConfig{
			Window:         time.Minute,
			IPLimit:        120,
			WebhookIPLimit: 600,
		},
	}
}

func newTestRouter(cfg *config.Config, stubs routerStubs) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Output: io.Discard})
	if stubs.cases == nil {
		stubs.cases = &stubCaseService{}
	}
	if stubs.serials == nil {
		stubs.serials = &stubSerialService{}
	}
	if stubs.kpis == nil {
		stubs.kpis = stubKpiService{}
	}
	if stubs.recommend == nil {
		stubs.recommend = &stubRecommendService{}
	}
	if stubs.notify == nil {
		stubs.notify = stubNotifyService{}
	}
	if stubs.shopify == nil {
		stubs.shopify = &stubShopifyService{}
	}
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		stubs.cases,
		stubs.serials,
		stubs.kpis,
		stubs.recommend,
		stubs.notify,
		stubs.shopify,
		stubs.guard,
		nil, // http metrics disabled in routing tests
	)
}

func newTestGuard(t *testing.T) *idempotency.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ddl := `
CREATE TABLE IF NOT EXISTS idempotency_records (
  id TEXT PRIMARY KEY,
  endpoint TEXT NOT NULL,
  idempotency_key TEXT NOT NULL,
  request_hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'in_progress',
  status_code INTEGER,
  response_body BLOB,
  created_at DATETIME,
  completed_at DATETIME,
  UNIQUE (endpoint, idempotency_key)
);`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create idempotency table: %v", err)
	}

	svc, err := idempotency.NewService(idempotency.NewRepository(db), 15*time.Minute)
	if err != nil {
		t.Fatalf("build guard: %v", err)
	}
	return svc
}

func caseCreateBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"source":         "manual",
		"customer_name":  "Dana Fields",
		"customer_email": "dana@example.com",
		"issue_summary":  "no sound from left channel",
		"serial_number":  "SN-ROUTER-1",
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return body
}

func TestHealthLiveSetsEnvHeader(t *testing.T) {
	router := newTestRouter(testConfig(), routerStubs{})
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-ServiceDesk-Env"); got != "test" {
		t.Fatalf("env header = %q", got)
	}
}

func TestHealthReadyReportsRedisOutage(t *testing.T) {
	router := newTestRouter(testConfig(), routerStubs{})
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with unreachable redis got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	router := newTestRouter(testConfig(), routerStubs{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "go_goroutines") {
		t.Fatalf("expected runtime metrics in exposition, got: %.200s", resp.Body.String())
	}
}

func TestCaseCreateRequiresIdempotencyKey(t *testing.T) {
	router := newTestRouter(testConfig(), routerStubs{guard: newTestGuard(t)})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cases", bytes.NewReader(caseCreateBody(t)))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without key got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}
}

func TestCaseCreateReplaysDuplicateKey(t *testing.T) {
	calls := 0
	caseID := uuid.New()
	stub := &stubCaseService{
		createFn: func(_ context.Context, _ rma.CreateCaseInput) (*rma.CreateCaseResult, error) {
			calls++
			return &rma.CreateCaseResult{Case: &models.RmaCase{ID: caseID, Status: enums.RmaCaseStatusReceived}}, nil
		},
	}
	router := newTestRouter(testConfig(), routerStubs{cases: stub, guard: newTestGuard(t)})

	body := caseCreateBody(t)
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cases", bytes.NewReader(body))
		req.Header.Set("Idempotency-Key", "router-replay-1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("first call expected 201 got %d: %s", first.Code, first.Body.String())
	}

	second := send()
	if second.Code != http.StatusCreated {
		t.Fatalf("replay expected 201 got %d: %s", second.Code, second.Body.String())
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay body differs:\nfirst:  %s\nsecond: %s", first.Body.String(), second.Body.String())
	}
	if calls != 1 {
		t.Fatalf("service executed %d times, want 1", calls)
	}
}

func TestCaseCreateRejectsKeyReuseWithDifferentBody(t *testing.T) {
	router := newTestRouter(testConfig(), routerStubs{guard: newTestGuard(t)})

	first := httptest.NewRequest(http.MethodPost, "/api/v1/cases", bytes.NewReader(caseCreateBody(t)))
	first.Header.Set("Idempotency-Key", "router-conflict-1")
	firstResp := httptest.NewRecorder()
	router.ServeHTTP(firstResp, first)
	if firstResp.Code != http.StatusCreated {
		t.Fatalf("first call expected 201 got %d", firstResp.Code)
	}

	altered, err := json.Marshal(map[string]any{
		"source":         "manual",
		"customer_name":  "Dana Fields",
		"customer_email": "dana@example.com",
		"issue_summary":  "different complaint entirely",
	})
	if err != nil {
		t.Fatalf("marshal altered body: %v", err)
	}
	second := httptest.NewRequest(http.MethodPost, "/api/v1/cases", bytes.NewReader(altered))
	second.Header.Set("Idempotency-Key", "router-conflict-1")
	secondResp := httptest.NewRecorder()
	router.ServeHTTP(secondResp, second)

	if secondResp.Code != http.StatusConflict {
		t.Fatalf("expected 409 on body mismatch got %d: %s", secondResp.Code, secondResp.Body.String())
	}
}

func TestOperatorHeaderReachesListFilter(t *testing.T) {
	var captured rma.ListFilter
	stub := &stubCaseService{
		listFn: func(_ context.Context, filter rma.ListFilter) (*rma.CaseList, error) {
			captured = filter
			return &rma.CaseList{}, nil
		},
	}
	router := newTestRouter(testConfig(), routerStubs{cases: stub})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases?mine=true", nil)
	req.Header.Set("X-Operator-Email", "Tech@Example.com")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.AssignedTechnicianEmail == nil || *captured.AssignedTechnicianEmail != "tech@example.com" {
		t.Fatalf("operator did not reach filter: %v", captured.AssignedTechnicianEmail)
	}
}

func TestSerialHistoryRouteBindsParam(t *testing.T) {
	var captured string
	stub := &stubSerialService{
		historyFn: func(_ context.Context, serialNumber string) (*serials.History, error) {
			captured = serialNumber
			return &serials.History{Registry: models.SerialRegistry{ID: uuid.New(), SerialNumber: serialNumber}}, nil
		},
	}
	router := newTestRouter(testConfig(), routerStubs{serials: stub})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/serials/SN-ROUTE-9/history", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured != "SN-ROUTE-9" {
		t.Fatalf("serial param = %q", captured)
	}
}

func TestRecommendationRouteGuarded(t *testing.T) {
	caseID := uuid.New()
	var gotCaseID uuid.UUID
	stub := &stubRecommendService{
		recommendFn: func(_ context.Context, id uuid.UUID, _ *string) (*types.AiRecommendation, error) {
			gotCaseID = id
			return &types.AiRecommendation{Recommendation: "repair", Confidence: 0.9}, nil
		},
	}
	router := newTestRouter(testConfig(), routerStubs{recommend: stub, guard: newTestGuard(t)})

	bare := httptest.NewRequest(http.MethodPost, "/api/v1/cases/"+caseID.String()+"/recommendation", nil)
	bareResp := httptest.NewRecorder()
	router.ServeHTTP(bareResp, bare)
	if bareResp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without key got %d", bareResp.Code)
	}

	keyed := httptest.NewRequest(http.MethodPost, "/api/v1/cases/"+caseID.String()+"/recommendation", nil)
	keyed.Header.Set("Idempotency-Key", "router-reco-1")
	keyedResp := httptest.NewRecorder()
	router.ServeHTTP(keyedResp, keyed)

	if keyedResp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", keyedResp.Code, keyedResp.Body.String())
	}
	if gotCaseID != caseID {
		t.Fatalf("case id = %s want %s", gotCaseID, caseID)
	}
}

func TestKpiRouteResponds(t *testing.T) {
	router := newTestRouter(testConfig(), routerStubs{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/kpis", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestShopifyWebhookRouteBypassesGuard(t *testing.T) {
	called := false
	stub := &stubShopifyService{
		handleFn: func(_ context.Context, topic string, event *shopifywebhook.ReturnEvent) (*shopifywebhook.Result, error) {
			called = true
			return &shopifywebhook.Result{}, nil
		},
	}
	router := newTestRouter(testConfig(), routerStubs{shopify: stub, guard: newTestGuard(t)})

	body, err := json.Marshal(map[string]any{"id": 42, "order_id": 7})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !called {
		t.Fatal("webhook service not reached")
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	router := newTestRouter(testConfig(), routerStubs{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
