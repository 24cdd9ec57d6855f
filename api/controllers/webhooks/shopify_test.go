package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	shopifywebhook "github.com/evermark/servicedesk-backend/internal/webhooks/shopify"
	"github.com/evermark/servicedesk-backend/pkg/db/models"
	"github.com/evermark/servicedesk-backend/pkg/enums"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
	"github.com/evermark/servicedesk-backend/pkg/logger"
)

type testShopifyService struct {
	handleFn func(ctx context.Context, topic string, event *shopifywebhook.ReturnEvent) (*shopifywebhook.Result, error)
}

func (s *testShopifyService) HandleReturnCreated(ctx context.Context, topic string, event *shopifywebhook.ReturnEvent) (*shopifywebhook.Result, error) {
	if s.handleFn != nil {
		return s.handleFn(ctx, topic, event)
	}
	return &shopifywebhook.Result{}, nil
}

func webhookTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func signShopifyBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func shopifyReturnBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":       9001,
		"order_id": 551,
		"status":   "requested",
		"order":    map[string]any{"id": 551, "name": "#1042", "email": "buyer@example.com"},
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return body
}

func TestShopifyWebhookAcceptsSignedDelivery(t *testing.T) {
	secret := "shpss_test_secret"
	caseID := uuid.New()
	var gotTopic string
	var gotReturnID int64
	svc := &testShopifyService{
		handleFn: func(_ context.Context, topic string, event *shopifywebhook.ReturnEvent) (*shopifywebhook.Result, error) {
			gotTopic = topic
			gotReturnID = event.ID
			return &shopifywebhook.Result{
				Case: &models.RmaCase{ID: caseID, Status: enums.RmaCaseStatusReceived},
			}, nil
		},
	}

	body := shopifyReturnBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", bytes.NewReader(body))
	req.Header.Set(shopifyHmacHeader, signShopifyBody(body, secret))
	req.Header.Set(shopifyTopicHeader, "returns/create")
	resp := httptest.NewRecorder()
	ShopifyWebhook(svc, secret, webhookTestLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotTopic != "returns/create" {
		t.Fatalf("topic = %q", gotTopic)
	}
	if gotReturnID != 9001 {
		t.Fatalf("return id = %d", gotReturnID)
	}

	var envelope struct {
		Data struct {
			CaseID           *uuid.UUID `json:"case_id"`
			Status           *string    `json:"status"`
			Deduped          bool       `json:"deduped"`
			AlreadyProcessed bool       `json:"already_processed"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.CaseID == nil || *envelope.Data.CaseID != caseID {
		t.Fatalf("case_id = %v", envelope.Data.CaseID)
	}
	if envelope.Data.Status == nil || *envelope.Data.Status != "received" {
		t.Fatalf("status = %v", envelope.Data.Status)
	}
	if envelope.Data.Deduped || envelope.Data.AlreadyProcessed {
		t.Fatalf("fresh delivery flagged as duplicate: %+v", envelope.Data)
	}
}

func TestShopifyWebhookRejectsBadSignature(t *testing.T) {
	called := false
	svc := &testShopifyService{
		handleFn: func(_ context.Context, _ string, _ *shopifywebhook.ReturnEvent) (*shopifywebhook.Result, error) {
			called = true
			return &shopifywebhook.Result{}, nil
		},
	}

	body := shopifyReturnBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", bytes.NewReader(body))
	req.Header.Set(shopifyHmacHeader, signShopifyBody(body, "some-other-secret"))
	resp := httptest.NewRecorder()
	ShopifyWebhook(svc, "shpss_test_secret", webhookTestLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if called {
		t.Fatal("service called despite bad signature")
	}
}

func TestShopifyWebhookRejectsMissingSignature(t *testing.T) {
	body := shopifyReturnBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	ShopifyWebhook(&testShopifyService{}, "shpss_test_secret", webhookTestLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestShopifyWebhookEmptySecretSkipsVerification(t *testing.T) {
	called := false
	svc := &testShopifyService{
		handleFn: func(_ context.Context, _ string, _ *shopifywebhook.ReturnEvent) (*shopifywebhook.Result, error) {
			called = true
			return &shopifywebhook.Result{Deduped: true, AlreadyProcessed: true}, nil
		},
	}

	body := shopifyReturnBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	ShopifyWebhook(svc, "", webhookTestLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if !called {
		t.Fatal("service not called")
	}

	var envelope struct {
		Data struct {
			Deduped          bool `json:"deduped"`
			AlreadyProcessed bool `json:"already_processed"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data.Deduped || !envelope.Data.AlreadyProcessed {
		t.Fatalf("duplicate flags lost: %+v", envelope.Data)
	}
}

func TestShopifyWebhookRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", bytes.NewReader([]byte("{not json")))
	resp := httptest.NewRecorder()
	ShopifyWebhook(&testShopifyService{}, "", webhookTestLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
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

func TestShopifyWebhookPropagatesServiceError(t *testing.T) {
	svc := &testShopifyService{
		handleFn: func(_ context.Context, _ string, _ *shopifywebhook.ReturnEvent) (*shopifywebhook.Result, error) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "case store unavailable")
		},
	}

	body := shopifyReturnBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	ShopifyWebhook(svc, "", webhookTestLogger())(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d: %s", resp.Code, resp.Body.String())
	}
}
