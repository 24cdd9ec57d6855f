package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/evermark/servicedesk-backend/api/responses"
	shopifywebhook "github.com/evermark/servicedesk-backend/internal/webhooks/shopify"
	"github.com/evermark/servicedesk-backend/pkg/enums"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
	"github.com/evermark/servicedesk-backend/pkg/logger"
)

const (
	shopifyHmacHeader  = "X-Shopify-Hmac-Sha256"
	shopifyTopicHeader = "X-Shopify-Topic"
)

type ShopifyWebhookService interface {
	HandleReturnCreated(ctx context.Context, topic string, event *shopifywebhook.ReturnEvent) (*shopifywebhook.Result, error)
}

type shopifyAck struct {
	CaseID           *uuid.UUID           `json:"case_id,omitempty"`
	Status           *enums.RmaCaseStatus `json:"status,omitempty"`
	Deduped          bool                 `json:"deduped"`
	AlreadyProcessed bool                 `json:"already_processed"`
}

// ShopifyWebhook ingests returns/create deliveries. An empty secret skips
// signature verification so local tunnels can post unsigned payloads.
func ShopifyWebhook(svc ShopifyWebhookService, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if secret != "" {
			sigHeader := r.Header.Get(shopifyHmacHeader)
			if sigHeader == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "shopify hmac header missing"))
				return
			}
			if !verifyShopifyHmac(payload, sigHeader, secret) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "shopify hmac verification failed"))
				return
			}
		}

		var event shopifywebhook.ReturnEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode return payload"))
			return
		}

		result, err := svc.HandleReturnCreated(ctx, r.Header.Get(shopifyTopicHeader), &event)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		ack := shopifyAck{
			Deduped:          result.Deduped,
			AlreadyProcessed: result.AlreadyProcessed,
		}
		if result.Case != nil {
			ack.CaseID = &result.Case.ID
			ack.Status = &result.Case.Status
		}

		if logg != nil && result.Case != nil {
			logg.Info(ctx, fmt.Sprintf("shopify return %d mapped to case %s", event.ID, result.Case.ID))
		}
		responses.WriteSuccess(w, ack)
	}
}

// verifyShopifyHmac checks the base64 HMAC-SHA256 digest Shopify signs the
// raw body with.
func verifyShopifyHmac(payload []byte, sigHeader, secret string) bool {
	expected, err := base64.StdEncoding.DecodeString(sigHeader)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
