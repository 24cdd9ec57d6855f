package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/evermark/servicedesk-backend/api/responses"
	"github.com/evermark/servicedesk-backend/internal/idempotency"
	pkgerrors "github.com/evermark/servicedesk-backend/pkg/errors"
	"github.com/evermark/servicedesk-backend/pkg/logger"
)

type routeMatcher func(string) bool

type idempotencyRule struct {
	method  string
	matcher routeMatcher
}

// Guarded surface: every mutation with external side effects or dedup
// semantics. Reads and the webhook intake (which carries its own guard)
// stay unguarded.
var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, matcher: matchExact("/api/v1/cases")},
	{method: http.MethodPatch, matcher: matchPrefix("/api/v1/cases/")},
	{method: http.MethodPost, matcher: matchPrefixSuffix("/api/v1/cases/", "/recommendation")},
	{method: http.MethodPost, matcher: matchPrefixSuffix("/api/v1/cases/", "/notify")},
}

// idempotencyGuard is the acquire/finalize slice of the DB-backed guard.
type idempotencyGuard interface {
	Acquire(ctx context.Context, endpoint, key, requestHash string) (*idempotency.Decision, error)
	Finalize(ctx context.Context, recordID uuid.UUID, statusCode int, responseBody []byte, failed bool) error
}

// Idempotency gives guarded routes at-most-once semantics. The first request
// under a key executes and its response is persisted; retries replay that
// response bit-for-bit. A retry with a different body is rejected, and a key
// whose first execution is still running is rejected until it finishes or its
// in-progress hold expires.
func Idempotency(guard idempotencyGuard, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if guard == nil || !routeGuarded(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			if idempotencyKey == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			endpoint := r.Method + " " + r.URL.Path
			decision, err := guard.Acquire(r.Context(), endpoint, idempotencyKey, idempotency.HashBody(body))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			switch decision.Outcome {
			case idempotency.OutcomeReplay:
				writeReplay(w, decision)
				return
			case idempotency.OutcomeConflict:
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
				return
			case idempotency.OutcomeInProgress:
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this idempotency key is still in progress"))
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := defaultStatus(rec.status)
			failed := status >= http.StatusBadRequest
			if err := guard.Finalize(r.Context(), decision.RecordID, status, rec.body.Bytes(), failed); err != nil {
				logError(r.Context(), logg, "finalize idempotency record", err)
			}
		})
	}
}

func writeReplay(w http.ResponseWriter, decision *idempotency.Decision) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(defaultStatus(decision.StatusCode))
	if len(decision.ResponseBody) > 0 {
		_, _ = w.Write(decision.ResponseBody)
	}
}

func defaultStatus(value int) int {
	if value == 0 {
		return http.StatusOK
	}
	return value
}

func routeGuarded(method, path string) bool {
	if path == "" {
		return false
	}
	for _, rule := range idempotencyRules {
		if rule.method != method {
			continue
		}
		if rule.matcher(path) {
			return true
		}
	}
	return false
}

func matchExact(path string) routeMatcher {
	return func(candidate string) bool {
		return candidate == path
	}
}

func matchPrefix(prefix string) routeMatcher {
	return func(candidate string) bool {
		return strings.HasPrefix(candidate, prefix)
	}
}

func matchPrefixSuffix(prefix, suffix string) routeMatcher {
	return func(candidate string) bool {
		return strings.HasPrefix(candidate, prefix) && strings.HasSuffix(candidate, suffix)
	}
}

// responseCapture records the status and body written by a guarded handler
// so the finalized record can replay them byte for byte. It forwards Flush
// but not Hijack: a hijacked connection bypasses the writer and leaves
// nothing to replay.
type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
