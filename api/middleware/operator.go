package middleware

import (
	"net/http"
	"strings"

	"github.com/evermark/servicedesk-backend/pkg/logger"
)

const operatorEmailHeader = "X-Operator-Email"

// Operator stashes the operator identity set by the edge proxy. The header
// is optional; handlers that need provenance read it from the context.
func Operator(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := strings.ToLower(strings.TrimSpace(r.Header.Get(operatorEmailHeader)))
			if email == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithOperatorEmail(r.Context(), email)
			if logg != nil {
				ctx = logg.WithField(ctx, "operator", email)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
