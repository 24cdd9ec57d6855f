package middleware

import "context"

type contextKey string

const ctxOperatorEmail contextKey = "operator_email"

// OperatorEmailFromContext returns the operator identity stashed by the
// Operator middleware, or "" when the header was absent.
func OperatorEmailFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxOperatorEmail).(string); ok {
		return v
	}
	return ""
}

// WithOperatorEmail injects the operator identity into the context.
func WithOperatorEmail(ctx context.Context, email string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxOperatorEmail, email)
}
