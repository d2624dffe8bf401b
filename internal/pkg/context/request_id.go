package context

import "context"

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID stores the id assigned by the request-id middleware.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the request id, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// CorrelationID ties work started by a request (audit lines, published
// account events) back to it. Background jobs such as the token sweep have
// none and get the fallback.
func CorrelationID(ctx context.Context, fallback string) string {
	if id := GetRequestID(ctx); id != "" {
		return id
	}
	return fallback
}
