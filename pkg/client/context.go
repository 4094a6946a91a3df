package client

import "context"

type ctxKeyRequestID struct{}

// RequestIDKey is the context key under which the request id is stored.
var RequestIDKey = ctxKeyRequestID{}

// WithRequestID returns a context whose outgoing backend requests carry id
// in the X-Request-Id header.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID extracts the request ID from the context.
// It returns the request ID as a string if present, otherwise returns an empty string.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}
