package services

import "context"

type contextKey string

const (
	batchIDKey   contextKey = "batch_id"
	urlKey       contextKey = "url"
	identityKey  contextKey = "identity"
	requestIDKey contextKey = "request_id"
)

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithBatchID annotates context with the capture batch identifier.
func WithBatchID(ctx context.Context, id string) context.Context {
	return withString(ctx, batchIDKey, id)
}

// BatchIDFromContext extracts the capture batch identifier if present.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, batchIDKey)
}

// WithURL annotates context with the page currently being captured.
func WithURL(ctx context.Context, url string) context.Context {
	return withString(ctx, urlKey, url)
}

// URLFromContext returns the page URL if present.
func URLFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, urlKey)
}

// WithIdentity annotates context with the thumbnail identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return withString(ctx, identityKey, identity)
}

// IdentityFromContext returns the thumbnail identity if present.
func IdentityFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, identityKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}
