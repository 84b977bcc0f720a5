package types

import "context"

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

const sourceKey contextKey = "dispatch_source"

// WithDispatchSource tags ctx with the relay path doing the work.
func WithDispatchSource(ctx context.Context, s DispatchSource) context.Context {
	return context.WithValue(ctx, sourceKey, s)
}

// GetDispatchSource returns the tagged source, or "unknown".
func GetDispatchSource(ctx context.Context) DispatchSource {
	if s, ok := ctx.Value(sourceKey).(DispatchSource); ok {
		return s
	}
	return "unknown"
}
