package obscontext

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorKey     contextKey = "actor"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the acting user identifier, or "SYSTEM" when the
// operation runs without a user (schedulers, compensations).
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return "SYSTEM"
	}
	if v, ok := ctx.Value(actorKey).(string); ok && v != "" {
		return v
	}
	return "SYSTEM"
}
