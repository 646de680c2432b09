package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextAdminKey ctxKey = "adminID"

func AdminIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	adminID, ok := ctx.Value(ContextAdminKey).(string)
	if !ok || adminID == "" {
		return "", false
	}
	return adminID, true
}

func ContextWithAdminID(ctx context.Context, adminID string) context.Context {
	return context.WithValue(ctx, ContextAdminKey, adminID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
