package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	ownerKey     ctxKey = "owner"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithOwner tags every log line of the request with the resolved cart owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey, owner)
}

func OwnerFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ownerKey).(string); ok {
		return v
	}
	return ""
}

// FromCtx returns logger with request_id and owner automatically added
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if owner := OwnerFrom(ctx); owner != "" {
		l = l.With(zap.String("owner", owner))
	}
	return l
}
