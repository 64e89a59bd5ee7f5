// Package reqctx carries the request correlation ID through a context.
package reqctx

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ctxKey struct{}

// WithID returns a copy of ctx carrying id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID returns the correlation ID in ctx. IDs set by chi's RequestID middleware are honoured.
func ID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return middleware.GetReqID(ctx)
}

// Ensure returns ctx with a correlation ID, generating one when absent.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := ID(ctx); id != "" {
		return WithID(ctx, id), id
	}
	id := uuid.NewString()
	return WithID(ctx, id), id
}

// Logger returns l annotated with the correlation ID from ctx.
func Logger(ctx context.Context, l *zap.Logger) *zap.Logger {
	if id := ID(ctx); id != "" {
		return l.With(zap.String("request_id", id))
	}
	return l
}
