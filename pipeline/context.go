package pipeline

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// WithRequestID attaches a request identifier used in logs and spans.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the identifier stored by WithRequestID, or a fresh one.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
