package correlation

import (
	"context"

	"github.com/google/uuid"
)

type key int

const idKey key = 0

// NewID returns a fresh correlation ID.
func NewID() string {
	return uuid.New().String()
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey, id)
}

// ID returns the correlation ID carried by ctx, or "" if none is set.
func ID(ctx context.Context) string {
	if id, ok := ctx.Value(idKey).(string); ok {
		return id
	}
	return ""
}
