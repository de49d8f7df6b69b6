package log

import (
	"context"

	"github.com/google/uuid"
)

type correlationIDType int

const requestIDKey correlationIDType = iota

// WithRequestID returns a context which knows its request ID.
// A request ID follows one unit of work, e.g. a gap fill or a storage node
// query, across goroutines.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithNewRequestID is WithRequestID with a random id.
func WithNewRequestID(ctx context.Context) context.Context {
	return WithRequestID(ctx, uuid.NewString())
}

func ExtractRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}
