package logging

import (
	"context"

	"github.com/google/uuid"
)

// GetRequestIDFromCtx returns the request id carried by the context, or an
// empty string when none is set.
func GetRequestIDFromCtx(ctx context.Context) string {
	if s, ok := ctx.Value(reqKey).(string); ok {
		return s
	}
	return ""
}

func MakeContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, reqKey, requestID)
}

// MakeContextWithNewRequestID stamps the context with a fresh uuid, one per
// CLI invocation.
func MakeContextWithNewRequestID(ctx context.Context) context.Context {
	return MakeContextWithRequestID(ctx, uuid.New().String())
}
