package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggerFromContext_ReturnsStoredLogger(t *testing.T) {
	logger := slog.Default()
	ctx := MakeContextWithLogger(context.Background(), logger)

	got := GetLoggerFromContext(ctx)
	assert.NotNil(t, got)
}

func TestGetLoggerFromContext_FallsBackWithoutLogger(t *testing.T) {
	got := GetLoggerFromContext(context.Background())
	assert.NotNil(t, got)
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := MakeContextWithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", GetRequestIDFromCtx(ctx))

	assert.Empty(t, GetRequestIDFromCtx(context.Background()))
}

func TestMakeContextWithNewRequestID_Generates(t *testing.T) {
	ctx := MakeContextWithNewRequestID(context.Background())
	id := GetRequestIDFromCtx(ctx)
	require.NotEmpty(t, id)

	other := GetRequestIDFromCtx(MakeContextWithNewRequestID(context.Background()))
	assert.NotEqual(t, id, other)
}
