package slogpretty

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferedLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
	}.NewPrettyHandler(&buf)
	return slog.New(handler), &buf
}

func TestHandle_PrintsRecordAttrs(t *testing.T) {
	logger, buf := newBufferedLogger()

	logger.Info("stored", slog.String("name", "test.txt"))

	out := buf.String()
	assert.Contains(t, out, "stored")
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "test.txt")
}

func TestWithAttrs_ChainedCallsKeepEarlierAttrs(t *testing.T) {
	logger, buf := newBufferedLogger()

	// Mirrors the context-logger chain: request id first, op second.
	logger = logger.With(slog.String("request_id", "req-42"))
	logger = logger.With(slog.String("op", "service.write"))

	logger.Info("done")

	out := buf.String()
	assert.Contains(t, out, "req-42")
	assert.Contains(t, out, "service.write")
}

func TestWithAttrs_DoesNotMutateParent(t *testing.T) {
	logger, buf := newBufferedLogger()

	base := logger.With(slog.String("request_id", "req-42"))
	_ = base.With(slog.String("op", "child.only"))

	base.Info("parent")

	out := buf.String()
	assert.Contains(t, out, "req-42")
	assert.NotContains(t, out, "child.only")
}
