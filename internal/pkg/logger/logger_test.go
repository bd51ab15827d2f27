// internal/pkg/logger/logger_test.go
package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestContextHandler_AddsRequestScopedIDs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newHandler(&buf, &LogConfig{Level: "debug", Format: "json"}))

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithUserID(ctx, "cashier-7")
	ctx = WithJobID(ctx, "job-9")
	log.InfoContext(ctx, "sale created", slog.Int64("sale_id", 42))

	line := decodeLine(t, &buf)
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "cashier-7", line["user_id"])
	assert.Equal(t, "job-9", line["job_id"])
	assert.Equal(t, float64(42), line["sale_id"])
	assert.Equal(t, "INFO", line["severity"])
}

func TestSanitizationHandler_MasksSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newHandler(&buf, &LogConfig{Level: "info", Format: "json"}))

	log.Info("connecting with password=hunter2", slog.String("db_password", "hunter2"))

	line := decodeLine(t, &buf)
	assert.Equal(t, "***REDACTED***", line["db_password"])
	assert.NotContains(t, line["msg"], "hunter2")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "warning_alias", input: "WARNING", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "unknown_defaults_to_info", input: "verbose", want: slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input).Level())
		})
	}
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, UserIDFromContext(ctx))

	ctx = WithUserID(WithRequestID(ctx, "r"), "u")
	assert.Equal(t, "r", RequestIDFromContext(ctx))
	assert.Equal(t, "u", UserIDFromContext(ctx))
}
