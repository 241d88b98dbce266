package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "text")
	ctx := context.Background()

	log.Info(ctx, "hidden")
	log.Warn(ctx, "shown", "reason", "token_expired")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "reason=token_expired")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "json").With("request_id", "abc")

	log.Debug(context.Background(), "login", "user_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "login", entry["msg"])
	assert.Equal(t, "abc", entry["request_id"])
	assert.Equal(t, float64(7), entry["user_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("unknown"))
}

func TestNop_DoesNotPanic(t *testing.T) {
	log := Nop()
	log.Error(context.TODO(), "dropped", "k", "v")
	log.With("a", 1).Info(context.TODO(), "dropped")
}
