package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harmony-kit/internal"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestObservabilityLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	o, err := New(&buf, "info")
	require.NoError(t, err)

	ctx := internal.WithTurnID(context.Background(), "turn-7")
	o.Info(ctx, ComponentPipeline, CategoryRequest, "Parsed completion", map[string]interface{}{"messages": 2})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "Parsed completion", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "harmony-kit", entry["service"])
	assert.Equal(t, ComponentPipeline, entry["component"])
	assert.Equal(t, CategoryRequest, entry["category"])
	assert.Equal(t, "turn-7", entry["turn_id"])
	assert.Equal(t, float64(2), entry["messages"])
	assert.Contains(t, entry, "timestamp")
}

func TestObservabilityLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	o, err := New(&buf, "warn")
	require.NoError(t, err)

	o.Debug(context.Background(), ComponentTokenizer, CategoryDebug, "hidden", nil)
	o.Info(context.Background(), ComponentTokenizer, CategoryDebug, "hidden", nil)
	o.ParseFailure(context.Background(), "invalid_role", "<|start|>robot", 0, errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "warning", entries[0]["level"])
	assert.Equal(t, "invalid_role", entries[0]["kind"])
	assert.Equal(t, ComponentStrictParser, entries[0]["component"])
	assert.NotContains(t, entries[0], "turn_id")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "chatty")
	assert.Error(t, err)
}

func TestNewObservabilityLoggerWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	o, err := NewObservabilityLogger(dir, "debug")
	require.NoError(t, err)

	o.StreamSnapshot(context.Background(), "final", true, 42)
	require.NoError(t, o.Close())

	data, err := os.ReadFile(filepath.Join(dir, "harmony-kit.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"buffer_bytes":42`)
	assert.Contains(t, string(data), `"component":"stream_extractor"`)
}

func TestDiscard(t *testing.T) {
	o := Discard()
	assert.NotPanics(t, func() {
		o.Error(context.Background(), ComponentRenderer, CategoryError, "dropped", nil)
	})
	assert.NoError(t, o.Close())
}
