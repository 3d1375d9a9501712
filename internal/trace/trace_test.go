package trace

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledIsPassThrough(t *testing.T) {
	require.NoError(t, InitWithConfig(Config{Enabled: false}))
	ctx := context.Background()
	got, span := StartSpan(ctx, "engine.RunCycle")
	span.End()

	assert.Equal(t, ctx, got)
	_, _, ok := GetTraceFields(got)
	assert.False(t, ok)
}

func TestSpansReachTheWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithConfig(Config{Enabled: true, Writer: &buf}))

	ctx, span := StartSpan(context.Background(), "engine.RunCycle")
	traceID, spanID, ok := GetTraceFields(ctx)
	require.True(t, ok)
	assert.Len(t, traceID, 32)
	assert.Len(t, spanID, 16)
	span.End()

	require.NoError(t, Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "engine.RunCycle")
	assert.False(t, Enabled())
}

func TestSpansToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces", "spans.jsonl")
	require.NoError(t, InitWithConfig(Config{Enabled: true, Path: path}))

	_, span := StartSpan(context.Background(), "ledger.Append")
	span.End()
	require.NoError(t, Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ledger.Append")
}
