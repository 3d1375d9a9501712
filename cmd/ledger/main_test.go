package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-trader/internal/types"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	raw := fmt.Sprintf(`
mode: DRY_RUN
universe: [AAPL]
models:
  - name: quiet
    provider: NOOP
ledger:
  root: %s
prices:
  merged_path: %s
log:
  dir: %s
`, filepath.Join(dir, "agents"), filepath.Join(dir, "missing.jsonl"), filepath.Join(dir, "logs"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNoTradeThenShow(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "--config", cfg, "no-trade", "quiet", "--label", "2025-03-05 10:00:00")
	require.NoError(t, err)
	assert.Contains(t, out, "appended record 1")

	out, err = execute(t, "--config", cfg, "show", "quiet")
	require.NoError(t, err)
	var recs []types.PositionSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, types.ActionInit, recs[0].Action.Kind)
	assert.Equal(t, types.ActionNoTrade, recs[1].Action.Kind)

	out, err = execute(t, "--config", cfg, "identities")
	require.NoError(t, err)
	assert.Equal(t, "quiet\n", out)
}

func TestNoTradeRejectsBadLabel(t *testing.T) {
	_, err := execute(t, "--config", writeConfig(t), "no-trade", "quiet", "--label", "noon")
	assert.Error(t, err)
}
