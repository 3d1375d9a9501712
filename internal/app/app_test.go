package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-trader/internal/store"
	"live-trader/internal/types"
)

func testConfig(t *testing.T) *store.Config {
	t.Helper()
	dir := t.TempDir()
	pricePath := filepath.Join(dir, "merged.jsonl")
	line := `{"Meta Data": {"2. Symbol": "AAPL"}, "Time Series (60min)": {"2025-03-05 10:00:00": {"1. buy price": "100.5", "4. sell price": "101"}}}`
	require.NoError(t, os.WriteFile(pricePath, []byte(line+"\n"), 0o644))

	raw := fmt.Sprintf(`
mode: DRY_RUN
universe: [AAPL]
models:
  - name: quiet
    provider: NOOP
  - name: idle
    provider: NOOP
    enabled: false
ledger:
  root: %s
prices:
  merged_path: %s
log:
  dir: %s
eod:
  enabled: true
journal:
  db_path: %s
`, filepath.Join(dir, "agents"), pricePath, filepath.Join(dir, "logs"), filepath.Join(dir, "journal.db"))

	cfg, err := store.Parse([]byte(raw))
	require.NoError(t, err)
	return cfg
}

func TestBuildRunsACycle(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, []string{"quiet"}, a.Identities)
	px, ok := a.Prices.Price("2025-03-05 10:00:00", "AAPL")
	require.True(t, ok)
	assert.InDelta(t, 100.5, px, 1e-9)

	now := time.Date(2025, 3, 5, 10, 5, 0, 0, a.Resolver.Location())
	res, err := a.Engine.RunCycle(ctx, "quiet", now)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeNoTrade, res.Outcome)

	n, err := a.MirrorJournal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snaps, err := a.Journal.Snapshots(ctx, "quiet", "2025-03-05")
	require.NoError(t, err)
	assert.Len(t, snaps, 2)

	sched, err := a.Scheduler()
	require.NoError(t, err)
	assert.Len(t, sched.RunOnce(ctx, now), 1)
}
