package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-trader/internal/types"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()

	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j
}

func TestMirrorIsIdempotent(t *testing.T) {
	ctx := context.Background()
	j := newTestSQLite(t)

	recs := []types.PositionSnapshot{
		{Date: "2025-03-05 10:00:00", ID: 0, Action: types.InitAction(10000), Positions: types.Positions{types.CashKey: 10000}},
		{Date: "2025-03-05 10:00:00", ID: 1, Action: types.TradeAction(types.SideBuy, "AAPL", 10, 100, "paper"),
			Positions: types.Positions{types.CashKey: 9000, "AAPL": 10}},
	}
	n, err := j.Mirror(ctx, "alpha", recs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs = append(recs, types.PositionSnapshot{Date: "2025-03-06 10:00:00", ID: 2, Action: types.NoTradeAction(),
		Positions: types.Positions{types.CashKey: 9000, "AAPL": 10}})
	n, err = j.Mirror(ctx, "alpha", recs)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = j.Mirror(ctx, "beta", recs[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSnapshotsByDate(t *testing.T) {
	ctx := context.Background()
	j := newTestSQLite(t)

	_, err := j.Mirror(ctx, "alpha", []types.PositionSnapshot{
		{Date: "2025-03-04", ID: 0, Action: types.InitAction(10000), Positions: types.Positions{types.CashKey: 10000}},
		{Date: "2025-03-05 10:00:00", ID: 1, Action: types.TradeAction(types.SideBuy, "AAPL", 10, 100, "paper"),
			Positions: types.Positions{types.CashKey: 9000, "AAPL": 10}},
		{Date: "2025-03-05 11:00:00", ID: 2, Action: types.NoTradeAction(),
			Positions: types.Positions{types.CashKey: 9000, "AAPL": 10}},
	})
	require.NoError(t, err)

	got, err := j.Snapshots(ctx, "alpha", "2025-03-05")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, types.ActionBuy, got[0].Action.Kind)
	assert.Equal(t, "AAPL", got[0].Action.Symbol)
	assert.InDelta(t, 100, got[0].Action.Price, 1e-9)
	assert.Equal(t, types.Positions{types.CashKey: 9000, "AAPL": 10}, got[0].Positions)
	assert.Equal(t, types.ActionNoTrade, got[1].Action.Kind)

	none, err := j.Snapshots(ctx, "beta", "2025-03-05")
	require.NoError(t, err)
	assert.Empty(t, none)
}
