package eod

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-trader/internal/calendar"
	"live-trader/internal/ledger"
	"live-trader/internal/types"
)

func TestSummarizeDay(t *testing.T) {
	ctx := context.Background()
	res := calendar.MustDefault()
	led := ledger.New(t.TempDir(), ledger.WithCadence(res.Hourly()))

	appendTrade := func(label string, side types.Side, sym string, qty, px float64) {
		_, err := led.Append(ctx, "alpha", label, types.TradeAction(side, sym, qty, px, "paper"), types.Positions{types.CashKey: 1})
		require.NoError(t, err)
	}
	appendTrade("2025-03-04 15:00:00", types.SideBuy, "MSFT", 1, 400)
	appendTrade("2025-03-05 10:00:00", types.SideBuy, "AAPL", 10, 100)
	appendTrade("2025-03-05 11:00:00", types.SideSell, "AAPL", 4, 110)
	appendTrade("2025-03-05 12:00:00", types.SideBuy, "NVDA", 2, 50.5)
	_, err := led.RecordNoTrade(ctx, "alpha", "2025-03-05 13:00:00")
	require.NoError(t, err)

	dir := t.TempDir()
	s := NewSummarizer(led, res, dir)

	path, err := s.SummarizeDay(ctx, "alpha", "2025-03-05")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "alpha", "2025-03-05.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		headers,
		{"AAPL", "10", "100.0000", "4", "110.0000", "40.00", "1000.00", "440.00"},
		{"NVDA", "2", "50.5000", "0", "0.0000", "0.00", "101.00", "0.00"},
		{"TOTAL", "", "", "", "", "40.00", "1101.00", "440.00"},
	}, rows)
}

func TestSummarizeDayWithoutTrades(t *testing.T) {
	ctx := context.Background()
	res := calendar.MustDefault()
	led := ledger.New(t.TempDir())
	_, err := led.RecordNoTrade(ctx, "alpha", "2025-03-05")
	require.NoError(t, err)

	dir := t.TempDir()
	path, err := NewSummarizer(led, res, dir).SummarizeDay(ctx, "alpha", "2025-03-05")
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = NewSummarizer(led, res, dir).SummarizeDay(ctx, "alpha", "yesterday")
	assert.ErrorIs(t, err, calendar.ErrInvalidWindow)
}

func TestShouldRunNow(t *testing.T) {
	res := calendar.MustDefault()
	loc := res.Location()
	s := NewSummarizer(ledger.New(t.TempDir()), res, t.TempDir())

	assert.False(t, s.ShouldRunNow(time.Date(2025, 3, 5, 15, 59, 0, 0, loc)))
	assert.True(t, s.ShouldRunNow(time.Date(2025, 3, 5, 16, 0, 0, 0, loc)))
	assert.True(t, s.ShouldRunNow(time.Date(2025, 3, 5, 20, 0, 0, 0, loc)))
	assert.False(t, s.ShouldRunNow(time.Date(2025, 3, 8, 16, 30, 0, 0, loc)))
}
