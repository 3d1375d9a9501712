package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-trader/internal/broker/paper"
	"live-trader/internal/calendar"
	"live-trader/internal/interfaces"
	"live-trader/internal/ledger"
	"live-trader/internal/prices"
	"live-trader/internal/tradelog"
	"live-trader/internal/types"
)

type deciderFunc func(ctx context.Context, in types.DecisionInput) (types.Decision, error)

func (f deciderFunc) Decide(ctx context.Context, in types.DecisionInput) (types.Decision, error) {
	return f(ctx, in)
}

func always(d types.Decision) deciderFunc {
	return func(context.Context, types.DecisionInput) (types.Decision, error) { return d, nil }
}

type stubBroker struct {
	result    types.OrderResult
	positions types.Positions
	err       error
	orders    int
}

func (b *stubBroker) Name() string { return "stub" }

func (b *stubBroker) SubmitOrder(context.Context, string, types.Side, float64) (types.OrderResult, error) {
	b.orders++
	return b.result, b.err
}

func (b *stubBroker) GetPositions(context.Context) (types.Positions, error) {
	return b.positions, b.err
}

type fixture struct {
	eng      *Engine
	ledger   *ledger.Ledger
	resolver *calendar.Resolver
	prices   prices.Static
	loc      *time.Location
}

func newFixture(t *testing.T, decider interfaces.Decider, b interfaces.Broker, maxPct float64) *fixture {
	t.Helper()
	res, err := calendar.New(calendar.DefaultConfig())
	require.NoError(t, err)
	led := ledger.New(t.TempDir(), ledger.WithCadence(res.Hourly()))
	px := prices.Static{}
	px.Set("2025-03-05 10:00:00", "AAPL", 100)
	px.Set("2025-03-05 10:00:00", "MSFT", 400)
	px.Set("2025-03-05 11:00:00", "AAPL", 110)
	px.Set("2025-03-05 11:00:00", "MSFT", 390)
	if b == nil {
		b = paper.New(px)
	}

	eng, err := newEngine(Params{
		Ledger:         led,
		Resolver:       res,
		Prices:         px,
		Log:            tradelog.New(t.TempDir(), res.Location()),
		Universe:       []string{"MSFT", "AAPL"},
		Agents:         []Agent{{Identity: "alpha", Decider: decider, Broker: b}},
		MaxPositionPct: maxPct,
	})
	require.NoError(t, err)
	return &fixture{eng: eng, ledger: led, resolver: res, prices: px, loc: res.Location()}
}

func (f *fixture) at(hh, mm int) time.Time {
	return time.Date(2025, 3, 5, hh, mm, 0, 0, f.loc)
}

func TestRunCycleBuyThenSell(t *testing.T) {
	ctx := context.Background()
	var seen []types.DecisionInput
	script := []types.Decision{
		{Action: types.DecisionBuy, Symbol: "AAPL", Qty: 10, Reason: "momentum"},
		{Action: types.DecisionSell, Symbol: "AAPL", Qty: 5, Reason: "take profit"},
	}
	decider := deciderFunc(func(_ context.Context, in types.DecisionInput) (types.Decision, error) {
		seen = append(seen, in)
		return script[len(seen)-1], nil
	})
	f := newFixture(t, decider, nil, 0)

	res, err := f.eng.RunCycle(ctx, "alpha", f.at(10, 15))
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeTraded, res.Outcome)
	assert.Equal(t, "2025-03-05 10:00:00", res.Label)
	assert.Equal(t, int64(1), res.RecordID)
	assert.Equal(t, types.Positions{types.CashKey: 9000, "AAPL": 10}, res.Positions)
	assert.InDelta(t, 10000, res.Equity, 1e-9)
	assert.NotEmpty(t, res.CycleID)

	require.Len(t, seen, 1)
	assert.Equal(t, types.Positions{types.CashKey: 10000}, seen[0].Holdings)
	assert.Equal(t, map[string]float64{"AAPL": 100, "MSFT": 400}, seen[0].Prices)

	res, err = f.eng.RunCycle(ctx, "alpha", f.at(11, 5))
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeTraded, res.Outcome)
	assert.Equal(t, int64(2), res.RecordID)
	assert.Equal(t, types.Positions{types.CashKey: 9550, "AAPL": 5}, res.Positions)

	require.Len(t, seen, 2)
	assert.Equal(t, types.Positions{types.CashKey: 9000, "AAPL": 10}, seen[1].Holdings)

	recs, err := f.ledger.Records(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, types.ActionInit, recs[0].Action.Kind)
	assert.Equal(t, types.ActionBuy, recs[1].Action.Kind)
	assert.Equal(t, paper.Source, recs[1].Action.Source)
	assert.Equal(t, types.ActionSell, recs[2].Action.Kind)
	assert.InDelta(t, 110, recs[2].Action.Price, 1e-9)
}

func TestRunCycleSkipsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, always(types.Decision{Action: types.DecisionHold}), nil, 0)

	tests := []struct {
		name   string
		now    time.Time
		reason string
	}{
		{"saturday", time.Date(2025, 3, 8, 11, 0, 0, 0, f.loc), types.SkipNonTradingDay},
		{"holiday", time.Date(2025, 12, 25, 11, 0, 0, 0, f.loc), types.SkipNonTradingDay},
		{"before open", f.at(9, 0), types.SkipOutsideSession},
		{"after close", f.at(16, 30), types.SkipOutsideSession},
		{"first half hour", f.at(9, 45), types.SkipNoValidLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.eng.RunCycle(ctx, "alpha", tt.now)
			require.NoError(t, err)
			assert.Equal(t, types.OutcomeSkipped, res.Outcome)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, int64(-1), res.RecordID)
		})
	}

	recs, err := f.ledger.Records(ctx, "alpha")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRunCycleOncePerLabel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, always(types.Decision{Action: types.DecisionHold, Reason: "wait"}), nil, 0)

	res, err := f.eng.RunCycle(ctx, "alpha", f.at(10, 1))
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeNoTrade, res.Outcome)
	assert.Equal(t, "wait", res.Reason)

	res, err = f.eng.RunCycle(ctx, "alpha", f.at(10, 59))
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSkipped, res.Outcome)
	assert.Equal(t, types.SkipAlreadyDone, res.Reason)

	recs, err := f.ledger.Records(ctx, "alpha")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestRunCycleNoTradeOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		decision types.Decision
		maxPct   float64
		reason   string
	}{
		{"hold", types.Decision{Action: types.DecisionHold}, 0, "hold"},
		{"zero quantity", types.Decision{Action: types.DecisionBuy, Symbol: "AAPL"}, 0, "invalid_order"},
		{"unpriced symbol", types.Decision{Action: types.DecisionBuy, Symbol: "TSLA", Qty: 1}, 0, "no_price"},
		{"insufficient cash", types.Decision{Action: types.DecisionBuy, Symbol: "AAPL", Qty: 101}, 0, "insufficient_cash"},
		{"insufficient shares", types.Decision{Action: types.DecisionSell, Symbol: "AAPL", Qty: 1}, 0, "insufficient_shares"},
		{"risk cap", types.Decision{Action: types.DecisionBuy, Symbol: "AAPL", Qty: 30}, 20, "risk_cap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, always(tt.decision), nil, tt.maxPct)

			res, err := f.eng.RunCycle(ctx, "alpha", f.at(10, 5))
			require.NoError(t, err)
			assert.Equal(t, types.OutcomeNoTrade, res.Outcome)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, int64(1), res.RecordID)
			assert.Equal(t, types.Positions{types.CashKey: 10000}, res.Positions)

			recs, err := f.ledger.Records(ctx, "alpha")
			require.NoError(t, err)
			require.Len(t, recs, 2)
			assert.Equal(t, types.ActionNoTrade, recs[1].Action.Kind)
		})
	}
}

func TestRunCycleDeciderErrorRecordsNoTrade(t *testing.T) {
	ctx := context.Background()
	decider := deciderFunc(func(context.Context, types.DecisionInput) (types.Decision, error) {
		return types.Decision{}, errors.New("model unavailable")
	})
	f := newFixture(t, decider, nil, 0)

	res, err := f.eng.RunCycle(ctx, "alpha", f.at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeNoTrade, res.Outcome)
	assert.Contains(t, res.Reason, "model unavailable")
	assert.Nil(t, res.Decision)
}

func TestRunCycleUnfilledOrder(t *testing.T) {
	ctx := context.Background()
	b := &stubBroker{result: types.OrderResult{OrderID: "X1", Status: types.OrderPending}}
	f := newFixture(t, always(types.Decision{Action: types.DecisionBuy, Symbol: "MSFT", Qty: 2}), b, 0)

	res, err := f.eng.RunCycle(ctx, "alpha", f.at(10, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, b.orders)
	assert.Equal(t, types.OutcomeNoTrade, res.Outcome)
	assert.Equal(t, "order_pending", res.Reason)
	require.NotNil(t, res.Order)
	assert.Equal(t, "X1", res.Order.OrderID)
}

func TestRunCycleUnknownIdentity(t *testing.T) {
	f := newFixture(t, always(types.Decision{Action: types.DecisionHold}), nil, 0)
	_, err := f.eng.RunCycle(context.Background(), "nobody", f.at(10, 5))
	assert.ErrorIs(t, err, ErrUnknownIdentity)
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	b := &stubBroker{positions: types.Positions{types.CashKey: 500, "AAPL": 3}}
	f := newFixture(t, always(types.Decision{Action: types.DecisionHold}), b, 0)

	res, err := f.eng.Sync(ctx, "alpha", "2025-03-05 13:00:00")
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSynced, res.Outcome)
	assert.Equal(t, int64(1), res.RecordID)

	pos, id, err := f.ledger.LatestAsOf(ctx, "alpha", "2025-03-05 13:00:00")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, types.Positions{types.CashKey: 500, "AAPL": 3}, pos)

	_, err = f.eng.Sync(ctx, "alpha", "not-a-label")
	assert.ErrorIs(t, err, calendar.ErrInvalidWindow)

	b.err = errors.New("session expired")
	res, err = f.eng.Sync(ctx, "alpha", "2025-03-05 14:00:00")
	require.Error(t, err)
	assert.Equal(t, types.OutcomeFailed, res.Outcome)
}

func TestNewRejectsBadAgents(t *testing.T) {
	res := calendar.MustDefault()
	led := ledger.New(t.TempDir())
	hold := always(types.Decision{Action: types.DecisionHold})

	_, err := New(Params{Ledger: led, Resolver: res, Prices: prices.Static{}, Agents: []Agent{
		{Identity: "a", Decider: hold, Broker: &stubBroker{}},
		{Identity: "a", Decider: hold, Broker: &stubBroker{}},
	}})
	assert.Error(t, err)

	_, err = New(Params{Ledger: led, Resolver: res, Prices: prices.Static{}, Agents: []Agent{{Identity: "a"}}})
	assert.Error(t, err)

	_, err = New(Params{Resolver: res, Prices: prices.Static{}})
	assert.Error(t, err)
}

func TestPositionManagerRoundsCash(t *testing.T) {
	pm := newPositionManager()
	cur := types.Positions{types.CashKey: 1000}
	for i := 0; i < 3; i++ {
		cur = pm.apply(cur, types.SideBuy, "X", 0.1, 33.333333)
	}
	assert.InDelta(t, 990.0001, cur.Cash(), 1e-9)
	assert.InDelta(t, 0.3, cur["X"], 1e-12)
}

func TestRunCycleSeesBarsAppendedAfterStart(t *testing.T) {
	ctx := context.Background()
	res, err := calendar.New(calendar.DefaultConfig())
	require.NoError(t, err)
	loc := res.Location()

	path := filepath.Join(t.TempDir(), "merged.jsonl")
	bar := func(label, price string) string {
		return `{"Meta Data": {"2. Symbol": "AAPL"}, "Time Series (60min)": {"` + label + `": {"1. buy price": "` + price + `"}}}` + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(bar("2025-03-05 10:00:00", "100")), 0o644))
	px, err := prices.Open(ctx, path)
	require.NoError(t, err)

	eng, err := newEngine(Params{
		Ledger:   ledger.New(t.TempDir(), ledger.WithCadence(res.Hourly())),
		Resolver: res,
		Prices:   px,
		Universe: []string{"AAPL"},
		Agents: []Agent{{
			Identity: "alpha",
			Decider:  always(types.Decision{Action: types.DecisionBuy, Symbol: "AAPL", Qty: 1}),
			Broker:   paper.New(px),
		}},
	})
	require.NoError(t, err)

	out, err := eng.RunCycle(ctx, "alpha", time.Date(2025, 3, 5, 10, 5, 0, 0, loc))
	require.NoError(t, err)
	require.Equal(t, types.OutcomeTraded, out.Outcome)

	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = fh.WriteString(bar("2025-03-05 11:00:00", "105"))
	require.NoError(t, err)
	require.NoError(t, fh.Close())

	out, err = eng.RunCycle(ctx, "alpha", time.Date(2025, 3, 5, 11, 5, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeTraded, out.Outcome, "reason %q", out.Reason)
	assert.Equal(t, types.Positions{types.CashKey: 9795, "AAPL": 2}, out.Positions)
}

func TestRunCycleDailyCadence(t *testing.T) {
	ctx := context.Background()
	res, err := calendar.New(calendar.DefaultConfig())
	require.NoError(t, err)
	loc := res.Location()

	px := prices.Static{}
	px.Set("2025-03-05", "AAPL", 100)
	px.Set("2025-03-06", "AAPL", 110)

	var seen []types.Positions
	decider := deciderFunc(func(_ context.Context, in types.DecisionInput) (types.Decision, error) {
		seen = append(seen, in.Holdings)
		return types.Decision{Action: types.DecisionBuy, Symbol: "AAPL", Qty: 10}, nil
	})
	led := ledger.New(t.TempDir(), ledger.WithCadence(calendar.Daily()))
	eng, err := newEngine(Params{
		Ledger:   led,
		Resolver: res,
		Prices:   px,
		Universe: []string{"AAPL"},
		Agents:   []Agent{{Identity: "alpha", Decider: decider, Broker: paper.New(px)}},
		Cadence:  calendar.Daily(),
	})
	require.NoError(t, err)

	out, err := eng.RunCycle(ctx, "alpha", time.Date(2025, 3, 5, 10, 5, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeTraded, out.Outcome)
	assert.Equal(t, "2025-03-05", out.Label)

	out, err = eng.RunCycle(ctx, "alpha", time.Date(2025, 3, 5, 11, 5, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSkipped, out.Outcome)
	assert.Equal(t, types.SkipAlreadyDone, out.Reason)

	out, err = eng.RunCycle(ctx, "alpha", time.Date(2025, 3, 6, 10, 5, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeTraded, out.Outcome)
	assert.Equal(t, types.Positions{types.CashKey: 7900, "AAPL": 20}, out.Positions)

	require.Len(t, seen, 2)
	assert.Equal(t, types.Positions{types.CashKey: 10000}, seen[0])
	assert.Equal(t, types.Positions{types.CashKey: 9000, "AAPL": 10}, seen[1])
}
