package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"live-trader/internal/broker"
	"live-trader/internal/calendar"
	"live-trader/internal/id"
	"live-trader/internal/interfaces"
	"live-trader/internal/logger"
	"live-trader/internal/tradelog"
	"live-trader/internal/types"
)

var ErrUnknownIdentity = errors.New("unknown identity")

// Agent is one trading identity: its own ledger, decider and broker.
type Agent struct {
	Identity string
	Decider  interfaces.Decider
	Broker   interfaces.Broker
}

type Params struct {
	Ledger   interfaces.Ledger
	Resolver *calendar.Resolver
	Prices   interfaces.PriceSource
	Log      *tradelog.Log // optional
	Universe []string
	Agents   []Agent
	// Cadence must match the ledger's. Under daily cadence a cycle records
	// the date label and runs once per trading day. Nil means hourly.
	Cadence calendar.Cadence
	// MaxPositionPct caps one buy at this share of equity; 0 disables it.
	MaxPositionPct float64
}

type Engine struct {
	ledger   interfaces.Ledger
	resolver *calendar.Resolver
	prices   interfaces.PriceSource
	cadence  calendar.Cadence
	universe []string
	agents   map[string]Agent

	orders *orderExecutor
	risk   *riskManager
	book   *positionManager
}

func newEngine(p Params) (*Engine, error) {
	if p.Ledger == nil || p.Resolver == nil || p.Prices == nil {
		return nil, errors.New("engine: ledger, resolver and prices are required")
	}
	agents := make(map[string]Agent, len(p.Agents))
	for _, a := range p.Agents {
		if a.Identity == "" || a.Decider == nil || a.Broker == nil {
			return nil, fmt.Errorf("engine: agent %q is incomplete", a.Identity)
		}
		if _, dup := agents[a.Identity]; dup {
			return nil, fmt.Errorf("engine: duplicate identity %q", a.Identity)
		}
		agents[a.Identity] = a
	}
	universe := append([]string(nil), p.Universe...)
	sort.Strings(universe)
	cadence := p.Cadence
	if cadence == nil {
		cadence = p.Resolver.Hourly()
	}

	return &Engine{
		ledger:   p.Ledger,
		resolver: p.Resolver,
		prices:   p.Prices,
		cadence:  cadence,
		universe: universe,
		agents:   agents,
		orders:   newOrderExecutor(p.Log),
		risk:     newRiskManager(p.MaxPositionPct),
		book:     newPositionManager(),
	}, nil
}

// Identities returns the configured identities in order.
func (e *Engine) Identities() []string {
	out := make([]string, 0, len(e.agents))
	for k := range e.agents {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RunCycle runs one decision cycle for identity at now. A skipped cycle
// returns a result and no error; every cycle that is not skipped appends
// exactly one ledger record.
func (e *Engine) RunCycle(ctx context.Context, identity string, now time.Time) (*types.CycleResult, error) {
	start := time.Now()
	agent, ok := e.agents[identity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, identity)
	}
	res := &types.CycleResult{CycleID: id.At(now), Identity: identity, RecordID: -1}
	defer func() { res.Duration = time.Since(start) }()

	label, reason := e.gate(now)
	res.Label = label
	if reason != "" {
		return e.skip(ctx, res, reason), nil
	}

	done, err := e.ledger.HasLabel(ctx, identity, label)
	if err != nil {
		return e.fail(res, err)
	}
	if done {
		return e.skip(ctx, res, types.SkipAlreadyDone), nil
	}

	created, err := e.ledger.EnsureInitialized(ctx, identity, label)
	if err != nil {
		return e.fail(res, err)
	}
	if created {
		logger.Info(ctx, "Ledger initialized", "identity", identity, "label", label)
	}

	holdings, err := e.ledger.HoldingsForDecision(ctx, identity, label)
	if err != nil {
		return e.fail(res, err)
	}
	current, _, err := e.ledger.LatestPositions(ctx, identity, label)
	if err != nil {
		return e.fail(res, err)
	}

	e.refreshPrices(ctx)
	prices := e.priceUniverse(ctx, label, holdings, current)
	input := types.DecisionInput{Identity: identity, Label: label, Holdings: holdings, Prices: prices}

	decision, err := agent.Decider.Decide(ctx, input)
	if err != nil {
		logger.ErrorWithErr(ctx, "Decider failed, recording no-trade", err, "identity", identity, "label", label)
		return e.noTrade(ctx, res, prices, "decider_error: "+err.Error())
	}
	res.Decision = &decision
	logger.Decision(ctx, identity, label, decision.Action, decision.Symbol, decision.Qty, decision.Reason, "confidence", decision.Confidence)
	e.orders.logDecision(res.CycleID, input, decision)

	side, ok := sideOf(decision)
	if !ok {
		return e.noTrade(ctx, res, prices, holdReason(decision))
	}
	price, ok := prices[decision.Symbol]
	if !ok {
		logger.Warn(ctx, "No price for decided symbol, recording no-trade", "identity", identity, "symbol", decision.Symbol, "label", label)
		return e.noTrade(ctx, res, prices, "no_price")
	}
	if why := e.risk.validateTrade(ctx, current, side, decision.Symbol, decision.Qty, price, prices); why != "" {
		return e.noTrade(ctx, res, prices, why)
	}

	order, err := e.orders.submit(broker.WithPeriod(ctx, label), agent.Broker, decision.Symbol, side, decision.Qty)
	if err != nil {
		logger.ErrorWithErr(ctx, "Order submission failed, recording no-trade", err, "identity", identity, "symbol", decision.Symbol)
		return e.noTrade(ctx, res, prices, "broker_error: "+err.Error())
	}
	res.Order = &order
	if order.Status != types.OrderFilled {
		return e.noTrade(ctx, res, prices, "order_"+string(order.Status))
	}

	fill := order.FillPrice
	if fill <= 0 {
		fill = price
	}
	next := e.book.apply(current, side, decision.Symbol, decision.Qty, fill)
	action := types.TradeAction(side, decision.Symbol, decision.Qty, fill, agent.Broker.Name())
	recID, err := e.ledger.Append(ctx, identity, label, action, next)
	if err != nil {
		return e.fail(res, err)
	}
	logger.Trade(ctx, identity, decision.Symbol, string(side), decision.Qty, fill, recID, "order_id", order.OrderID)

	res.Outcome = types.OutcomeTraded
	res.Reason = decision.Reason
	res.RecordID = recID
	res.Positions = next
	res.Equity = equity(next, prices)
	e.orders.logCycle(res)
	return res, nil
}

// Sync records the broker's view of holdings as a new snapshot.
func (e *Engine) Sync(ctx context.Context, identity, label string) (*types.CycleResult, error) {
	agent, ok := e.agents[identity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, identity)
	}
	if _, err := calendar.ParseLabel(label); err != nil {
		return nil, err
	}
	res := &types.CycleResult{CycleID: id.New(), Identity: identity, Label: label, RecordID: -1}

	pos, err := agent.Broker.GetPositions(ctx)
	if err != nil {
		res.Outcome = types.OutcomeFailed
		res.Reason = err.Error()
		return res, fmt.Errorf("sync %s: %w", identity, err)
	}
	recID, err := e.ledger.Append(ctx, identity, label, types.SyncAction(agent.Broker.Name()), pos)
	if err != nil {
		return e.fail(res, err)
	}
	res.Outcome = types.OutcomeSynced
	res.RecordID = recID
	res.Positions = pos
	e.orders.logCycle(res)
	return res, nil
}

// gate returns the label for now, or the reason no cycle runs.
func (e *Engine) gate(now time.Time) (string, string) {
	switch {
	case !e.resolver.IsTradingDay(now):
		return "", types.SkipNonTradingDay
	case !e.resolver.IsInSession(now):
		return "", types.SkipOutsideSession
	}
	label, ok := e.resolver.CurrentPeriodLabel(now)
	if !ok {
		return "", types.SkipNoValidLabel
	}
	if e.cadence.Name() == calendar.CadenceDaily {
		label = calendar.LabelDate(label)
	}
	return label, ""
}

// refreshPrices picks up bars appended since the last cycle. On failure the
// previously loaded bars stay in use.
func (e *Engine) refreshPrices(ctx context.Context) {
	r, ok := e.prices.(interfaces.PriceRefresher)
	if !ok {
		return
	}
	changed, err := r.Refresh(ctx)
	if err != nil {
		logger.Warn(ctx, "Price refresh failed, using loaded bars", "error", err)
		return
	}
	if changed {
		logger.Debug(ctx, "Price file reloaded")
	}
}

func (e *Engine) skip(ctx context.Context, res *types.CycleResult, reason string) *types.CycleResult {
	res.Outcome = types.OutcomeSkipped
	res.Reason = reason
	logger.Skip(ctx, res.Identity, reason, "label", res.Label, "cycle_id", res.CycleID)
	e.orders.logCycle(res)
	return res
}

func (e *Engine) fail(res *types.CycleResult, err error) (*types.CycleResult, error) {
	res.Outcome = types.OutcomeFailed
	res.Reason = err.Error()
	e.orders.logCycle(res)
	return res, fmt.Errorf("cycle %s for %s: %w", res.Label, res.Identity, err)
}

func (e *Engine) noTrade(ctx context.Context, res *types.CycleResult, prices map[string]float64, reason string) (*types.CycleResult, error) {
	recID, err := e.ledger.RecordNoTrade(ctx, res.Identity, res.Label)
	if err != nil {
		return e.fail(res, err)
	}
	pos, _, err := e.ledger.LatestAsOf(ctx, res.Identity, res.Label)
	if err != nil {
		return e.fail(res, err)
	}
	res.Outcome = types.OutcomeNoTrade
	res.Reason = reason
	res.RecordID = recID
	res.Positions = pos
	res.Equity = equity(pos, prices)
	logger.Info(ctx, "No trade recorded", "identity", res.Identity, "label", res.Label, "reason", reason, "record_id", recID)
	e.orders.logCycle(res)
	return res, nil
}
