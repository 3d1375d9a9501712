package engineobs

import (
	"context"
	"time"

	"live-trader/internal/interfaces"
	"live-trader/internal/logger"
	"live-trader/internal/metrics"
	"live-trader/internal/trace"
	"live-trader/internal/types"
)

type observableEngine struct {
	engine  interfaces.Engine
	metrics *metrics.Registry
}

var _ interfaces.Engine = (*observableEngine)(nil)

// Wrap adds spans, cycle logs and, when m is non-nil, cycle metrics.
func Wrap(eng interfaces.Engine, m *metrics.Registry) interfaces.Engine {
	return &observableEngine{
		engine:  eng,
		metrics: m,
	}
}

func (oe *observableEngine) RunCycle(ctx context.Context, identity string, now time.Time) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.RunCycle")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting decision cycle",
		"identity", identity,
		"now", now.Format(time.RFC3339),
	)

	result, err := oe.engine.RunCycle(ctx, identity, now)
	oe.record(identity, result, time.Since(start))
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Decision cycle failed", err,
			"identity", identity,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return result, err
	}

	kv := []any{
		"identity", identity,
		"label", result.Label,
		"outcome", result.Outcome,
		"reason", result.Reason,
		"record_id", result.RecordID,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if d := result.Decision; d != nil {
		kv = append(kv, "action", d.Action, "confidence", d.Confidence)
	}
	logger.InfoSkip(ctx, 1, "Decision cycle completed", kv...)

	return result, nil
}

func (oe *observableEngine) Sync(ctx context.Context, identity, label string) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Sync")
	defer span.End()

	start := time.Now()
	result, err := oe.engine.Sync(ctx, identity, label)
	oe.record(identity, result, time.Since(start))
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Broker sync failed", err,
			"identity", identity,
			"label", label,
		)
		return result, err
	}

	logger.InfoSkip(ctx, 1, "Broker positions synced",
		"identity", identity,
		"label", label,
		"record_id", result.RecordID,
		"symbols", result.Positions.Symbols(),
	)
	return result, nil
}

func (oe *observableEngine) record(identity string, res *types.CycleResult, d time.Duration) {
	if oe.metrics == nil || res == nil {
		return
	}
	m := oe.metrics
	m.Cycles.WithLabelValues(identity, string(res.Outcome)).Inc()
	if res.Outcome == types.OutcomeSkipped {
		m.Skips.WithLabelValues(identity, res.Reason).Inc()
		return
	}
	m.CycleDuration.WithLabelValues(identity).Observe(d.Seconds())
	if res.Decision != nil && res.Order != nil {
		m.Orders.WithLabelValues(identity, res.Decision.Action, string(res.Order.Status)).Inc()
	}
	if res.Positions != nil && res.Outcome != types.OutcomeSynced {
		m.Equity.WithLabelValues(identity).Set(res.Equity)
	}
}
