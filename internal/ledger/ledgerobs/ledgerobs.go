package ledgerobs

import (
	"context"
	"errors"

	"live-trader/internal/interfaces"
	"live-trader/internal/ledger"
	"live-trader/internal/logger"
	"live-trader/internal/metrics"
	"live-trader/internal/trace"
	"live-trader/internal/types"
)

// observableLedger wraps a Ledger with logging, tracing and storage metrics.
type observableLedger struct {
	ledger  interfaces.Ledger
	metrics *metrics.Registry
}

var _ interfaces.Ledger = (*observableLedger)(nil)

// Wrap returns l with observability. m may be nil.
func Wrap(l interfaces.Ledger, m *metrics.Registry) interfaces.Ledger {
	return &observableLedger{ledger: l, metrics: m}
}

func (ol *observableLedger) Append(ctx context.Context, identity, date string, action types.Action, positions types.Positions) (int64, error) {
	ctx, span := trace.StartSpan(ctx, "ledger.Append")
	defer span.End()

	id, err := ol.ledger.Append(ctx, identity, date, action, positions)
	if err != nil {
		ol.failed(ctx, identity, "append", err)
		return id, err
	}
	if ol.metrics != nil {
		ol.metrics.LedgerAppends.WithLabelValues(identity, string(action.Kind)).Inc()
	}
	logger.InfoSkip(ctx, 1, "Ledger record appended",
		"identity", identity,
		"date", date,
		"id", id,
		"action", action.Kind,
		"symbol", action.Symbol,
		"amount", action.Amount,
	)
	return id, nil
}

func (ol *observableLedger) LatestAsOf(ctx context.Context, identity, date string) (types.Positions, int64, error) {
	ctx, span := trace.StartSpan(ctx, "ledger.LatestAsOf")
	defer span.End()

	pos, id, err := ol.ledger.LatestAsOf(ctx, identity, date)
	if err != nil {
		ol.failed(ctx, identity, "read", err)
	}
	return pos, id, err
}

func (ol *observableLedger) HoldingsForDecision(ctx context.Context, identity, referenceDate string) (types.Positions, error) {
	ctx, span := trace.StartSpan(ctx, "ledger.HoldingsForDecision")
	defer span.End()

	pos, err := ol.ledger.HoldingsForDecision(ctx, identity, referenceDate)
	if err != nil {
		ol.failed(ctx, identity, "read", err)
		return pos, err
	}
	logger.DebugSkip(ctx, 1, "Decision holdings resolved",
		"identity", identity,
		"reference", referenceDate,
		"cash", pos.Cash(),
		"symbols", pos.Symbols(),
	)
	return pos, nil
}

func (ol *observableLedger) RecordNoTrade(ctx context.Context, identity, date string) (int64, error) {
	ctx, span := trace.StartSpan(ctx, "ledger.RecordNoTrade")
	defer span.End()

	id, err := ol.ledger.RecordNoTrade(ctx, identity, date)
	if err != nil {
		ol.failed(ctx, identity, "append", err)
		return id, err
	}
	if ol.metrics != nil {
		ol.metrics.LedgerAppends.WithLabelValues(identity, string(types.ActionNoTrade)).Inc()
	}
	return id, nil
}

func (ol *observableLedger) LatestPositions(ctx context.Context, identity, date string) (types.Positions, int64, error) {
	ctx, span := trace.StartSpan(ctx, "ledger.LatestPositions")
	defer span.End()

	pos, id, err := ol.ledger.LatestPositions(ctx, identity, date)
	if err != nil {
		ol.failed(ctx, identity, "read", err)
	}
	return pos, id, err
}

func (ol *observableLedger) EnsureInitialized(ctx context.Context, identity, date string) (bool, error) {
	ctx, span := trace.StartSpan(ctx, "ledger.EnsureInitialized")
	defer span.End()

	created, err := ol.ledger.EnsureInitialized(ctx, identity, date)
	if err != nil {
		ol.failed(ctx, identity, "init", err)
		return created, err
	}
	if created && ol.metrics != nil {
		ol.metrics.LedgerAppends.WithLabelValues(identity, string(types.ActionInit)).Inc()
	}
	return created, nil
}

func (ol *observableLedger) HasLabel(ctx context.Context, identity, label string) (bool, error) {
	found, err := ol.ledger.HasLabel(ctx, identity, label)
	if err != nil {
		ol.failed(ctx, identity, "read", err)
	}
	return found, err
}

func (ol *observableLedger) Records(ctx context.Context, identity string) ([]types.PositionSnapshot, error) {
	recs, err := ol.ledger.Records(ctx, identity)
	if err != nil {
		ol.failed(ctx, identity, "read", err)
	}
	return recs, err
}

func (ol *observableLedger) failed(ctx context.Context, identity, op string, err error) {
	var se *ledger.StorageError
	if errors.As(err, &se) {
		op = se.Op
	}
	if ol.metrics != nil {
		ol.metrics.LedgerErrors.WithLabelValues(identity, op).Inc()
	}
	logger.ErrorWithErrSkip(ctx, 2, "Ledger operation failed", err,
		"identity", identity,
		"op", op,
	)
}
