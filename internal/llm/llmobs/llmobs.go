package llmobs

import (
	"context"

	"live-trader/internal/interfaces"
	"live-trader/internal/logger"
	"live-trader/internal/trace"
	"live-trader/internal/types"
)

// observableDecider wraps a Decider with observability (logging & tracing)
type observableDecider struct {
	decider interfaces.Decider
}

// Compile-time interface check
var _ interfaces.Decider = (*observableDecider)(nil)

// Wrap wraps a decider with observability middleware
func Wrap(decider interfaces.Decider) interfaces.Decider {
	return &observableDecider{decider: decider}
}

// Decide asks the wrapped decider with observability
func (od *observableDecider) Decide(ctx context.Context, in types.DecisionInput) (types.Decision, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Decide")
	defer span.End()

	// Skip(1) reports the actual caller, not this wrapper
	logger.DebugSkip(ctx, 1, "Requesting trading decision",
		"identity", in.Identity,
		"label", in.Label,
		"priced_symbols", len(in.Prices),
		"cash", in.Holdings.Cash(),
	)

	decision, err := od.decider.Decide(ctx, in)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to get trading decision", err,
			"identity", in.Identity,
			"label", in.Label,
		)
		return types.Decision{}, err
	}

	logger.InfoSkip(ctx, 1, "Trading decision received",
		"identity", in.Identity,
		"label", in.Label,
		"action", decision.Action,
		"symbol", decision.Symbol,
		"qty", decision.Qty,
		"reason", decision.Reason,
		"confidence", decision.Confidence,
	)
	return decision, nil
}
