package noop

import (
	"context"

	"live-trader/internal/interfaces"
	"live-trader/internal/logger"
	"live-trader/internal/types"
)

// NoopDecider is the fallback used when a model has no LLM endpoint configured
type NoopDecider struct{}

var _ interfaces.Decider = (*NoopDecider)(nil)

// NewNoopDecider returns a decider that always holds
func NewNoopDecider() *NoopDecider {
	return &NoopDecider{}
}

func (d *NoopDecider) Decide(ctx context.Context, in types.DecisionInput) (types.Decision, error) {
	logger.Debug(ctx, "Noop decider called - always returns HOLD", "identity", in.Identity, "label", in.Label)
	return types.Decision{
		Action:     types.DecisionHold,
		Reason:     "noop_decider_fallback",
		Confidence: 0.0,
	}, nil
}
