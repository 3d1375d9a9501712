package interfaces

import (
	"context"

	"live-trader/internal/types"
)

type Decider interface {
	Decide(ctx context.Context, in types.DecisionInput) (types.Decision, error)
}
