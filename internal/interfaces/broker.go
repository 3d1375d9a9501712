package interfaces

import (
	"context"

	"live-trader/internal/types"
)

// Broker executes orders. A DRY_RUN broker fills at the price source.
type Broker interface {
	SubmitOrder(ctx context.Context, symbol string, side types.Side, qty float64) (types.OrderResult, error)
	GetPositions(ctx context.Context) (types.Positions, error)
	Name() string
}
