package interfaces

import (
	"context"

	"live-trader/internal/types"
)

// Ledger is the per-identity position log. Callers serialize writes for one
// identity.
type Ledger interface {
	Append(ctx context.Context, identity, date string, action types.Action, positions types.Positions) (int64, error)
	LatestAsOf(ctx context.Context, identity, date string) (types.Positions, int64, error)
	HoldingsForDecision(ctx context.Context, identity, referenceDate string) (types.Positions, error)
	RecordNoTrade(ctx context.Context, identity, date string) (int64, error)
	LatestPositions(ctx context.Context, identity, date string) (types.Positions, int64, error)
	EnsureInitialized(ctx context.Context, identity, date string) (bool, error)
	HasLabel(ctx context.Context, identity, label string) (bool, error)
	Records(ctx context.Context, identity string) ([]types.PositionSnapshot, error)
}
