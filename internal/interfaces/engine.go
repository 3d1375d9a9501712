package interfaces

import (
	"context"
	"time"

	"live-trader/internal/types"
)

// Engine runs decision cycles. RunCycle appends exactly one ledger record
// unless the cycle is skipped or storage fails.
type Engine interface {
	RunCycle(ctx context.Context, identity string, now time.Time) (*types.CycleResult, error)
	Sync(ctx context.Context, identity, label string) (*types.CycleResult, error)
}
