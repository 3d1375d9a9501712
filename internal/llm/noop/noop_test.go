package noop

import (
	"context"
	"testing"

	"live-trader/internal/types"
)

func TestNoopAlwaysHolds(t *testing.T) {
	d := NewNoopDecider()
	got, err := d.Decide(context.Background(), types.DecisionInput{Identity: "x", Label: "2025-03-03"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Action != types.DecisionHold {
		t.Fatalf("expected HOLD, got %s", got.Action)
	}
}
