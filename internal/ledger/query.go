package ledger

import (
	"context"
	"sort"

	"live-trader/internal/calendar"
	"live-trader/internal/logger"
	"live-trader/internal/types"
)

// LatestAsOf returns the positions of the highest-id record whose date equals
// date, or empty positions and -1 when there is none.
func (l *Ledger) LatestAsOf(ctx context.Context, identity, date string) (types.Positions, int64, error) {
	records, err := l.read(ctx, identity)
	if err != nil {
		return types.Positions{}, -1, err
	}
	pos, id := latestFor(records, date)
	return pos, id, nil
}

func latestFor(records []types.PositionSnapshot, date string) (types.Positions, int64) {
	best := -1
	for i, r := range records {
		if r.Date != date {
			continue
		}
		if best < 0 || r.ID > records[best].ID {
			best = i
		}
	}
	if best < 0 {
		return types.Positions{}, -1
	}
	return records[best].Positions.Clone(), records[best].ID
}

func newest(records []types.PositionSnapshot) (types.Positions, int64) {
	best := -1
	for i, r := range records {
		if best < 0 || r.ID > records[best].ID {
			best = i
		}
	}
	if best < 0 {
		return types.Positions{}, -1
	}
	return records[best].Positions.Clone(), records[best].ID
}

// earliest orders by label first and id second.
func earliest(records []types.PositionSnapshot) types.PositionSnapshot {
	sorted := append([]types.PositionSnapshot(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := calendar.CompareLabels(sorted[i].Date, sorted[j].Date); c != 0 {
			return c < 0
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0]
}

// HoldingsForDecision returns the starting holdings for a decision at
// referenceDate:
//
//  1. the latest record of the preceding label, if any;
//  2. when every record is later than referenceDate, a zero-holdings
//     snapshot carrying the earliest record's asset keys;
//  3. otherwise the earliest record;
//  4. empty positions for an empty ledger.
func (l *Ledger) HoldingsForDecision(ctx context.Context, identity, referenceDate string) (types.Positions, error) {
	records, err := l.read(ctx, identity)
	if err != nil {
		return types.Positions{}, err
	}
	if len(records) == 0 {
		return types.Positions{}, nil
	}

	prev, err := l.cadence.Preceding(referenceDate)
	if err != nil {
		logger.Warn(ctx, "Cannot compute preceding label, using earliest record",
			"identity", identity,
			"reference", referenceDate,
			"error", err,
		)
		return earliest(records).Positions.Clone(), nil
	}
	if pos, id := latestFor(records, prev); id >= 0 && len(pos) > 0 {
		return pos, nil
	}

	first := earliest(records)
	if calendar.CompareLabels(first.Date, referenceDate) > 0 {
		return l.synthesize(first), nil
	}
	return first.Positions.Clone(), nil
}

// synthesize builds the holdings an identity had before its first record.
func (l *Ledger) synthesize(first types.PositionSnapshot) types.Positions {
	out := make(types.Positions, len(first.Positions))
	for k := range first.Positions {
		out[k] = 0
	}
	if first.Positions.HasHoldings() {
		out[types.CashKey] = l.fallbackCash
	} else {
		out[types.CashKey] = first.Positions.Cash()
	}
	return out
}

// LatestPositions returns the most recent known positions for date: its own
// latest record, else the preceding label's, else the newest record overall.
func (l *Ledger) LatestPositions(ctx context.Context, identity, date string) (types.Positions, int64, error) {
	records, err := l.read(ctx, identity)
	if err != nil {
		return types.Positions{}, -1, err
	}
	if pos, id := latestFor(records, date); id >= 0 {
		return pos, id, nil
	}
	if prev, err := l.cadence.Preceding(date); err == nil {
		if pos, id := latestFor(records, prev); id >= 0 {
			return pos, id, nil
		}
	}
	pos, id := newest(records)
	return pos, id, nil
}

// RecordNoTrade appends the latest known positions unchanged.
func (l *Ledger) RecordNoTrade(ctx context.Context, identity, date string) (int64, error) {
	pos, _, err := l.LatestPositions(ctx, identity, date)
	if err != nil {
		return -1, err
	}
	if len(pos) == 0 {
		pos = types.Positions{types.CashKey: l.initialCash}
	}
	return l.Append(ctx, identity, date, types.NoTradeAction(), pos)
}

// HasLabel reports whether a cycle already recorded something for label. The
// Init record does not count.
func (l *Ledger) HasLabel(ctx context.Context, identity, label string) (bool, error) {
	records, err := l.read(ctx, identity)
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.Date == label && r.Action.Kind != types.ActionInit {
			return true, nil
		}
	}
	return false, nil
}
