// Package scheduler drives decision cycles at each decision hour of the
// trading calendar.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"live-trader/internal/calendar"
	"live-trader/internal/id"
	"live-trader/internal/interfaces"
	"live-trader/internal/logger"
	"live-trader/internal/tradelog"
	"live-trader/internal/types"
)

// DefaultOffset leaves time for the hour's price bar to land before a cycle.
const DefaultOffset = 5 * time.Minute

type Params struct {
	Engine     interfaces.Engine
	Resolver   *calendar.Resolver
	Identities []string

	Eod           interfaces.EodSummarizer // optional
	Log           *tradelog.Log            // optional, for retention
	RetentionDays int

	Offset      time.Duration
	RunOnStart  bool
	Parallelism int // 0 runs every identity at once

	// OnRound, when set, sees every round's results before the EOD check.
	OnRound func(ctx context.Context, now time.Time, results []*types.CycleResult)

	// Sleep blocks for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Scheduler struct {
	p     Params
	locks map[string]*sync.Mutex
}

func New(p Params) (*Scheduler, error) {
	if p.Engine == nil || p.Resolver == nil {
		return nil, errors.New("scheduler: engine and resolver are required")
	}
	if p.Offset < 0 || p.Offset >= time.Hour {
		return nil, errors.New("scheduler: offset must be within the hour")
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}
	locks := make(map[string]*sync.Mutex, len(p.Identities))
	for _, ident := range p.Identities {
		locks[ident] = &sync.Mutex{}
	}
	return &Scheduler{p: p, locks: locks}, nil
}

// Run blocks until ctx is cancelled, running one round per decision hour.
func (s *Scheduler) Run(ctx context.Context) error {
	now := s.p.Resolver.Now()
	logger.Info(ctx, "Scheduler started",
		"identities", s.p.Identities,
		"now", s.p.Resolver.Format(now),
		"offset", s.p.Offset.String(),
	)

	if s.p.RunOnStart {
		if label, ok := s.p.Resolver.CurrentPeriodLabel(now); ok {
			logger.Info(ctx, "Inside a decision hour at start, running now", "label", label)
			s.RunOnce(ctx, now)
		}
	}

	for {
		wake := s.NextWake(now)
		logger.Info(ctx, "Next cycle scheduled", "at", s.p.Resolver.Format(wake))

		if err := s.p.Sleep(ctx, wake.Sub(s.p.Resolver.Now())); err != nil {
			logger.Info(ctx, "Scheduler stopping")
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		s.RunOnce(ctx, wake)
		now = wake
	}
}

// NextWake is the next decision instant after now plus the offset, clamped to
// that day's close so the last hour still runs inside the session.
func (s *Scheduler) NextWake(now time.Time) time.Time {
	instant, _ := s.p.Resolver.NextDecisionInstant(now)
	wake := instant.Add(s.p.Offset)
	if closeAt := s.p.Resolver.SessionClose(instant); wake.After(closeAt) && !instant.After(closeAt) {
		wake = closeAt
	}
	return wake
}

// RunOnce runs a cycle for every identity at now. An identity whose previous
// cycle is still running is skipped. Failures are logged and do not stop the
// other identities.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) []*types.CycleResult {
	results := make([]*types.CycleResult, len(s.p.Identities))

	var g errgroup.Group
	if s.p.Parallelism > 0 {
		g.SetLimit(s.p.Parallelism)
	}
	for i, ident := range s.p.Identities {
		g.Go(func() error {
			results[i] = s.runIdentity(ctx, ident, now)
			return nil
		})
	}
	_ = g.Wait()

	if s.p.OnRound != nil {
		s.p.OnRound(ctx, now, results)
	}
	s.afterRound(ctx, now)
	return results
}

func (s *Scheduler) runIdentity(ctx context.Context, identity string, now time.Time) *types.CycleResult {
	mu := s.locks[identity]
	if !mu.TryLock() {
		logger.Skip(ctx, identity, types.SkipCycleInProgress)
		return &types.CycleResult{
			CycleID:  id.At(now),
			Identity: identity,
			Outcome:  types.OutcomeSkipped,
			Reason:   types.SkipCycleInProgress,
			RecordID: -1,
		}
	}
	defer mu.Unlock()

	res, err := s.p.Engine.RunCycle(ctx, identity, now)
	if err != nil {
		logger.ErrorWithErr(ctx, "Cycle failed", err, "identity", identity)
		if res == nil {
			res = &types.CycleResult{Identity: identity, Outcome: types.OutcomeFailed, Reason: err.Error(), RecordID: -1}
		}
	}
	return res
}

// afterRound writes the day's summaries once the last decision hour ran and
// compresses old cycle logs.
func (s *Scheduler) afterRound(ctx context.Context, now time.Time) {
	if s.p.Eod == nil || !s.p.Eod.ShouldRunNow(now) {
		return
	}
	date := calendar.FormatDate(now.In(s.p.Resolver.Location()))
	for _, ident := range s.p.Identities {
		path, err := s.p.Eod.SummarizeDay(ctx, ident, date)
		if err != nil {
			logger.ErrorWithErr(ctx, "EOD summary failed", err, "identity", ident, "date", date)
			continue
		}
		if path != "" {
			logger.Info(ctx, "EOD summary written", "identity", ident, "path", path)
		}
	}
	if s.p.Log != nil && s.p.RetentionDays > 0 {
		if err := s.p.Log.CompressOlder(s.p.RetentionDays); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
