// Package app wires configuration into the ledger, calendar, engine and their
// collaborators. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"live-trader/internal/api"
	"live-trader/internal/broker/brokerobs"
	"live-trader/internal/broker/paper"
	"live-trader/internal/broker/zerodha"
	"live-trader/internal/calendar"
	"live-trader/internal/engine"
	"live-trader/internal/engine/engineobs"
	"live-trader/internal/eod"
	"live-trader/internal/eod/eodobs"
	"live-trader/internal/interfaces"
	"live-trader/internal/journal"
	"live-trader/internal/ledger"
	"live-trader/internal/ledger/ledgerobs"
	"live-trader/internal/llm/llmobs"
	"live-trader/internal/llm/noop"
	"live-trader/internal/llm/openai"
	"live-trader/internal/logger"
	"live-trader/internal/metrics"
	"live-trader/internal/prices"
	"live-trader/internal/scheduler"
	"live-trader/internal/store"
	"live-trader/internal/tradelog"
	"live-trader/internal/types"
)

type App struct {
	Config     *store.Config
	Resolver   *calendar.Resolver
	Store      *ledger.Ledger
	Ledger     interfaces.Ledger
	Prices     *prices.File
	Engine     interfaces.Engine
	Eod        interfaces.EodSummarizer
	Log        *tradelog.Log
	Metrics    *metrics.Registry
	Journal    *journal.SQLite // nil unless journal.db_path is set
	Identities []string
}

func Build(ctx context.Context, cfg *store.Config) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New()}

	res, err := calendar.New(cfg.CalendarConfig())
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}
	a.Resolver = res

	cadence, err := res.CadenceByName(cfg.Ledger.Cadence)
	if err != nil {
		return nil, err
	}
	a.Store = ledger.New(cfg.Ledger.Root,
		ledger.WithCadence(cadence),
		ledger.WithInitialCash(cfg.Agent.InitialCash),
		ledger.WithFallbackCash(cfg.Agent.FallbackCash),
		ledger.WithOnMalformed(a.Metrics.MalformedHook()),
	)
	a.Ledger = ledgerobs.Wrap(a.Store, a.Metrics)

	a.Prices = initializePrices(ctx, cfg.Prices.MergedPath)
	a.Log = tradelog.New(cfg.Log.Dir, res.Location())
	a.Eod = eodobs.Wrap(eod.NewSummarizer(a.Ledger, res, cfg.EOD.Dir))

	agents, err := a.initializeAgents(ctx)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(engine.Params{
		Ledger:         a.Ledger,
		Resolver:       res,
		Prices:         a.Prices,
		Log:            a.Log,
		Universe:       cfg.Universe,
		Agents:         agents,
		Cadence:        cadence,
		MaxPositionPct: cfg.Agent.MaxPositionPct,
	})
	if err != nil {
		return nil, err
	}
	a.Engine = engineobs.Wrap(eng, a.Metrics)

	if cfg.Journal.DBPath != "" {
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		a.Journal = j
	}
	return a, nil
}

// Scheduler returns the hourly driver over every enabled identity.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	p := scheduler.Params{
		Engine:        a.Engine,
		Resolver:      a.Resolver,
		Identities:    a.Identities,
		Log:           a.Log,
		RetentionDays: a.Config.Log.RetentionDays,
		Offset:        a.Config.ScheduleOffset(),
		RunOnStart:    a.Config.Schedule.RunOnStart,
		Parallelism:   a.Config.Schedule.Parallelism,
	}
	if a.Config.EOD.Enabled {
		p.Eod = a.Eod
	}
	if a.Journal != nil {
		p.OnRound = func(ctx context.Context, _ time.Time, _ []*types.CycleResult) {
			if _, err := a.MirrorJournal(ctx); err != nil {
				logger.Warn(ctx, "Journal mirror failed", "error", err)
			}
		}
	}
	return scheduler.New(p)
}

// Server returns the HTTP server for metrics.addr.
func (a *App) Server() *api.Server {
	return api.New(api.Params{
		Addr:       a.Config.Metrics.Addr,
		Ledger:     a.Ledger,
		Resolver:   a.Resolver,
		Identities: a.Identities,
		Metrics:    a.Metrics.Handler(),
	})
}

// MirrorJournal copies new ledger records of every identity into the journal.
func (a *App) MirrorJournal(ctx context.Context) (int, error) {
	if a.Journal == nil {
		return 0, errors.New("journal.db_path is not configured")
	}
	total := 0
	for _, ident := range a.Identities {
		recs, err := a.Ledger.Records(ctx, ident)
		if err != nil {
			return total, err
		}
		n, err := a.Journal.Mirror(ctx, ident, recs)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (a *App) Close() error {
	if a.Journal != nil {
		return a.Journal.Close()
	}
	return nil
}

func initializePrices(ctx context.Context, path string) *prices.File {
	f, err := prices.Open(ctx, path)
	if err != nil {
		logger.Warn(ctx, "Price file unavailable, trades degrade to no-trade until a cycle finds it",
			"path", path,
			"error", err,
		)
		return prices.NewFile(path)
	}
	return f
}

func (a *App) initializeAgents(ctx context.Context) ([]engine.Agent, error) {
	cfg := a.Config
	models := cfg.EnabledModels()

	var live interfaces.Broker
	if cfg.Mode == store.ModeLive {
		if len(models) > 1 {
			logger.Warn(ctx, "LIVE mode with several identities: all of them trade one broker account", "count", len(models))
		}
		z, err := zerodha.NewZerodha(zerodha.Params{
			APIKey:      os.Getenv(cfg.Broker.APIKeyEnv),
			AccessToken: os.Getenv(cfg.Broker.AccessTokenEnv),
			Exchange:    cfg.Broker.Exchange,
			Product:     cfg.Broker.Product,
		})
		if err != nil {
			return nil, fmt.Errorf("broker: %w", err)
		}
		live = brokerobs.Wrap(z)
	} else {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	}

	agents := make([]engine.Agent, 0, len(models))
	for _, m := range models {
		ident := m.Identity()
		a.Identities = append(a.Identities, ident)

		brk := live
		if brk == nil {
			pb := paper.New(a.Prices)
			pos, _, err := a.Store.LatestPositions(ctx, ident, calendar.FormatDate(a.Resolver.Now()))
			if err != nil {
				return nil, err
			}
			pb.Seed(pos)
			brk = brokerobs.Wrap(pb)
		}

		agents = append(agents, engine.Agent{
			Identity: ident,
			Decider:  initializeDecider(ctx, cfg, m),
			Broker:   brk,
		})
	}
	return agents, nil
}

func initializeDecider(ctx context.Context, cfg *store.Config, m store.Model) interfaces.Decider {
	var decider interfaces.Decider

	switch m.Provider {
	case store.ProviderOpenAI:
		d, err := openai.NewOpenAIDecider(openai.Config{
			Name:        m.Identity(),
			BaseURL:     m.BaseURL,
			APIKey:      m.APIKey,
			Model:       m.Model,
			System:      m.System,
			Temperature: m.Temperature,
			MaxTokens:   m.MaxTokens,
			MaxRetries:  cfg.Agent.MaxRetries,
		})
		if err != nil {
			logger.Warn(ctx, "OpenAI decider unavailable - using Noop decider (always HOLD)", "identity", m.Identity(), "error", err)
			decider = noop.NewNoopDecider()
		} else {
			decider = d
		}
	default:
		decider = noop.NewNoopDecider()
	}

	return llmobs.Wrap(decider)
}
