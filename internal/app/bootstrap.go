package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"poolbet/internal/core"
	"poolbet/internal/domain"
	"poolbet/internal/engine"
	"poolbet/internal/event"
	"poolbet/internal/freebet"
	"poolbet/internal/infra"
	"poolbet/internal/infra/feed"
	"poolbet/internal/infra/storage"
	"poolbet/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Storage   *storage.Storage // nil when the journal is disabled
	Pool      *core.PoolState
	Sequencer *engine.Sequencer
	Market    *service.MarketService
	Hub       *feed.Hub // nil when the feed is disabled
	Metrics   *infra.Metrics
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads the configuration file, sets up logging and builds the
// system from it.
func (b *Bootstrap) Initialize(ctx context.Context, configPath string) error {
	slog.Info("🚀 Bootstrapping poolbet...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))

	b.Metrics = infra.GlobalMetrics
	return b.Setup(ctx, cfg)
}

// Setup wires storage, pool, read model and sequencer, then replays the
// journal so the pool is back where it was.
func (b *Bootstrap) Setup(ctx context.Context, cfg *infra.Config) error {
	b.Config = cfg
	if b.Metrics == nil {
		b.Metrics = &infra.Metrics{}
	}

	params, err := cfg.PoolParams()
	if err != nil {
		return err
	}

	// 1. Storage (journal + index)
	sinks := event.Fanout{}
	b.Market = service.NewMarketService()
	sinks = append(sinks, b.Market, b.Metrics)
	if cfg.Storage.Path != "" {
		store, err := storage.NewStorage(cfg.Storage.Path)
		if err != nil {
			return err
		}
		b.Storage = store
		sinks = append(sinks, storage.NewIndexer(store))
		slog.Info("✅ Database initialized", slog.String("path", cfg.Storage.Path))
	}

	// 2. Pool + Sequencer
	b.Pool = core.New(domain.Account(cfg.Pool.Owner), params, core.WithSink(sinks))
	if cfg.FreeBet.Account != "" {
		if _, err := freebet.Attach(b.Pool, domain.Account(cfg.FreeBet.Account)); err != nil {
			return err
		}
		slog.Info("✅ Free bets enabled", slog.String("account", cfg.FreeBet.Account))
	}

	opts := []engine.Option{
		engine.WithObserver(func(_ string, res engine.Result, elapsed time.Duration) {
			b.Metrics.RecordCommand(res.Err != nil, elapsed)
		}),
		engine.WithDumpFile(cfg.Engine.DumpFile),
	}
	if cfg.Engine.VerifyInvariants {
		opts = append(opts, engine.WithInvariantChecks())
	}
	if b.Storage != nil {
		opts = append(opts, engine.WithJournal(b.Storage))
	}
	b.Sequencer = engine.NewSequencer(cfg.Engine.InboxSize, b.Pool, opts...)

	// 3. Replay
	if b.Storage != nil {
		records, err := b.Storage.LoadCommands(ctx, 1)
		if err != nil {
			return fmt.Errorf("failed to load journal: %w", err)
		}
		if err := b.Sequencer.Replay(records); err != nil {
			return err
		}
	}

	// 4. Feed, attached after replay so clients only see live events
	if cfg.Feed.Addr != "" {
		b.Hub = feed.NewHub(cfg.Feed.SendBuffer, b.Metrics)
		b.Pool.SetSink(append(sinks, b.Hub))
		slog.Info("✅ Feed hub ready", slog.String("addr", cfg.Feed.Addr))
	}

	return nil
}

// SeedRoles grants the oracle and maintainer roles listed in the config that
// the pool does not have yet. The sequencer must be running.
func (b *Bootstrap) SeedRoles(ctx context.Context) error {
	var missingOracles, missingMaintainers []domain.Account
	b.Sequencer.Read(func(p *core.PoolState) {
		for _, a := range b.Config.Pool.Oracles {
			if !p.IsOracle(domain.Account(a)) {
				missingOracles = append(missingOracles, domain.Account(a))
			}
		}
		for _, a := range b.Config.Pool.Maintainers {
			if !p.IsMaintainer(domain.Account(a)) {
				missingMaintainers = append(missingMaintainers, domain.Account(a))
			}
		}
	})

	owner := domain.Account(b.Config.Pool.Owner)
	submit := func(cmd engine.Command) error {
		res, err := b.Sequencer.Submit(ctx, owner, cmd)
		if err != nil {
			return err
		}
		return res.Err
	}
	for _, a := range missingOracles {
		if err := submit(&engine.AddOracle{Account: a}); err != nil {
			return fmt.Errorf("failed to add oracle %s: %w", a, err)
		}
	}
	for _, a := range missingMaintainers {
		if err := submit(&engine.AddMaintainer{Account: a}); err != nil {
			return fmt.Errorf("failed to add maintainer %s: %w", a, err)
		}
	}

	if n := len(missingOracles) + len(missingMaintainers); n > 0 {
		slog.Info("✅ Roles seeded", slog.Int("oracles", len(missingOracles)), slog.Int("maintainers", len(missingMaintainers)))
	}
	return nil
}

// Close releases storage.
func (b *Bootstrap) Close() error {
	if b.Storage == nil {
		return nil
	}
	return b.Storage.Close()
}
