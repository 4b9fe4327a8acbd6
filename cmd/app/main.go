package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"poolbet/internal/app"
	"poolbet/internal/infra/feed"

	"golang.org/x/sync/errgroup"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	script := flag.String("script", "", "workflow file to run against the pool")
	rounds := flag.Int("simulate", 0, "number of simulated rounds to play")
	seed := flag.Uint64("seed", 1, "simulation seed")
	serve := flag.String("serve", "", "serve the event feed on this address (overrides feed.addr)")
	watch := flag.String("watch", "", "follow a running feed, e.g. ws://localhost:8080/ws")
	channels := flag.String("channels", "", "comma separated feed channels for -watch")
	flag.Parse()

	// 1. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watch != "" {
		if err := follow(ctx, *watch, *channels); err != nil {
			slog.Error("❌ Feed client failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	// 2. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 3. System Bootstrapping
	if *serve != "" {
		os.Setenv("POOLBET_FEED_ADDR", *serve)
	}
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx, *configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	if err := run(ctx, bootstrap, *script, *rounds, *seed); err != nil {
		slog.Error("❌ Run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, b *app.Bootstrap, script string, rounds int, seed uint64) error {
	g, ctx := errgroup.WithContext(ctx)

	// Sequencer (the hot path) gets its own context so it outlives the
	// jobs that submit to it.
	seqCtx, stopSeq := context.WithCancel(context.Background())
	seqDone := make(chan struct{})
	go func() {
		defer close(seqDone)
		b.Sequencer.Run(seqCtx)
	}()
	defer func() {
		stopSeq()
		<-seqDone
	}()
	slog.InfoContext(ctx, "✅ Sequencer (Hotpath) started")

	if b.Hub != nil {
		g.Go(func() error {
			if err := b.Hub.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		g.Go(func() error { return b.Hub.Serve(ctx, b.Config.Feed.Addr) })
	}

	if err := b.SeedRoles(ctx); err != nil {
		return err
	}

	batch := script != "" || rounds > 0
	g.Go(func() error {
		if script != "" {
			wf, err := app.LoadWorkflow(script)
			if err != nil {
				return err
			}
			results, err := app.RunWorkflow(ctx, b.Sequencer, wf)
			slog.InfoContext(ctx, "✅ Workflow finished", slog.String("file", script), slog.Int("steps", len(results)))
			if err != nil {
				return err
			}
		}
		if rounds > 0 {
			report, err := app.Simulate(ctx, b, app.SimOptions{Rounds: rounds, Seed: seed})
			if err != nil {
				return err
			}
			slog.InfoContext(ctx, "✅ Simulation report",
				slog.Int("resolved", report.Resolved),
				slog.Int("canceled", report.Canceled),
				slog.Int("strategy_bets", report.StrategyBets),
				slog.Int64("paid", report.Paid),
				slog.Int("alert_hits", report.AlertHits))
		}
		return nil
	})

	// Without a batch job the process serves until interrupted.
	if !batch {
		g.Go(func() error {
			<-ctx.Done()
			return nil
		})
	}
	if !batch || b.Hub != nil {
		slog.InfoContext(ctx, "✨ poolbet fully operational. Press Ctrl+C to exit.")
	}

	err := g.Wait()
	slog.Info("👋 Shutting down gracefully...")
	if perr := app.PrintReport(os.Stdout, b); perr != nil {
		slog.Error("Failed to print report", slog.Any("error", perr))
	}
	return err
}

// follow prints every message of a running feed until interrupted.
func follow(ctx context.Context, url, channels string) error {
	var subs []string
	if channels != "" {
		subs = strings.Split(channels, ",")
	}
	out := make(chan feed.Message, 256)
	client := feed.NewClient(url, subs, out)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-out:
			fmt.Printf("%6d %-22s %s\n", m.Seq, m.Type, m.Payload)
		}
	}
}
