package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"trade_sim/internal/app"
	"trade_sim/internal/domain"
	"trade_sim/internal/infra"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML config file")
	flag.Parse()

	// 1. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap(*configPath)
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		bootstrap.Close()
		os.Exit(1)
	}
	defer bootstrap.Close()

	cfg := bootstrap.Config

	// 3. Metrics + Pprof Server (for monitoring and profiling)
	if cfg.Metrics.Addr != "" {
		go infra.ServeMetrics(ctx, cfg.Metrics.Addr, infra.NewRegistry(bootstrap.Metrics))
	}

	// 4. Session -> Dispatcher -> Pipeline -> Sink
	rt, err := bootstrap.Build()
	if err != nil {
		slog.Error("❌ Failed to build runtime", slog.Any("error", err))
		bootstrap.Close()
		os.Exit(1)
	}

	slog.InfoContext(ctx, "✨ Trade Sim fully operational. Press Ctrl+C to exit.",
		slog.String("exchange", cfg.Stream.Exchange),
		slog.String("symbol", cfg.Stream.Symbol),
		slog.String("quantity_usd", cfg.Intent.QuantityUSD.String()))

	err = rt.Run(ctx)

	snap := bootstrap.Metrics.Snapshot()
	slog.Info("👋 Shutting down gracefully...",
		slog.Uint64("ticks", snap.TicksReceived),
		slog.Uint64("estimates", snap.Estimates),
		slog.Uint64("dropped", snap.TicksDropped))

	if err != nil {
		var netErr *domain.NetworkError
		if errors.As(err, &netErr) {
			slog.Error("❌ Stream rejected", slog.String("op", netErr.Op), slog.Any("error", netErr.Err))
		}
		bootstrap.Close()
		os.Exit(1)
	}
}
