package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"trade_sim/internal/domain"
	"trade_sim/internal/engine"
	"trade_sim/internal/infra"
	"trade_sim/internal/infra/gomarket"
	"trade_sim/internal/infra/storage"
	"trade_sim/internal/service"
	"trade_sim/internal/sink"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	ConfigPath string
	Config     *infra.Config
	Storage    *storage.Storage
	Metrics    *infra.Metrics
	Params     domain.ModelParameters

	// Out receives the estimate summary block when sink.summary is set.
	Out io.Writer
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(configPath string) *Bootstrap {
	return &Bootstrap{
		ConfigPath: configPath,
		Metrics:    infra.GlobalMetrics,
		Out:        os.Stdout,
	}
}

// Initialize performs core system initialization (config, logger, DB, parameters).
// Any *domain.ConfigError returned is fatal.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	slog.Info("🚀 Bootstrapping Trade Sim...")

	// 1. Load Config
	if b.Config == nil {
		cfg, err := infra.LoadConfig(b.ConfigPath)
		if err != nil {
			return err // Let main handle the error
		}
		b.Config = cfg
	}

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(b.Config))

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(b.Config.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	// 4. Load Model Parameters
	params, err := LoadParameters(ctx, b.Config.ModelParameters(), store)
	if err != nil {
		return err
	}
	b.Params = params
	slog.Info("✅ Model parameters loaded",
		slog.Bool("fitted_slippage", params.Slippage != nil),
		slog.Bool("fitted_maker_taker", params.MakerTaker != nil))

	return nil
}

// LoadParameters overlays the fitted coefficients from store on base.
// Missing fits leave the model fallbacks in place.
func LoadParameters(ctx context.Context, base domain.ModelParameters, store domain.ParameterStore) (domain.ModelParameters, error) {
	params := base
	if store == nil {
		return params, nil
	}

	slip, err := store.LoadSlippage(ctx)
	if err != nil {
		return params, fmt.Errorf("load slippage parameters: %w", err)
	}
	params.Slippage = slip

	mt, err := store.LoadMakerTaker(ctx)
	if err != nil {
		return params, fmt.Errorf("load maker/taker parameters: %w", err)
	}
	params.MakerTaker = mt

	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

// Close releases resources acquired by Initialize. It is safe to call more
// than once.
func (b *Bootstrap) Close() error {
	if b.Storage == nil {
		return nil
	}
	err := b.Storage.Close()
	b.Storage = nil
	return err
}

// Build wires the stream session, dispatcher, pipeline and sinks.
func (b *Bootstrap) Build() (*Runtime, error) {
	if b.Config == nil {
		return nil, errors.New("bootstrap not initialized")
	}
	cfg := b.Config

	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}
	session, err := gomarket.NewSession(gomarket.SessionConfig{
		URL:              endpoint,
		Exchange:         cfg.Stream.Exchange,
		Symbol:           cfg.Stream.Symbol,
		HandshakeTimeout: cfg.Stream.HandshakeTimeout,
		ReadTimeout:      cfg.Stream.ReadTimeout,
		PingInterval:     cfg.Stream.PingInterval,
		ReadLimit:        cfg.Stream.ReadLimit,
		Backoff:          cfg.BackoffPolicy(),
	}, b.Metrics)
	if err != nil {
		return nil, err
	}

	var summary io.Writer
	if cfg.Sink.Summary {
		summary = b.Out
	}
	sinks := sink.Multi{sink.NewLogSink(summary)}
	if cfg.Sink.Record && b.Storage != nil {
		sinks = append(sinks, sink.NewRecorder(b.Storage))
	}
	async := sink.NewAsyncSink(sinks, cfg.Sink.Buffer, cfg.Sink.PublishTimeout, b.Metrics)

	pipeline := service.NewPipeline(service.NewCostEstimator(b.Params), cfg.TradeIntent(), async, b.Metrics)
	dispatcher := engine.NewDispatcher(cfg.Dispatch.QueueCapacity, pipeline, b.Metrics)

	return &Runtime{
		Source:     session,
		Dispatcher: dispatcher,
		Sink:       async,
	}, nil
}
