// Command fit trains the slippage and maker/taker models from historical
// samples and stores the coefficients for the live estimator.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"trade_sim/internal/infra"
	"trade_sim/internal/infra/storage"
	"trade_sim/internal/model"
)

func main() {
	var (
		configPath   = flag.String("config", "configs/config.yaml", "Path to the YAML config file")
		slippagePath = flag.String("slippage", "", "CSV of quantity_usd,slippage_usd")
		fillsPath    = flag.String("fills", "", "CSV of volatility,quantity_usd,maker")
		iterations   = flag.Int("iterations", model.DefaultLogisticOptions().Iterations, "Gradient descent iterations for the maker/taker fit")
	)
	flag.Parse()

	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		slog.Error("❌ Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(infra.NewLogger(cfg))

	if *slippagePath == "" && *fillsPath == "" {
		fmt.Fprintln(os.Stderr, "nothing to fit: pass -slippage and/or -fills")
		flag.Usage()
		os.Exit(2)
	}

	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		slog.Error("❌ Failed to open storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	opts := model.DefaultLogisticOptions()
	opts.Iterations = *iterations

	if err := run(ctx, store, *slippagePath, *fillsPath, opts); err != nil {
		slog.Error("❌ Fit failed", slog.Any("error", err))
		store.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, store *storage.Storage, slippagePath, fillsPath string, opts model.LogisticOptions) error {
	if slippagePath != "" {
		f, err := os.Open(slippagePath)
		if err != nil {
			return err
		}
		samples, err := model.ReadSlippageSamples(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", slippagePath, err)
		}

		params, err := model.FitLinear(samples)
		if err != nil {
			return fmt.Errorf("fit slippage: %w", err)
		}
		if err := store.SaveSlippage(ctx, params); err != nil {
			return fmt.Errorf("save slippage: %w", err)
		}
		if err := store.SaveSetting("fit.slippage.source", slippagePath); err != nil {
			return err
		}
		slog.Info("✅ Slippage model fitted",
			slog.String("weight", params.Weight.String()),
			slog.String("bias", params.Bias.String()),
			slog.Int("samples", params.SampleCount))
	}

	if fillsPath != "" {
		f, err := os.Open(fillsPath)
		if err != nil {
			return err
		}
		samples, err := model.ReadFillSamples(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", fillsPath, err)
		}

		params, err := model.FitLogistic(samples, opts)
		if err != nil {
			return fmt.Errorf("fit maker/taker: %w", err)
		}
		if err := store.SaveMakerTaker(ctx, params); err != nil {
			return fmt.Errorf("save maker/taker: %w", err)
		}
		if err := store.SaveSetting("fit.maker_taker.source", fillsPath); err != nil {
			return err
		}
		slog.Info("✅ Maker/taker model fitted",
			slog.Float64("intercept", params.Intercept),
			slog.Float64("volatility_coef", params.VolatilityCoef),
			slog.Float64("quantity_coef", params.QuantityCoef),
			slog.Int("samples", params.SampleCount))
	}

	return nil
}
