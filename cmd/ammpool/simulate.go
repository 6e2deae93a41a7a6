package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammpool/internal/chain"
	"ammpool/internal/config"
	"ammpool/internal/metrics"
	"ammpool/internal/pool"
	"ammpool/internal/registry"
	"ammpool/internal/simulate"
	"ammpool/internal/storage"
	"ammpool/internal/storage/postgres"
)

const seedConcurrency = 4

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	regCfg, err := registryConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New("ammpool")
	opts := []simulate.Option{simulate.WithMetrics(m)}

	var sinks storage.Multi
	if cfg.EventsOut != "" {
		jsonl := storage.NewJsonlStorage(cfg.EventsOut)
		if err := jsonl.Reset(); err != nil {
			return err
		}
		sinks = append(sinks, jsonl)
	}
	if cfg.SnapshotOut != "" {
		opts = append(opts, simulate.WithSnapshotStores(&storage.SnapshotFile{Path: cfg.SnapshotOut}))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store.RunEvents(cfg.RunID))
		opts = append(opts, simulate.WithSnapshotStores(store))
	}
	if len(sinks) > 0 {
		opts = append(opts, simulate.WithStorage(sinks))
	}
	if cfg.ResultsOut != "" {
		results, err := newJSONLWriter(cfg.ResultsOut)
		if err != nil {
			return err
		}
		defer results.Close()
		opts = append(opts, simulate.WithResults(results))
	}

	runner, err := simulate.NewRunner(simulate.RunConfig{
		Registry:     regCfg,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		FailFast:     cfg.FailFast,
	}, logger, opts...)
	if err != nil {
		return err
	}

	logger.Info("simulate start",
		zap.String("in", cfg.In),
		zap.String("events_out", cfg.EventsOut),
		zap.String("snapshot_out", cfg.SnapshotOut),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.String("run_id", cfg.RunID),
		zap.Uint64("fee_numerator", cfg.FeeNumerator),
		zap.Uint64("fee_denominator", cfg.FeeDenominator),
		zap.Int("seed_pairs", len(cfg.SeedPairs)),
		zap.Bool("fail_fast", cfg.FailFast),
	)

	if len(cfg.SeedPairs) > 0 {
		if err := seedPools(ctx, cfg, runner, logger); err != nil {
			return err
		}
	}

	input, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer input.Close()

	_, runErr := runner.Run(ctx, input)

	if cfg.MetricsOut != "" {
		if err := m.WriteTextfile(cfg.MetricsOut); err != nil {
			logger.Warn("write metrics failed", zap.String("path", cfg.MetricsOut), zap.Error(err))
		}
	}
	return runErr
}

func seedPools(ctx context.Context, cfg config.SimulateConfig, runner *simulate.Runner, logger *zap.Logger) error {
	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required to seed pairs")
	}
	pairs, err := simulate.ParseAddresses(cfg.SeedPairs)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(cfg.Seeder) {
		return fmt.Errorf("invalid seeder address: %s", cfg.Seeder)
	}

	opts := chain.DefaultOptions()
	opts.RequestsPerSecond = cfg.RPCRate
	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, opts)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	states, err := chainClient.ReadPairs(ctx, pairs, seedConcurrency, logger)
	if err != nil {
		return fmt.Errorf("read pairs: %w", err)
	}
	seeded, err := runner.Seed(ctx, states, common.HexToAddress(cfg.Seeder))
	if err != nil {
		return err
	}
	logger.Info("seed complete", zap.Int("pairs", len(states)), zap.Int("pools", len(seeded)))
	return nil
}

func registryConfig(cfg config.SimulateConfig) (registry.Config, error) {
	regCfg := registry.DefaultConfig()
	regCfg.Pool = pool.Config{FeeNumerator: cfg.FeeNumerator, FeeDenominator: cfg.FeeDenominator}
	if err := regCfg.Pool.Validate(); err != nil {
		return registry.Config{}, err
	}
	if cfg.Factory != "" {
		if !common.IsHexAddress(cfg.Factory) {
			return registry.Config{}, fmt.Errorf("invalid factory address: %s", cfg.Factory)
		}
		regCfg.Factory = common.HexToAddress(cfg.Factory)
	}
	if cfg.InitCodeHash != "" {
		data, err := hexutil.Decode(cfg.InitCodeHash)
		if err != nil || len(data) != common.HashLength {
			return registry.Config{}, fmt.Errorf("invalid init code hash: %s", cfg.InitCodeHash)
		}
		regCfg.InitCodeHash = common.BytesToHash(data)
	}
	return regCfg, nil
}
