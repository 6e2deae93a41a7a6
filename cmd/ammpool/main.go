package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ammpool/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ammpool",
		Short:        "Constant-product AMM pool simulator",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadEnv(envFile)
		},
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before config")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a JSONL scenario against simulated pools",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("in", "", "input scenario JSONL")
	simulateCmd.Flags().String("events-out", "./data/events.jsonl", "output pool events JSONL")
	simulateCmd.Flags().String("results-out", "", "optional per-operation results JSONL")
	simulateCmd.Flags().String("snapshot-out", "./data/snapshot.json", "final pool snapshot JSON")
	simulateCmd.Flags().String("metrics-out", "", "optional Prometheus textfile output")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	simulateCmd.Flags().String("run-id", "", "run identifier for stored events (default: start time)")
	simulateCmd.Flags().String("rpc", "", "RPC URL used to seed pools from live pairs")
	simulateCmd.Flags().StringSlice("seed-pair", nil, "live V2 pair addresses to seed (comma-separated)")
	simulateCmd.Flags().String("seeder", "0x00000000000000000000000000000000005eed00", "account that provides seeded liquidity")
	simulateCmd.Flags().Uint64("fee-numerator", 997, "swap fee numerator (input kept after fee)")
	simulateCmd.Flags().Uint64("fee-denominator", 1000, "swap fee denominator")
	simulateCmd.Flags().String("factory", "", "factory address for pool address derivation (default: Uniswap V2)")
	simulateCmd.Flags().String("init-code-hash", "", "pair init code hash for pool address derivation (default: Uniswap V2)")
	simulateCmd.Flags().Int("batch-size", 1000, "events per storage batch")
	simulateCmd.Flags().Int("max-retries", 5, "maximum retry attempts for storage writes")
	simulateCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	simulateCmd.Flags().Bool("fail-fast", false, "stop at the first reverted operation")
	simulateCmd.Flags().Float64("rpc-rate", 20, "maximum RPC requests per second")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap against given or live reserves",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("reserve-in", "", "input-side reserve")
	quoteCmd.Flags().String("reserve-out", "", "output-side reserve")
	quoteCmd.Flags().String("amount", "", "input amount, or desired output with --exact-out")
	quoteCmd.Flags().Bool("exact-out", false, "quote the input required for an exact output")
	quoteCmd.Flags().Uint64("fee-numerator", 997, "swap fee numerator")
	quoteCmd.Flags().Uint64("fee-denominator", 1000, "swap fee denominator")
	quoteCmd.Flags().String("rpc", "", "RPC URL to read reserves from --pair")
	quoteCmd.Flags().String("pair", "", "live V2 pair address")
	quoteCmd.Flags().String("token-in", "", "input token of the live pair (default: token0)")
	quoteCmd.Flags().Int("decimals-in", -1, "input token decimals for human amounts")
	quoteCmd.Flags().Int("decimals-out", -1, "output token decimals for human amounts")
	quoteCmd.Flags().Float64("rpc-rate", 20, "maximum RPC requests per second")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
