package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simulateFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("simulate", pflag.ContinueOnError)
	flags.String("in", "", "")
	flags.StringSlice("seed-pair", nil, "")
	flags.Int("batch-size", 1000, "")
	flags.Bool("fail-fast", false, "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadSimulateDefaults(t *testing.T) {
	cfg, err := LoadSimulate("", simulateFlags(t))
	require.NoError(t, err)

	assert.Equal(t, uint64(997), cfg.FeeNumerator)
	assert.Equal(t, uint64(1000), cfg.FeeDenominator)
	assert.Equal(t, 1000, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, "./data/events.jsonl", cfg.EventsOut)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.RunID)
	assert.Nil(t, cfg.SeedPairs)
}

func TestLoadSimulatePrecedence(t *testing.T) {
	t.Setenv("AMMPOOL_BATCH_SIZE", "50")
	t.Setenv("AMMPOOL_FEE_NUMERATOR", "995")
	t.Setenv("AMMPOOL_SEED_PAIR", "0xa, 0xb,,")

	cfg, err := LoadSimulate("", simulateFlags(t, "--in", "scenario.jsonl", "--fail-fast"))
	require.NoError(t, err)
	assert.Equal(t, "scenario.jsonl", cfg.In)
	assert.True(t, cfg.FailFast)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, uint64(995), cfg.FeeNumerator)
	assert.Equal(t, []string{"0xa", "0xb"}, cfg.SeedPairs)

	cfg, err = LoadSimulate("", simulateFlags(t, "--batch-size", "7", "--seed-pair", "0xc"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.BatchSize)
	assert.Equal(t, []string{"0xc"}, cfg.SeedPairs)
}

func TestLoadQuoteConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quote.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reserve-in: \"1000\"\nreserve-out: \"2000\"\namount: \"10\"\nfee-numerator: 970\n"), 0o644))

	cfg, err := LoadQuote(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "1000", cfg.ReserveIn)
	assert.Equal(t, "2000", cfg.ReserveOut)
	assert.Equal(t, "10", cfg.Amount)
	assert.Equal(t, uint64(970), cfg.FeeNumerator)
	assert.Equal(t, uint64(1000), cfg.FeeDenominator)
	assert.Equal(t, -1, cfg.DecimalsIn)

	_, err = LoadQuote(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "absent.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("AMMPOOL_RPC=http://localhost:8545\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("AMMPOOL_RPC") })

	require.NoError(t, LoadEnv(path))
	cfg, err := LoadSimulate("", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
}
