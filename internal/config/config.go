package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "AMMPOOL"

// SimulateConfig holds settings for the simulate command.
type SimulateConfig struct {
	In             string
	EventsOut      string
	ResultsOut     string
	SnapshotOut    string
	MetricsOut     string
	PGDSN          string
	RunID          string
	RPCURL         string
	SeedPairs      []string
	Seeder         string
	FeeNumerator   uint64
	FeeDenominator uint64
	Factory        string
	InitCodeHash   string
	BatchSize      int
	MaxRetries     int
	RetryBackoff   time.Duration
	FailFast       bool
	RPCRate        float64
	LogLevel       string
}

// QuoteConfig holds settings for the quote command.
type QuoteConfig struct {
	ReserveIn      string
	ReserveOut     string
	Amount         string
	ExactOut       bool
	FeeNumerator   uint64
	FeeDenominator uint64
	RPCURL         string
	Pair           string
	TokenIn        string
	DecimalsIn     int
	DecimalsOut    int
	RPCRate        float64
	LogLevel       string
}

// LoadEnv loads a dotenv file into the process environment. A missing file
// is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"events-out":      "./data/events.jsonl",
		"snapshot-out":    "./data/snapshot.json",
		"fee-numerator":   uint64(997),
		"fee-denominator": uint64(1000),
		"batch-size":      1000,
		"max-retries":     5,
		"retry-backoff":   500 * time.Millisecond,
		"rpc-rate":        20.0,
		"log-level":       "info",
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		In:             v.GetString("in"),
		EventsOut:      v.GetString("events-out"),
		ResultsOut:     v.GetString("results-out"),
		SnapshotOut:    v.GetString("snapshot-out"),
		MetricsOut:     v.GetString("metrics-out"),
		PGDSN:          v.GetString("pg-dsn"),
		RunID:          v.GetString("run-id"),
		RPCURL:         v.GetString("rpc"),
		SeedPairs:      getStringSlice(v, "seed-pair"),
		Seeder:         v.GetString("seeder"),
		FeeNumerator:   v.GetUint64("fee-numerator"),
		FeeDenominator: v.GetUint64("fee-denominator"),
		Factory:        v.GetString("factory"),
		InitCodeHash:   v.GetString("init-code-hash"),
		BatchSize:      v.GetInt("batch-size"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		FailFast:       v.GetBool("fail-fast"),
		RPCRate:        v.GetFloat64("rpc-rate"),
		LogLevel:       v.GetString("log-level"),
	}
	if cfg.RunID == "" {
		cfg.RunID = time.Now().UTC().Format("20060102T150405Z")
	}

	return cfg, nil
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"fee-numerator":   uint64(997),
		"fee-denominator": uint64(1000),
		"decimals-in":     -1,
		"decimals-out":    -1,
		"rpc-rate":        20.0,
		"log-level":       "info",
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		ReserveIn:      v.GetString("reserve-in"),
		ReserveOut:     v.GetString("reserve-out"),
		Amount:         v.GetString("amount"),
		ExactOut:       v.GetBool("exact-out"),
		FeeNumerator:   v.GetUint64("fee-numerator"),
		FeeDenominator: v.GetUint64("fee-denominator"),
		RPCURL:         v.GetString("rpc"),
		Pair:           v.GetString("pair"),
		TokenIn:        v.GetString("token-in"),
		DecimalsIn:     v.GetInt("decimals-in"),
		DecimalsOut:    v.GetInt("decimals-out"),
		RPCRate:        v.GetFloat64("rpc-rate"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}

func load(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
