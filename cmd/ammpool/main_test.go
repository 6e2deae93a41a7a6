package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammpool/internal/config"
	"ammpool/internal/model"
	"ammpool/internal/registry"
	"ammpool/internal/storage"
)

func TestQuoteCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"quote", "--reserve-in", "1000", "--reserve-out", "2000", "--amount", "10", "--log-level", "error"})
	require.NoError(t, root.Execute())

	var q model.Quote
	require.NoError(t, json.Unmarshal(out.Bytes(), &q))
	assert.Equal(t, "19", q.AmountOut)
	assert.Equal(t, "10", q.AmountIn)
	assert.Equal(t, uint64(997), q.FeeNumerator)
}

func TestQuoteCommandRequiresAmount(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"quote", "--reserve-in", "1000", "--reserve-out", "2000"})
	require.Error(t, root.Execute())
}

func TestSimulateCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scenario.jsonl")
	tokA := "0x000000000000000000000000000000000000000A"
	tokB := "0x000000000000000000000000000000000000000b"
	alice := "0x00000000000000000000000000000000000000a1"
	poolHex := registry.PoolAddress(registry.DefaultFactory,
		common.HexToAddress(tokA), common.HexToAddress(tokB), registry.DefaultInitCodeHash).Hex()

	var sb bytes.Buffer
	for _, op := range []model.Operation{
		{Op: model.OpMint, Caller: alice, TokenA: tokA, Amount: "100"},
		{Op: model.OpMint, Caller: alice, TokenA: tokB, Amount: "200"},
		{Op: model.OpCreatePool, TokenA: tokA, TokenB: tokB},
		{Op: model.OpApprove, Caller: alice, TokenA: tokA, Spender: poolHex, Amount: "100"},
		{Op: model.OpApprove, Caller: alice, TokenA: tokB, Spender: poolHex, Amount: "200"},
		{Op: model.OpAddLiquidity, Caller: alice, TokenA: tokA, TokenB: tokB, Amount0: "100", Amount1: "200"},
	} {
		line, err := json.Marshal(op)
		require.NoError(t, err)
		sb.Write(line)
		sb.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(in, sb.Bytes(), 0o644))

	snapshot := filepath.Join(dir, "out", "snapshot.json")
	metricsOut := filepath.Join(dir, "metrics.prom")
	root := newRootCmd()
	root.SetArgs([]string{"simulate",
		"--in", in,
		"--events-out", filepath.Join(dir, "out", "events.jsonl"),
		"--results-out", filepath.Join(dir, "out", "results.jsonl"),
		"--snapshot-out", snapshot,
		"--metrics-out", metricsOut,
		"--log-level", "error",
	})
	require.NoError(t, root.Execute())

	snaps, err := (&storage.SnapshotFile{Path: snapshot}).LoadSnapshots()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, poolHex, snaps[0].Address)
	assert.Equal(t, "141", snaps[0].TotalShares)

	_, err = os.Stat(metricsOut)
	require.NoError(t, err)
}

func TestRegistryConfig(t *testing.T) {
	cfg, err := registryConfig(config.SimulateConfig{FeeNumerator: 997, FeeDenominator: 1000})
	require.NoError(t, err)
	assert.Equal(t, registry.DefaultFactory, cfg.Factory)

	_, err = registryConfig(config.SimulateConfig{FeeNumerator: 997, FeeDenominator: 1000, InitCodeHash: "0x1234"})
	require.Error(t, err)

	_, err = registryConfig(config.SimulateConfig{FeeNumerator: 0, FeeDenominator: 1000})
	require.Error(t, err)
}
