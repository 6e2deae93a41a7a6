package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammpool/internal/chain"
	"ammpool/internal/config"
	"ammpool/internal/model"
	"ammpool/internal/pool"
	"ammpool/internal/quote"
	"ammpool/internal/simulate"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	amount, err := simulate.ParseAmount(cfg.Amount)
	if err != nil {
		return err
	}
	if amount.IsZero() {
		return fmt.Errorf("amount is required")
	}
	decimalsIn, err := quote.ParseDecimals(cfg.DecimalsIn)
	if err != nil {
		return err
	}
	decimalsOut, err := quote.ParseDecimals(cfg.DecimalsOut)
	if err != nil {
		return err
	}

	req := quote.Request{
		Amount:      amount,
		ExactOut:    cfg.ExactOut,
		Fee:         pool.Config{FeeNumerator: cfg.FeeNumerator, FeeDenominator: cfg.FeeDenominator},
		DecimalsIn:  decimalsIn,
		DecimalsOut: decimalsOut,
	}

	var pairMeta *livePair
	if cfg.Pair != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		pairMeta, err = readLivePair(ctx, cfg, logger)
		if err != nil {
			return err
		}
		req.ReserveIn, req.ReserveOut = pairMeta.reserveIn, pairMeta.reserveOut
		if req.DecimalsIn < 0 {
			req.DecimalsIn = int(pairMeta.tokenIn.Decimals)
		}
		if req.DecimalsOut < 0 {
			req.DecimalsOut = int(pairMeta.tokenOut.Decimals)
		}
	} else {
		if req.ReserveIn, err = simulate.ParseAmount(cfg.ReserveIn); err != nil {
			return err
		}
		if req.ReserveOut, err = simulate.ParseAmount(cfg.ReserveOut); err != nil {
			return err
		}
	}

	result, err := quote.Compute(req)
	if err != nil {
		return err
	}
	if pairMeta != nil {
		result.Pool = pairMeta.address
		result.TokenIn = pairMeta.tokenIn.Address
		result.TokenOut = pairMeta.tokenOut.Address
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

type livePair struct {
	address    string
	tokenIn    model.TokenMeta
	tokenOut   model.TokenMeta
	reserveIn  *uint256.Int
	reserveOut *uint256.Int
}

func readLivePair(ctx context.Context, cfg config.QuoteConfig, logger *zap.Logger) (*livePair, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required with --pair")
	}
	if !common.IsHexAddress(cfg.Pair) {
		return nil, fmt.Errorf("invalid pair address: %s", cfg.Pair)
	}

	opts := chain.DefaultOptions()
	opts.RequestsPerSecond = cfg.RPCRate
	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, opts)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	state, err := chainClient.ReadPair(ctx, common.HexToAddress(cfg.Pair), logger)
	if err != nil {
		return nil, fmt.Errorf("read pair: %w", err)
	}
	reserve0, err := simulate.ParseAmount(state.Reserve0)
	if err != nil {
		return nil, err
	}
	reserve1, err := simulate.ParseAmount(state.Reserve1)
	if err != nil {
		return nil, err
	}

	out := &livePair{
		address:    state.Address,
		tokenIn:    state.Token0,
		tokenOut:   state.Token1,
		reserveIn:  reserve0,
		reserveOut: reserve1,
	}
	switch {
	case cfg.TokenIn == "" || strings.EqualFold(cfg.TokenIn, state.Token0.Address):
	case strings.EqualFold(cfg.TokenIn, state.Token1.Address):
		out.tokenIn, out.tokenOut = state.Token1, state.Token0
		out.reserveIn, out.reserveOut = reserve1, reserve0
	default:
		return nil, fmt.Errorf("%w: %s is not in pair %s", pool.ErrUnknownAsset, cfg.TokenIn, state.Address)
	}

	logger.Debug("live reserves",
		zap.String("pair", state.Address),
		zap.String("token_in", out.tokenIn.Symbol),
		zap.String("token_out", out.tokenOut.Symbol),
		zap.String("reserve_in", out.reserveIn.Dec()),
		zap.String("reserve_out", out.reserveOut.Dec()),
	)
	return out, nil
}
