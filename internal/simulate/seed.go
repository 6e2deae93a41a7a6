package simulate

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ammpool/internal/ledger"
	"ammpool/internal/model"
	"ammpool/internal/pool"
)

// Seed creates one pool per live pair state and deposits the pair's reserves
// from seeder as first liquidity. Pairs with an empty reserve are skipped.
func (r *Runner) Seed(ctx context.Context, pairs []model.PairState, seeder common.Address) ([]*pool.Pool, error) {
	seeded := make([]*pool.Pool, 0, len(pairs))
	for _, pair := range pairs {
		p, err := r.seedPair(ctx, pair, seeder)
		if err != nil {
			return seeded, fmt.Errorf("seed %s: %w", pair.Address, err)
		}
		if p != nil {
			seeded = append(seeded, p)
		}
	}
	if err := r.Flush(ctx); err != nil {
		return seeded, err
	}
	return seeded, nil
}

func (r *Runner) seedPair(ctx context.Context, pair model.PairState, seeder common.Address) (*pool.Pool, error) {
	reserve0, err := ParseAmount(pair.Reserve0)
	if err != nil {
		return nil, err
	}
	reserve1, err := ParseAmount(pair.Reserve1)
	if err != nil {
		return nil, err
	}
	if reserve0.IsZero() || reserve1.IsZero() {
		r.logger.Warn("skip empty pair", zap.String("pair", pair.Address))
		return nil, nil
	}

	token0, err := r.registerToken(pair.Token0)
	if err != nil {
		return nil, err
	}
	token1, err := r.registerToken(pair.Token1)
	if err != nil {
		return nil, err
	}

	p, err := r.registry.CreatePool(ctx, token0, token1)
	if err != nil {
		return nil, err
	}

	// Sorted order matches the live pair, so reserve0 belongs to token0.
	for _, deposit := range []struct {
		token  *ledger.Token
		amount *uint256.Int
	}{{token0, reserve0}, {token1, reserve1}} {
		if err := deposit.token.Mint(seeder, deposit.amount); err != nil {
			return nil, err
		}
		deposit.token.Approve(seeder, p.Address(), deposit.amount)
	}

	_, _, shares, err := p.AddLiquidity(ctx, seeder, reserve0, reserve1, reserve0, reserve1, seeder)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("pair", pair.Address),
		zap.String("pool", p.Address().Hex()),
		zap.String("token0", pair.Token0.Symbol),
		zap.String("token1", pair.Token1.Symbol),
		zap.String("reserve0", reserve0.Dec()),
		zap.String("reserve1", reserve1.Dec()),
		zap.String("shares", shares.Dec()),
	}
	if !common.IsHexAddress(pair.Address) || common.HexToAddress(pair.Address) != p.Address() {
		r.logger.Info("seeded pool address differs from live pair", fields...)
	} else {
		r.logger.Info("seeded pool", fields...)
	}
	return p, nil
}

func (r *Runner) registerToken(meta model.TokenMeta) (*ledger.Token, error) {
	if !common.IsHexAddress(meta.Address) {
		return nil, fmt.Errorf("invalid token address %q", meta.Address)
	}
	return r.book.Register(ledger.NewToken(common.HexToAddress(meta.Address), meta.Symbol, meta.Decimals)), nil
}
