package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ammpool/internal/model"
)

// ReadPair loads token addresses, token metadata and reserves of a V2 pair.
func (c *Client) ReadPair(ctx context.Context, pair common.Address, logger *zap.Logger) (model.PairState, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pairABI, err := PairABI()
	if err != nil {
		return model.PairState{}, fmt.Errorf("parse pair abi: %w", err)
	}

	values, err := c.callMethod(ctx, pair, pairABI, "token0")
	if err != nil {
		return model.PairState{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.PairState{}, fmt.Errorf("token0: %w", err)
	}

	values, err = c.callMethod(ctx, pair, pairABI, "token1")
	if err != nil {
		return model.PairState{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.PairState{}, fmt.Errorf("token1: %w", err)
	}

	values, err = c.callMethod(ctx, pair, pairABI, "getReserves")
	if err != nil {
		return model.PairState{}, err
	}
	if len(values) < 3 {
		return model.PairState{}, fmt.Errorf("getReserves: expected 3 values, got %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return model.PairState{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return model.PairState{}, fmt.Errorf("reserve1: %w", err)
	}
	ts, _ := values[2].(uint32)

	meta0, err := c.TokenMeta(ctx, token0, logger)
	if err != nil {
		return model.PairState{}, fmt.Errorf("token0 metadata: %w", err)
	}
	meta1, err := c.TokenMeta(ctx, token1, logger)
	if err != nil {
		return model.PairState{}, fmt.Errorf("token1 metadata: %w", err)
	}

	return model.PairState{
		Address:            pair.Hex(),
		Token0:             meta0,
		Token1:             meta1,
		Reserve0:           reserve0.String(),
		Reserve1:           reserve1.String(),
		BlockTimestampLast: ts,
	}, nil
}

// ReadPairs reads pairs concurrently and returns them in input order.
func (c *Client) ReadPairs(ctx context.Context, pairs []common.Address, concurrency int, logger *zap.Logger) ([]model.PairState, error) {
	out := make([]model.PairState, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, pair := range pairs {
		i, pair := i, pair
		g.Go(func() error {
			state, err := c.ReadPair(gctx, pair, logger)
			if err != nil {
				return fmt.Errorf("pair %s: %w", pair.Hex(), err)
			}
			out[i] = state
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// TokenMeta loads ERC-20 metadata, falling back to bytes32 symbol and name.
// Results are cached per token.
func (c *Client) TokenMeta(ctx context.Context, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	if cached, ok := c.tokens.Get(token); ok {
		return cached.(model.TokenMeta), nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	meta := model.TokenMeta{Address: token.Hex()}
	stringABI, err := erc20ABIString.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := c.callMethod(ctx, token, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	meta.Symbol = c.textField(ctx, token, stringABI, bytes32ABI, "symbol", logger)
	meta.Name = c.textField(ctx, token, stringABI, bytes32ABI, "name", logger)

	c.tokens.Add(token, meta)
	return meta, nil
}

func (c *Client) textField(ctx context.Context, token common.Address, stringABI, bytes32ABI abi.ABI, method string, logger *zap.Logger) string {
	if values, err := c.callMethod(ctx, token, stringABI, method); err == nil {
		if text, ok := values[0].(string); ok {
			return text
		}
	}
	values, err := c.callMethod(ctx, token, bytes32ABI, method)
	if err != nil {
		logger.Debug("token text call failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
		return ""
	}
	text, _ := bytes32ToString(values[0])
	return text
}

func (c *Client) callMethod(ctx context.Context, to common.Address, parsed abi.ABI, method string) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := c.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals out of range: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
