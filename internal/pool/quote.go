package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ammpool/internal/fixedpoint"
)

// AmountOut returns floor(amountIn*feeNum*reserveOut / (reserveIn*feeDen + amountIn*feeNum)).
// A zero input or an empty reserve quotes zero.
func AmountOut(amountIn, reserveIn, reserveOut *uint256.Int, cfg Config) (*uint256.Int, error) {
	if isZero(amountIn) || isZero(reserveIn) || isZero(reserveOut) {
		return new(uint256.Int), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	feeNum := uint256.NewInt(cfg.FeeNumerator)
	feeDen := uint256.NewInt(cfg.FeeDenominator)

	amountInWithFee, err := fixedpoint.Mul(amountIn, feeNum)
	if err != nil {
		return nil, err
	}
	scaledReserve, err := fixedpoint.Mul(reserveIn, feeDen)
	if err != nil {
		return nil, err
	}
	denominator, err := fixedpoint.Add(scaledReserve, amountInWithFee)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulDivFloor(amountInWithFee, reserveOut, denominator)
}

// AmountIn returns ceil(reserveIn*amountOut*feeDen / ((reserveOut-amountOut)*feeNum)).
// Requesting the whole reserve or more fails with ErrInsufficientLiquidity.
func AmountIn(amountOut, reserveIn, reserveOut *uint256.Int, cfg Config) (*uint256.Int, error) {
	amountOut = orZero(amountOut)
	reserveOut = orZero(reserveOut)
	if !amountOut.Lt(reserveOut) {
		return nil, fmt.Errorf("%w: want %s of reserve %s", ErrInsufficientLiquidity, amountOut.Dec(), reserveOut.Dec())
	}
	if amountOut.IsZero() {
		return new(uint256.Int), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if isZero(reserveIn) {
		return nil, fmt.Errorf("%w: empty input reserve", ErrInsufficientLiquidity)
	}
	feeNum := uint256.NewInt(cfg.FeeNumerator)
	feeDen := uint256.NewInt(cfg.FeeDenominator)

	scaledOut, err := fixedpoint.Mul(amountOut, feeDen)
	if err != nil {
		return nil, err
	}
	remaining := new(uint256.Int).Sub(reserveOut, amountOut)
	denominator, err := fixedpoint.Mul(remaining, feeNum)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulDivRoundingUp(reserveIn, scaledOut, denominator)
}

// GetAmountOut quotes a swap of amountIn of tokenIn against committed reserves.
func (p *Pool) GetAmountOut(amountIn *uint256.Int, tokenIn common.Address) (*uint256.Int, error) {
	cur := p.state.Load()
	if !cur.initialized {
		return nil, ErrNotInitialized
	}
	side, err := cur.sideOf(tokenIn)
	if err != nil {
		return nil, err
	}
	return AmountOut(amountIn, cur.reserves[side], cur.reserves[side.Other()], p.fee)
}

// GetAmountIn quotes the input needed to receive amountOut of tokenOut.
func (p *Pool) GetAmountIn(amountOut *uint256.Int, tokenOut common.Address) (*uint256.Int, error) {
	cur := p.state.Load()
	if !cur.initialized {
		return nil, ErrNotInitialized
	}
	side, err := cur.sideOf(tokenOut)
	if err != nil {
		return nil, err
	}
	return AmountIn(amountOut, cur.reserves[side.Other()], cur.reserves[side], p.fee)
}
