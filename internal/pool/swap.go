package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ammpool/internal/fixedpoint"
	"ammpool/internal/model"
)

// SwapExactIn sells exactly amountIn of tokenIn and pays the quoted output of
// the other asset to recipient.
func (p *Pool) SwapExactIn(
	ctx context.Context,
	caller, tokenIn common.Address,
	amountIn, amountOutMin *uint256.Int,
	recipient common.Address,
) (*uint256.Int, error) {
	ctx, cur, release, err := p.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	sideIn, err := cur.sideOf(tokenIn)
	if err != nil {
		return nil, err
	}
	if isZero(amountIn) {
		return nil, fmt.Errorf("%w: amount in must be positive", ErrInvalidAmount)
	}
	if err := checkSwappable(cur, recipient); err != nil {
		return nil, err
	}

	amountOut, err := AmountOut(amountIn, cur.reserves[sideIn], cur.reserves[sideIn.Other()], p.fee)
	if err != nil {
		return nil, err
	}
	if amountOut.IsZero() {
		return nil, fmt.Errorf("%w: input %s rounds to zero output", ErrInsufficientOutput, amountIn.Dec())
	}
	if amountOut.Lt(orZero(amountOutMin)) {
		return nil, fmt.Errorf("%w: %s < %s", ErrInsufficientOutput, amountOut.Dec(), amountOutMin.Dec())
	}

	if err := p.settleSwap(ctx, cur, caller, recipient, sideIn, amountIn, amountOut); err != nil {
		return nil, err
	}
	return amountOut, nil
}

// SwapExactOut buys exactly amountOut of tokenOut, paying at most amountInMax
// of tokenIn, and returns the input charged.
func (p *Pool) SwapExactOut(
	ctx context.Context,
	caller, tokenIn common.Address,
	amountInMax *uint256.Int,
	tokenOut common.Address,
	amountOut *uint256.Int,
	recipient common.Address,
) (*uint256.Int, error) {
	ctx, cur, release, err := p.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	sideIn, err := cur.sideOf(tokenIn)
	if err != nil {
		return nil, err
	}
	sideOut, err := cur.sideOf(tokenOut)
	if err != nil {
		return nil, err
	}
	if sideOut != sideIn.Other() {
		return nil, fmt.Errorf("%w: token out %s equals token in", ErrUnknownAsset, tokenOut.Hex())
	}
	if isZero(amountOut) {
		return nil, fmt.Errorf("%w: amount out must be positive", ErrInvalidAmount)
	}
	if err := checkSwappable(cur, recipient); err != nil {
		return nil, err
	}

	amountIn, err := AmountIn(amountOut, cur.reserves[sideIn], cur.reserves[sideOut], p.fee)
	if err != nil {
		return nil, err
	}
	if amountIn.Gt(orZero(amountInMax)) {
		return nil, fmt.Errorf("%w: %s > %s", ErrExcessiveInput, amountIn.Dec(), orZero(amountInMax).Dec())
	}

	if err := p.settleSwap(ctx, cur, caller, recipient, sideIn, amountIn, amountOut); err != nil {
		return nil, err
	}
	return amountIn, nil
}

func checkSwappable(cur *state, recipient common.Address) error {
	if recipient == (common.Address{}) {
		return fmt.Errorf("%w: recipient", ErrZeroAddress)
	}
	if cur.isEmpty() {
		return fmt.Errorf("%w: pool is empty", ErrInsufficientLiquidity)
	}
	return nil
}

// settleSwap checks the constant product against the prospective reserves,
// moves both legs and commits.
func (p *Pool) settleSwap(
	ctx context.Context,
	cur *state,
	caller, recipient common.Address,
	sideIn AssetSide,
	amountIn, amountOut *uint256.Int,
) error {
	sideOut := sideIn.Other()
	if !amountOut.Lt(cur.reserves[sideOut]) {
		return fmt.Errorf("%w: output %s drains reserve %s", ErrInsufficientLiquidity, amountOut.Dec(), cur.reserves[sideOut].Dec())
	}

	var reserves [2]*uint256.Int
	var err error
	reserves[sideIn], err = fixedpoint.Add(cur.reserves[sideIn], amountIn)
	if err != nil {
		return err
	}
	reserves[sideOut] = new(uint256.Int).Sub(cur.reserves[sideOut], amountOut)

	kBefore := product(cur.reserves[Side0], cur.reserves[Side1])
	kAfter := product(reserves[Side0], reserves[Side1])
	if kAfter.Cmp(kBefore) < 0 {
		return fmt.Errorf("%w: %s < %s", ErrInvariantViolated, kAfter, kBefore)
	}

	if err := p.pull(ctx, cur, sideIn, caller, amountIn); err != nil {
		return err
	}
	if err := p.push(ctx, cur, sideOut, recipient, amountOut); err != nil {
		return p.rollback(ctx, err, refund{side: sideIn, to: caller, amount: amountIn, pulled: true})
	}

	next := p.commit(cur, reserves[Side0], reserves[Side1], cur.totalShares)

	data := model.SwapEventData{
		Sender:     caller.Hex(),
		Recipient:  recipient.Hex(),
		Amount0In:  "0",
		Amount1In:  "0",
		Amount0Out: "0",
		Amount1Out: "0",
	}
	if sideIn == Side0 {
		data.Amount0In, data.Amount1Out = amountIn.Dec(), amountOut.Dec()
	} else {
		data.Amount1In, data.Amount0Out = amountIn.Dec(), amountOut.Dec()
	}

	p.logger.Debug("swap",
		zap.String("caller", caller.Hex()),
		zap.String("side_in", sideIn.String()),
		zap.String("amount_in", amountIn.Dec()),
		zap.String("amount_out", amountOut.Dec()),
	)
	p.emit(ctx, model.EventSwap, data)
	p.emitSync(ctx, next)
	return nil
}
