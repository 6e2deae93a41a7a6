package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ammpool/internal/fixedpoint"
	"ammpool/internal/model"
)

// LiquidityQuote is the outcome of a deposit against given reserves.
type LiquidityQuote struct {
	Amount0 *uint256.Int
	Amount1 *uint256.Int
	Shares  *uint256.Int
}

// QuoteLiquidity computes the amounts a deposit would use and the shares it
// would mint. The first deposit uses both desired amounts and mints
// floor(sqrt(amount0*amount1)). Later deposits keep the reserve ratio, using
// whichever side fits, and mint the smaller of the two proportional share
// counts.
func QuoteLiquidity(amount0Desired, amount1Desired, reserve0, reserve1, totalShares *uint256.Int) (LiquidityQuote, error) {
	if isZero(amount0Desired) || isZero(amount1Desired) {
		return LiquidityQuote{}, fmt.Errorf("%w: desired amounts must be positive", ErrInvalidAmount)
	}

	if isZero(totalShares) {
		prod, err := fixedpoint.Mul(amount0Desired, amount1Desired)
		if err != nil {
			return LiquidityQuote{}, err
		}
		shares := fixedpoint.Sqrt(prod)
		if shares.IsZero() {
			return LiquidityQuote{}, ErrInsufficientInitialLiquidity
		}
		return LiquidityQuote{
			Amount0: amount0Desired.Clone(),
			Amount1: amount1Desired.Clone(),
			Shares:  shares,
		}, nil
	}

	if isZero(reserve0) || isZero(reserve1) {
		return LiquidityQuote{}, fmt.Errorf("%w: shares outstanding with empty reserve", ErrInsufficientLiquidity)
	}

	var used0, used1 *uint256.Int
	optimal1, err := fixedpoint.MulDivFloor(amount0Desired, reserve1, reserve0)
	if err != nil {
		return LiquidityQuote{}, err
	}
	if !amount1Desired.Lt(optimal1) {
		used0, used1 = amount0Desired.Clone(), optimal1
	} else {
		optimal0, err := fixedpoint.MulDivFloor(amount1Desired, reserve0, reserve1)
		if err != nil {
			return LiquidityQuote{}, err
		}
		used0, used1 = optimal0, amount1Desired.Clone()
	}

	shares0, err := fixedpoint.MulDivFloor(used0, totalShares, reserve0)
	if err != nil {
		return LiquidityQuote{}, err
	}
	shares1, err := fixedpoint.MulDivFloor(used1, totalShares, reserve1)
	if err != nil {
		return LiquidityQuote{}, err
	}
	shares := fixedpoint.Min(shares0, shares1)
	if shares.IsZero() {
		return LiquidityQuote{}, fmt.Errorf("%w: no shares minted", ErrInsufficientLiquidity)
	}
	return LiquidityQuote{Amount0: used0, Amount1: used1, Shares: shares}, nil
}

// QuoteLiquidity evaluates a deposit against the committed reserves.
func (p *Pool) QuoteLiquidity(amount0Desired, amount1Desired *uint256.Int) (LiquidityQuote, error) {
	cur := p.state.Load()
	if !cur.initialized {
		return LiquidityQuote{}, ErrNotInitialized
	}
	return QuoteLiquidity(amount0Desired, amount1Desired, cur.reserves[Side0], cur.reserves[Side1], cur.totalShares)
}

// AddLiquidity pulls the quoted amounts from caller and mints shares to
// recipient. Amounts are in canonical asset order.
func (p *Pool) AddLiquidity(
	ctx context.Context,
	caller common.Address,
	amount0Desired, amount1Desired, amount0Min, amount1Min *uint256.Int,
	recipient common.Address,
) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	ctx, cur, release, err := p.enter(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	defer release()

	if recipient == (common.Address{}) {
		return nil, nil, nil, fmt.Errorf("%w: recipient", ErrZeroAddress)
	}

	quote, err := QuoteLiquidity(amount0Desired, amount1Desired, cur.reserves[Side0], cur.reserves[Side1], cur.totalShares)
	if err != nil {
		return nil, nil, nil, err
	}
	if quote.Amount0.Lt(orZero(amount0Min)) {
		return nil, nil, nil, fmt.Errorf("%w: %s < %s", ErrInsufficientAmount0, quote.Amount0.Dec(), amount0Min.Dec())
	}
	if quote.Amount1.Lt(orZero(amount1Min)) {
		return nil, nil, nil, fmt.Errorf("%w: %s < %s", ErrInsufficientAmount1, quote.Amount1.Dec(), amount1Min.Dec())
	}

	reserve0, err := fixedpoint.Add(cur.reserves[Side0], quote.Amount0)
	if err != nil {
		return nil, nil, nil, err
	}
	reserve1, err := fixedpoint.Add(cur.reserves[Side1], quote.Amount1)
	if err != nil {
		return nil, nil, nil, err
	}
	totalShares, err := fixedpoint.Add(cur.totalShares, quote.Shares)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := p.pull(ctx, cur, Side0, caller, quote.Amount0); err != nil {
		return nil, nil, nil, err
	}
	if err := p.pull(ctx, cur, Side1, caller, quote.Amount1); err != nil {
		return nil, nil, nil, p.rollback(ctx, err, refund{side: Side0, to: caller, amount: quote.Amount0, pulled: true})
	}

	p.sharesMu.Lock()
	p.creditLocked(recipient, quote.Shares)
	p.sharesMu.Unlock()
	next := p.commit(cur, reserve0, reserve1, totalShares)

	p.logger.Debug("liquidity added",
		zap.String("caller", caller.Hex()),
		zap.String("amount0", quote.Amount0.Dec()),
		zap.String("amount1", quote.Amount1.Dec()),
		zap.String("shares", quote.Shares.Dec()),
	)
	p.emit(ctx, model.EventMint, model.MintEventData{
		Sender:    caller.Hex(),
		Recipient: recipient.Hex(),
		Amount0:   quote.Amount0.Dec(),
		Amount1:   quote.Amount1.Dec(),
		Shares:    quote.Shares.Dec(),
	})
	p.emitSync(ctx, next)

	return quote.Amount0, quote.Amount1, quote.Shares, nil
}

// RemoveLiquidity burns caller's shares and pays the proportional reserves to
// recipient. There is no exit fee.
func (p *Pool) RemoveLiquidity(
	ctx context.Context,
	caller common.Address,
	shareAmount, amount0Min, amount1Min *uint256.Int,
	recipient common.Address,
) (*uint256.Int, *uint256.Int, error) {
	return p.removeLiquidity(ctx, caller, caller, shareAmount, amount0Min, amount1Min, recipient)
}

// RemoveLiquidityFrom burns owner's shares on behalf of spender, consuming the
// share allowance owner granted to spender.
func (p *Pool) RemoveLiquidityFrom(
	ctx context.Context,
	spender, owner common.Address,
	shareAmount, amount0Min, amount1Min *uint256.Int,
	recipient common.Address,
) (*uint256.Int, *uint256.Int, error) {
	return p.removeLiquidity(ctx, spender, owner, shareAmount, amount0Min, amount1Min, recipient)
}

func (p *Pool) removeLiquidity(
	ctx context.Context,
	spender, owner common.Address,
	shareAmount, amount0Min, amount1Min *uint256.Int,
	recipient common.Address,
) (*uint256.Int, *uint256.Int, error) {
	ctx, cur, release, err := p.enter(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	if isZero(shareAmount) {
		return nil, nil, fmt.Errorf("%w: share amount must be positive", ErrInvalidAmount)
	}
	if recipient == (common.Address{}) {
		return nil, nil, fmt.Errorf("%w: recipient", ErrZeroAddress)
	}
	if cur.isEmpty() {
		return nil, nil, fmt.Errorf("%w: pool is empty", ErrInsufficientLiquidity)
	}

	balance := p.ShareBalanceOf(owner)
	if balance.Lt(shareAmount) {
		return nil, nil, fmt.Errorf("%w: balance %s < %s", ErrInsufficientLiquidity, balance.Dec(), shareAmount.Dec())
	}
	if spender != owner {
		if allowance := p.ShareAllowance(owner, spender); allowance.Lt(shareAmount) {
			return nil, nil, fmt.Errorf("%w: allowance %s < %s", ErrInsufficientAllowance, allowance.Dec(), shareAmount.Dec())
		}
	}

	amount0, err := fixedpoint.MulDivFloor(shareAmount, cur.reserves[Side0], cur.totalShares)
	if err != nil {
		return nil, nil, err
	}
	amount1, err := fixedpoint.MulDivFloor(shareAmount, cur.reserves[Side1], cur.totalShares)
	if err != nil {
		return nil, nil, err
	}
	if amount0.Lt(orZero(amount0Min)) {
		return nil, nil, fmt.Errorf("%w: %s < %s", ErrInsufficientAmount0, amount0.Dec(), amount0Min.Dec())
	}
	if amount1.Lt(orZero(amount1Min)) {
		return nil, nil, fmt.Errorf("%w: %s < %s", ErrInsufficientAmount1, amount1.Dec(), amount1Min.Dec())
	}

	if err := p.push(ctx, cur, Side0, recipient, amount0); err != nil {
		return nil, nil, err
	}
	if err := p.push(ctx, cur, Side1, recipient, amount1); err != nil {
		return nil, nil, p.rollback(ctx, err, refund{side: Side0, from: recipient, to: p.address, amount: amount0})
	}

	p.sharesMu.Lock()
	p.debitLocked(owner, shareAmount)
	if spender != owner {
		p.spendAllowanceLocked(owner, spender, shareAmount)
	}
	p.sharesMu.Unlock()
	next := p.commit(cur,
		new(uint256.Int).Sub(cur.reserves[Side0], amount0),
		new(uint256.Int).Sub(cur.reserves[Side1], amount1),
		new(uint256.Int).Sub(cur.totalShares, shareAmount),
	)

	p.logger.Debug("liquidity removed",
		zap.String("owner", owner.Hex()),
		zap.String("shares", shareAmount.Dec()),
		zap.String("amount0", amount0.Dec()),
		zap.String("amount1", amount1.Dec()),
	)
	p.emit(ctx, model.EventBurn, model.BurnEventData{
		Sender:    spender.Hex(),
		Owner:     owner.Hex(),
		Recipient: recipient.Hex(),
		Amount0:   amount0.Dec(),
		Amount1:   amount1.Dec(),
		Shares:    shareAmount.Dec(),
	})
	p.emitSync(ctx, next)

	return amount0, amount1, nil
}

// pull moves amount of one side from holder into the pool.
func (p *Pool) pull(ctx context.Context, cur *state, side AssetSide, holder common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := cur.assets[side].TransferInto(ctx, holder, p.address, amount); err != nil {
		return fmt.Errorf("%w: pull %s %s from %s: %w", ErrTransferFailed, amount.Dec(), side, holder.Hex(), err)
	}
	return nil
}

// push pays amount of one side out of the pool.
func (p *Pool) push(ctx context.Context, cur *state, side AssetSide, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := cur.assets[side].TransferFrom(ctx, p.address, to, amount); err != nil {
		return fmt.Errorf("%w: push %s %s to %s: %w", ErrTransferFailed, amount.Dec(), side, to.Hex(), err)
	}
	return nil
}

// refund reverses a transfer that already succeeded. A zero from means the
// pool itself. A pulled refund also gives back the allowance the pull spent.
type refund struct {
	side   AssetSide
	from   common.Address
	to     common.Address
	amount *uint256.Int
	pulled bool
}

// rollback applies refunds in order and returns cause, joined with any
// refund failure.
func (p *Pool) rollback(ctx context.Context, cause error, refunds ...refund) error {
	cur := p.state.Load()
	errs := []error{cause}
	for _, r := range refunds {
		if r.amount == nil || r.amount.IsZero() {
			continue
		}
		from := r.from
		if from == (common.Address{}) {
			from = p.address
		}
		asset := cur.assets[r.side]
		var err error
		if r.pulled {
			err = asset.ReturnFrom(ctx, from, r.to, r.amount)
		} else {
			err = asset.TransferFrom(ctx, from, r.to, r.amount)
		}
		if err != nil {
			p.logger.Error("rollback transfer failed",
				zap.String("side", r.side.String()),
				zap.String("from", from.Hex()),
				zap.String("to", r.to.Hex()),
				zap.String("amount", r.amount.Dec()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("rollback %s: %w", r.side, err))
		}
	}
	return errors.Join(errs...)
}
