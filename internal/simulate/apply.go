package simulate

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ammpool/internal/model"
	"ammpool/internal/pool"
)

// Apply executes one operation. Amount pairs (amount0/amount1, min0/min1)
// follow the token_a/token_b order of the line, not the pool's sorted order.
func (r *Runner) Apply(ctx context.Context, op model.Operation) (model.OperationResult, error) {
	result := model.OperationResult{Op: op.Op}
	caller, err := parseAddress("caller", op.Caller)
	if err != nil && op.Op != model.OpCreatePool {
		return result, err
	}

	switch op.Op {
	case model.OpMint:
		return r.applyMint(op, caller, result)
	case model.OpApprove:
		return r.applyApprove(op, caller, result)
	case model.OpCreatePool:
		return r.applyCreatePool(ctx, op, result)
	case model.OpAddLiquidity:
		return r.applyAddLiquidity(ctx, op, caller, result)
	case model.OpRemoveLiquidity:
		return r.applyRemoveLiquidity(ctx, op, caller, result)
	case model.OpSwapExactIn:
		return r.applySwapExactIn(ctx, op, caller, result)
	case model.OpSwapExactOut:
		return r.applySwapExactOut(ctx, op, caller, result)
	case model.OpTransferShares:
		return r.applyTransferShares(ctx, op, caller, result)
	case model.OpApproveShares:
		return r.applyApproveShares(ctx, op, caller, result)
	default:
		return result, fmt.Errorf("%w: %q", ErrUnknownOperation, op.Op)
	}
}

func (r *Runner) applyMint(op model.Operation, caller common.Address, result model.OperationResult) (model.OperationResult, error) {
	token, err := parseAddress("token_a", op.TokenA)
	if err != nil {
		return result, err
	}
	to, err := parseAddressOr("to", op.To, caller)
	if err != nil {
		return result, err
	}
	amount, err := parseAmount("amount", op.Amount)
	if err != nil {
		return result, err
	}
	ledgerToken := r.book.Token(token)
	if err := ledgerToken.Mint(to, amount); err != nil {
		return result, err
	}
	result.Output = map[string]string{"balance": ledgerToken.BalanceOf(to).Dec()}
	return result, nil
}

func (r *Runner) applyApprove(op model.Operation, caller common.Address, result model.OperationResult) (model.OperationResult, error) {
	token, err := parseAddress("token_a", op.TokenA)
	if err != nil {
		return result, err
	}
	spender, err := parseAddress("spender", op.Spender)
	if err != nil {
		return result, err
	}
	amount, err := parseAmount("amount", op.Amount)
	if err != nil {
		return result, err
	}
	r.book.Token(token).Approve(caller, spender, amount)
	return result, nil
}

func (r *Runner) applyCreatePool(ctx context.Context, op model.Operation, result model.OperationResult) (model.OperationResult, error) {
	tokenA, tokenB, err := r.pair(op.TokenA, op.TokenB)
	if err != nil {
		return result, err
	}
	p, err := r.registry.CreatePool(ctx, r.book.Token(tokenA), r.book.Token(tokenB))
	if err != nil {
		return result, err
	}
	result.Pool = p.Address().Hex()
	return result, nil
}

func (r *Runner) applyAddLiquidity(ctx context.Context, op model.Operation, caller common.Address, result model.OperationResult) (model.OperationResult, error) {
	tokenA, tokenB, err := r.pair(op.TokenA, op.TokenB)
	if err != nil {
		return result, err
	}
	p, err := r.lookupPool(tokenA, tokenB)
	if err != nil {
		return result, err
	}
	result.Pool = p.Address().Hex()
	recipient, err := parseAddressOr("to", op.To, caller)
	if err != nil {
		return result, err
	}
	amounts, err := parseAmounts(
		field{"amount0", op.Amount0},
		field{"amount1", op.Amount1},
		field{"min0", op.Min0},
		field{"min1", op.Min1},
	)
	if err != nil {
		return result, err
	}

	flipped := isFlipped(p, tokenA)
	desired0, desired1 := ordered(flipped, amounts[0], amounts[1])
	min0, min1 := ordered(flipped, amounts[2], amounts[3])
	used0, used1, shares, err := p.AddLiquidity(ctx, caller, desired0, desired1, min0, min1, recipient)
	if err != nil {
		return result, err
	}
	usedA, usedB := ordered(flipped, used0, used1)
	result.Output = map[string]string{
		"amount_a": usedA.Dec(),
		"amount_b": usedB.Dec(),
		"shares":   shares.Dec(),
	}
	return result, nil
}

func (r *Runner) applyRemoveLiquidity(ctx context.Context, op model.Operation, caller common.Address, result model.OperationResult) (model.OperationResult, error) {
	tokenA, tokenB, err := r.pair(op.TokenA, op.TokenB)
	if err != nil {
		return result, err
	}
	p, err := r.lookupPool(tokenA, tokenB)
	if err != nil {
		return result, err
	}
	result.Pool = p.Address().Hex()
	recipient, err := parseAddressOr("to", op.To, caller)
	if err != nil {
		return result, err
	}
	owner, err := parseAddressOr("owner", op.Owner, caller)
	if err != nil {
		return result, err
	}
	amounts, err := parseAmounts(
		field{"shares", op.Shares},
		field{"min0", op.Min0},
		field{"min1", op.Min1},
	)
	if err != nil {
		return result, err
	}

	flipped := isFlipped(p, tokenA)
	min0, min1 := ordered(flipped, amounts[1], amounts[2])
	var out0, out1 *uint256.Int
	if owner == caller {
		out0, out1, err = p.RemoveLiquidity(ctx, caller, amounts[0], min0, min1, recipient)
	} else {
		out0, out1, err = p.RemoveLiquidityFrom(ctx, caller, owner, amounts[0], min0, min1, recipient)
	}
	if err != nil {
		return result, err
	}
	outA, outB := ordered(flipped, out0, out1)
	result.Output = map[string]string{
		"amount_a": outA.Dec(),
		"amount_b": outB.Dec(),
	}
	return result, nil
}

func (r *Runner) applySwapExactIn(ctx context.Context, op model.Operation, caller common.Address, result model.OperationResult) (model.OperationResult, error) {
	p, tokenIn, recipient, err := r.swapTarget(op, caller, &result)
	if err != nil {
		return result, err
	}
	amounts, err := parseAmounts(field{"amount", op.Amount}, field{"min_out", op.MinOut})
	if err != nil {
		return result, err
	}
	amountOut, err := p.SwapExactIn(ctx, caller, tokenIn, amounts[0], amounts[1], recipient)
	if err != nil {
		return result, err
	}
	result.Output = map[string]string{"amount_in": amounts[0].Dec(), "amount_out": amountOut.Dec()}
	return result, nil
}

func (r *Runner) applySwapExactOut(ctx context.Context, op model.Operation, caller common.Address, result model.OperationResult) (model.OperationResult, error) {
	p, tokenIn, recipient, err := r.swapTarget(op, caller, &result)
	if err != nil {
		return result, err
	}
	tokenOut, err := parseAddress("token_out", op.TokenOut)
	if err != nil {
		return result, err
	}
	amounts, err := parseAmounts(field{"amount", op.Amount}, field{"max_in", op.MaxIn})
	if err != nil {
		return result, err
	}
	amountIn, err := p.SwapExactOut(ctx, caller, tokenIn, amounts[1], tokenOut, amounts[0], recipient)
	if err != nil {
		return result, err
	}
	result.Output = map[string]string{"amount_in": amountIn.Dec(), "amount_out": amounts[0].Dec()}
	return result, nil
}

func (r *Runner) applyTransferShares(ctx context.Context, op model.Operation, caller common.Address, result model.OperationResult) (model.OperationResult, error) {
	tokenA, tokenB, err := r.pair(op.TokenA, op.TokenB)
	if err != nil {
		return result, err
	}
	p, err := r.lookupPool(tokenA, tokenB)
	if err != nil {
		return result, err
	}
	result.Pool = p.Address().Hex()
	to, err := parseAddress("to", op.To)
	if err != nil {
		return result, err
	}
	shares, err := parseAmount("shares", op.Shares)
	if err != nil {
		return result, err
	}
	if err := p.TransferShares(ctx, caller, to, shares); err != nil {
		return result, err
	}
	return result, nil
}

func (r *Runner) applyApproveShares(ctx context.Context, op model.Operation, caller common.Address, result model.OperationResult) (model.OperationResult, error) {
	tokenA, tokenB, err := r.pair(op.TokenA, op.TokenB)
	if err != nil {
		return result, err
	}
	p, err := r.lookupPool(tokenA, tokenB)
	if err != nil {
		return result, err
	}
	result.Pool = p.Address().Hex()
	spender, err := parseAddress("spender", op.Spender)
	if err != nil {
		return result, err
	}
	shares, err := parseAmount("shares", op.Shares)
	if err != nil {
		return result, err
	}
	if err := p.ApproveShares(ctx, caller, spender, shares); err != nil {
		return result, err
	}
	return result, nil
}

func (r *Runner) swapTarget(op model.Operation, caller common.Address, result *model.OperationResult) (*pool.Pool, common.Address, common.Address, error) {
	tokenIn, tokenOut, err := r.pair(op.TokenIn, op.TokenOut)
	if err != nil {
		return nil, common.Address{}, common.Address{}, err
	}
	p, err := r.lookupPool(tokenIn, tokenOut)
	if err != nil {
		return nil, common.Address{}, common.Address{}, err
	}
	result.Pool = p.Address().Hex()
	recipient, err := parseAddressOr("to", op.To, caller)
	if err != nil {
		return nil, common.Address{}, common.Address{}, err
	}
	return p, tokenIn, recipient, nil
}

func (r *Runner) pair(a, b string) (common.Address, common.Address, error) {
	tokenA, err := parseAddress("token", a)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	tokenB, err := parseAddress("token", b)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return tokenA, tokenB, nil
}

func (r *Runner) lookupPool(a, b common.Address) (*pool.Pool, error) {
	p, ok := r.registry.GetPool(a, b)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrPoolNotFound, a.Hex(), b.Hex())
	}
	return p, nil
}

type field struct {
	name  string
	value string
}

func parseAmounts(fields ...field) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(fields))
	for i, f := range fields {
		v, err := parseAmount(f.name, f.value)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// isFlipped reports whether tokenA is the pool's second asset.
func isFlipped(p *pool.Pool, tokenA common.Address) bool {
	token0, _, err := p.Assets()
	return err == nil && token0 != tokenA
}

func ordered(flipped bool, a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if flipped {
		return b, a
	}
	return a, b
}
