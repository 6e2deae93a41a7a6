package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"ammpool/internal/model"
)

// ShareAllowance returns how many of owner's shares spender may burn.
func (p *Pool) ShareAllowance(owner, spender common.Address) *uint256.Int {
	p.sharesMu.RLock()
	defer p.sharesMu.RUnlock()
	if allowed, ok := p.allowances[owner][spender]; ok {
		return allowed.Clone()
	}
	return new(uint256.Int)
}

// TransferShares moves pool shares between holders. Total supply is unchanged.
func (p *Pool) TransferShares(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	ctx, _, release, err := p.enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if to == (common.Address{}) {
		return fmt.Errorf("%w: recipient", ErrZeroAddress)
	}
	if isZero(amount) {
		return fmt.Errorf("%w: share amount must be positive", ErrInvalidAmount)
	}

	p.sharesMu.Lock()
	balance := p.shares[from]
	if balance == nil || balance.Lt(amount) {
		p.sharesMu.Unlock()
		return fmt.Errorf("%w: %s holds %s, want %s", ErrInsufficientBalance, from.Hex(), orZero(balance).Dec(), amount.Dec())
	}
	p.debitLocked(from, amount)
	p.creditLocked(to, amount)
	p.sharesMu.Unlock()

	p.emit(ctx, model.EventTransfer, model.TransferEventData{
		From:   from.Hex(),
		To:     to.Hex(),
		Amount: amount.Dec(),
	})
	return nil
}

// ApproveShares sets the allowance spender may burn from owner.
func (p *Pool) ApproveShares(ctx context.Context, owner, spender common.Address, amount *uint256.Int) error {
	ctx, _, release, err := p.enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	if spender == (common.Address{}) {
		return fmt.Errorf("%w: spender", ErrZeroAddress)
	}
	amount = orZero(amount).Clone()

	p.sharesMu.Lock()
	byOwner, ok := p.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]*uint256.Int)
		p.allowances[owner] = byOwner
	}
	byOwner[spender] = amount
	p.sharesMu.Unlock()

	p.emit(ctx, model.EventApproval, model.ApprovalEventData{
		Owner:   owner.Hex(),
		Spender: spender.Hex(),
		Amount:  amount.Dec(),
	})
	return nil
}

// creditLocked and the helpers below require sharesMu held for writing.
func (p *Pool) creditLocked(holder common.Address, amount *uint256.Int) {
	bal, ok := p.shares[holder]
	if !ok {
		bal = new(uint256.Int)
	}
	p.shares[holder] = new(uint256.Int).Add(bal, amount)
}

func (p *Pool) debitLocked(holder common.Address, amount *uint256.Int) {
	next := new(uint256.Int).Sub(p.shares[holder], amount)
	if next.IsZero() {
		delete(p.shares, holder)
		return
	}
	p.shares[holder] = next
}

func (p *Pool) spendAllowanceLocked(owner, spender common.Address, amount *uint256.Int) {
	byOwner := p.allowances[owner]
	if byOwner == nil {
		return
	}
	byOwner[spender] = new(uint256.Int).Sub(orZero(byOwner[spender]), amount)
}
