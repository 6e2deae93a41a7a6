package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrSupplyOverflow        = errors.New("total supply overflow")
)

// Hook runs before a transfer moves value. Returning an error aborts the
// transfer with balances untouched.
type Hook func(ctx context.Context, from, to common.Address, amount *uint256.Int) error

// Token is an in-memory fungible asset ledger.
type Token struct {
	address  common.Address
	symbol   string
	decimals uint8

	mu          sync.Mutex
	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
	hook        Hook
}

func NewToken(address common.Address, symbol string, decimals uint8) *Token {
	return &Token{
		address:     address,
		symbol:      symbol,
		decimals:    decimals,
		totalSupply: new(uint256.Int),
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Symbol() string           { return t.symbol }
func (t *Token) Decimals() uint8          { return t.decimals }

// SetHook installs h for subsequent transfers. A nil hook removes it.
func (t *Token) SetHook(h Hook) {
	t.mu.Lock()
	t.hook = h
	t.mu.Unlock()
}

func (t *Token) TotalSupply() *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalSupply.Clone()
}

func (t *Token) BalanceOf(holder common.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if bal, ok := t.balances[holder]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if allowed, ok := t.allowances[owner][spender]; ok {
		return allowed.Clone()
	}
	return new(uint256.Int)
}

// Mint creates amount out of thin air for to.
func (t *Token) Mint(to common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	supply, overflow := new(uint256.Int).AddOverflow(t.totalSupply, amount)
	if overflow {
		return fmt.Errorf("%w: mint %s", ErrSupplyOverflow, amount.Dec())
	}
	t.totalSupply = supply
	t.creditLocked(to, amount)
	return nil
}

// Approve sets the amount spender may pull from owner.
func (t *Token) Approve(owner, spender common.Address, amount *uint256.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	byOwner, ok := t.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = byOwner
	}
	byOwner[spender] = amount.Clone()
}

type allowanceMode int

const (
	allowanceNone allowanceMode = iota
	allowanceSpend
	allowanceRestore
)

// Transfer moves amount from holder to recipient.
func (t *Token) Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	return t.move(ctx, from, to, amount, allowanceNone)
}

// TransferInto moves amount from `from` to `to`, consuming the allowance
// `from` granted to `to`.
func (t *Token) TransferInto(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	return t.move(ctx, from, to, amount, allowanceSpend)
}

// TransferFrom moves amount held by `from` to `to` without an allowance.
func (t *Token) TransferFrom(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	return t.move(ctx, from, to, amount, allowanceNone)
}

// ReturnFrom undoes a TransferInto: amount held by `from` goes back to `to`
// and the allowance `to` granted `from` grows by amount, saturating at the
// maximum.
func (t *Token) ReturnFrom(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	return t.move(ctx, from, to, amount, allowanceRestore)
}

func (t *Token) move(ctx context.Context, from, to common.Address, amount *uint256.Int, mode allowanceMode) error {
	if amount == nil {
		amount = new(uint256.Int)
	}

	t.mu.Lock()
	hook := t.hook
	t.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, from, to, amount); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	balance, ok := t.balances[from]
	if !ok {
		balance = new(uint256.Int)
	}
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s %s, want %s", ErrInsufficientBalance, from.Hex(), balance.Dec(), t.label(), amount.Dec())
	}
	switch mode {
	case allowanceSpend:
		allowed, ok := t.allowances[from][to]
		if !ok || allowed.Lt(amount) {
			return fmt.Errorf("%w: %s allows %s %s, want %s", ErrInsufficientAllowance, from.Hex(), to.Hex(), t.label(), amount.Dec())
		}
		t.allowances[from][to] = new(uint256.Int).Sub(allowed, amount)
	case allowanceRestore:
		t.restoreAllowanceLocked(to, from, amount)
	}

	t.balances[from] = new(uint256.Int).Sub(balance, amount)
	t.creditLocked(to, amount)
	return nil
}

func (t *Token) restoreAllowanceLocked(owner, spender common.Address, amount *uint256.Int) {
	byOwner, ok := t.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = byOwner
	}
	allowed, ok := byOwner[spender]
	if !ok {
		allowed = new(uint256.Int)
	}
	next, overflow := new(uint256.Int).AddOverflow(allowed, amount)
	if overflow {
		next.SetAllOne()
	}
	byOwner[spender] = next
}

func (t *Token) creditLocked(holder common.Address, amount *uint256.Int) {
	bal, ok := t.balances[holder]
	if !ok {
		bal = new(uint256.Int)
	}
	t.balances[holder] = new(uint256.Int).Add(bal, amount)
}

func (t *Token) label() string {
	if t.symbol != "" {
		return t.symbol
	}
	return t.address.Hex()
}
