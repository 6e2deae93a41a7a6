package pool

import (
	"errors"

	"ammpool/internal/fixedpoint"
)

var (
	ErrInvalidAmount                = errors.New("invalid amount")
	ErrInsufficientInitialLiquidity = errors.New("insufficient initial liquidity")
	ErrInsufficientAmount0          = errors.New("insufficient amount0")
	ErrInsufficientAmount1          = errors.New("insufficient amount1")
	ErrInsufficientOutput           = errors.New("insufficient output amount")
	ErrExcessiveInput               = errors.New("excessive input amount")
	ErrInsufficientLiquidity        = errors.New("insufficient liquidity")
	ErrInsufficientBalance          = errors.New("insufficient share balance")
	ErrInsufficientAllowance        = errors.New("insufficient share allowance")
	ErrAlreadyInitialized           = errors.New("pool already initialized")
	ErrNotInitialized               = errors.New("pool not initialized")
	ErrIdenticalAssets              = errors.New("identical assets")
	ErrPoolExists                   = errors.New("pool already exists")
	ErrZeroAddress                  = errors.New("zero address")
	ErrUnknownAsset                 = errors.New("asset not in pool")
	ErrReentrant                    = errors.New("reentrant call")
	ErrInvariantViolated            = errors.New("constant product decreased")
	ErrTransferFailed               = errors.New("asset transfer failed")

	// ErrOverflow aliases the fixedpoint sentinel so either can be matched.
	ErrOverflow = fixedpoint.ErrOverflow
)
