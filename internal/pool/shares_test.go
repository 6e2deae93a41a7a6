package pool

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammpool/internal/model"
)

func TestTransferShares(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 100, 200)
	f.events.reset()

	require.NoError(t, f.pool.TransferShares(f.ctx, alice, bob, u(41)))
	assert.Equal(t, uint64(100), f.pool.ShareBalanceOf(alice).Uint64())
	assert.Equal(t, uint64(41), f.pool.ShareBalanceOf(bob).Uint64())
	assert.Equal(t, uint64(141), f.pool.TotalShares().Uint64())
	assert.Equal(t, []string{model.EventTransfer}, f.events.names())

	err := f.pool.TransferShares(f.ctx, bob, carol, u(42))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	err = f.pool.TransferShares(f.ctx, carol, bob, u(1))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	err = f.pool.TransferShares(f.ctx, bob, common.Address{}, u(1))
	assert.ErrorIs(t, err, ErrZeroAddress)
	err = f.pool.TransferShares(f.ctx, bob, carol, u(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// transferred shares redeem like minted ones
	out0, out1, err := f.pool.RemoveLiquidity(f.ctx, bob, u(41), nil, nil, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(29), out0.Uint64())
	assert.Equal(t, uint64(58), out1.Uint64())
}

func TestRemoveLiquidityFromConsumesAllowance(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 100, 200)

	_, _, err := f.pool.RemoveLiquidityFrom(f.ctx, bob, alice, u(10), nil, nil, bob)
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, f.pool.ApproveShares(f.ctx, alice, bob, u(30)))
	assert.Equal(t, uint64(30), f.pool.ShareAllowance(alice, bob).Uint64())

	out0, out1, err := f.pool.RemoveLiquidityFrom(f.ctx, bob, alice, u(20), nil, nil, carol)
	require.NoError(t, err)
	assert.Equal(t, uint64(14), out0.Uint64())
	assert.Equal(t, uint64(28), out1.Uint64())
	assert.Equal(t, uint64(14), f.tokenA.BalanceOf(carol).Uint64())
	assert.Equal(t, uint64(10), f.pool.ShareAllowance(alice, bob).Uint64())
	assert.Equal(t, uint64(121), f.pool.ShareBalanceOf(alice).Uint64())

	_, _, err = f.pool.RemoveLiquidityFrom(f.ctx, bob, alice, u(11), nil, nil, bob)
	require.ErrorIs(t, err, ErrInsufficientAllowance)
	assert.Equal(t, uint64(10), f.pool.ShareAllowance(alice, bob).Uint64())

	err = f.pool.ApproveShares(f.ctx, alice, common.Address{}, u(1))
	assert.ErrorIs(t, err, ErrZeroAddress)
}
