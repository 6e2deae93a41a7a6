package quote

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammpool/internal/pool"
)

func TestComputeExactIn(t *testing.T) {
	q, err := Compute(Request{
		ReserveIn:   uint256.NewInt(1000),
		ReserveOut:  uint256.NewInt(2000),
		Amount:      uint256.NewInt(10),
		Fee:         pool.DefaultConfig(),
		DecimalsIn:  1,
		DecimalsOut: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, "10", q.AmountIn)
	assert.Equal(t, "19", q.AmountOut)
	assert.Equal(t, "1.0", q.AmountInHuman)
	assert.Empty(t, q.AmountOutHuman)
	assert.Equal(t, "0.019306930693069307", q.PriceImpact)
	assert.False(t, q.ExactOut)
	assert.Equal(t, uint64(997), q.FeeNumerator)
}

func TestComputeExactOut(t *testing.T) {
	q, err := Compute(Request{
		ReserveIn:   uint256.NewInt(1000),
		ReserveOut:  uint256.NewInt(2000),
		Amount:      uint256.NewInt(19),
		ExactOut:    true,
		Fee:         pool.DefaultConfig(),
		DecimalsIn:  -1,
		DecimalsOut: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "10", q.AmountIn)
	assert.Equal(t, "19", q.AmountOut)
	assert.Equal(t, "19", q.AmountOutHuman)
	assert.True(t, q.ExactOut)
}

func TestComputeErrors(t *testing.T) {
	_, err := Compute(Request{ReserveIn: uint256.NewInt(1000), ReserveOut: uint256.NewInt(2000), Amount: uint256.NewInt(2000), ExactOut: true, Fee: pool.DefaultConfig()})
	require.ErrorIs(t, err, pool.ErrInsufficientLiquidity)

	_, err = Compute(Request{ReserveIn: uint256.NewInt(1), ReserveOut: uint256.NewInt(1), Amount: uint256.NewInt(1), Fee: pool.Config{FeeNumerator: 2, FeeDenominator: 1}})
	require.Error(t, err)

	_, err = Compute(Request{Fee: pool.DefaultConfig()})
	require.Error(t, err)
}

func TestFormatTokenAmount(t *testing.T) {
	assert.Equal(t, "0", formatTokenAmount(nil, 18))
	assert.Equal(t, "1.500000", formatTokenAmount(big.NewInt(1_500_000), 6))
	assert.Equal(t, "-0.05", formatTokenAmount(big.NewInt(-5), 2))
	assert.Equal(t, "42", formatTokenAmount(big.NewInt(42), 0))
}

func TestParseDecimals(t *testing.T) {
	v, err := ParseDecimals(-1)
	require.NoError(t, err)
	assert.Equal(t, -1, v)
	_, err = ParseDecimals(78)
	require.Error(t, err)
}
