package pool

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"ammpool/internal/ledger"
	"ammpool/internal/model"
)

var (
	poolAddr = common.HexToAddress("0x9000000000000000000000000000000000000009")
	tokA     = common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokB     = common.HexToAddress("0x2000000000000000000000000000000000000002")
	tokC     = common.HexToAddress("0x3000000000000000000000000000000000000003")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000000c0")
)

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

type recorder struct {
	mu     sync.Mutex
	events []model.PoolEvent
}

func (r *recorder) HandleEvent(_ context.Context, event model.PoolEvent) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventName)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type fixture struct {
	ctx    context.Context
	tokenA *ledger.Token
	tokenB *ledger.Token
	pool   *Pool
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, DefaultConfig())
}

func newFixtureWithConfig(t *testing.T, cfg Config) *fixture {
	t.Helper()
	events := &recorder{}
	p, err := New(poolAddr, cfg, events, nil)
	require.NoError(t, err)

	f := &fixture{
		ctx:    context.Background(),
		tokenA: ledger.NewToken(tokA, "AAA", 18),
		tokenB: ledger.NewToken(tokB, "BBB", 18),
		pool:   p,
		events: events,
	}
	require.NoError(t, p.Initialize(f.tokenA, f.tokenB))
	return f
}

// fund mints balances to holder and approves the pool for all of it.
func (f *fixture) fund(t *testing.T, holder common.Address, a, b uint64) {
	t.Helper()
	require.NoError(t, f.tokenA.Mint(holder, u(a)))
	require.NoError(t, f.tokenB.Mint(holder, u(b)))
	max := new(uint256.Int).SetAllOne()
	f.tokenA.Approve(holder, poolAddr, max)
	f.tokenB.Approve(holder, poolAddr, max)
}

func (f *fixture) deposit(t *testing.T, holder common.Address, a, b uint64) *uint256.Int {
	t.Helper()
	f.fund(t, holder, a, b)
	_, _, shares, err := f.pool.AddLiquidity(f.ctx, holder, u(a), u(b), nil, nil, holder)
	require.NoError(t, err)
	return shares
}

func (f *fixture) requireReserves(t *testing.T, r0, r1 uint64) {
	t.Helper()
	got0, got1 := f.pool.GetReserves()
	require.Equal(t, r0, got0.Uint64(), "reserve0")
	require.Equal(t, r1, got1.Uint64(), "reserve1")
}

// requireCustody checks reserves against the pool's ledger balances.
func (f *fixture) requireCustody(t *testing.T) {
	t.Helper()
	r0, r1 := f.pool.GetReserves()
	require.True(t, r0.Eq(f.tokenA.BalanceOf(poolAddr)), "reserve0 %s, custody %s", r0.Dec(), f.tokenA.BalanceOf(poolAddr).Dec())
	require.True(t, r1.Eq(f.tokenB.BalanceOf(poolAddr)), "reserve1 %s, custody %s", r1.Dec(), f.tokenB.BalanceOf(poolAddr).Dec())
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(poolAddr, Config{FeeNumerator: 997, FeeDenominator: 0}, nil, nil)
	assert.Error(t, err)
	_, err = New(poolAddr, Config{FeeNumerator: 1001, FeeDenominator: 1000}, nil, nil)
	assert.Error(t, err)
	_, err = New(poolAddr, Config{FeeNumerator: 0, FeeDenominator: 1000}, nil, nil)
	assert.Error(t, err)
	_, err = New(common.Address{}, DefaultConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrZeroAddress)
}

func TestInitialize(t *testing.T) {
	a := ledger.NewToken(tokA, "AAA", 18)
	b := ledger.NewToken(tokB, "BBB", 18)

	p, err := New(poolAddr, DefaultConfig(), nil, nil)
	require.NoError(t, err)

	_, _, err = p.Assets()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = p.SwapExactIn(context.Background(), alice, tokA, u(1), nil, alice)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = p.GetAmountOut(u(1), tokA)
	assert.ErrorIs(t, err, ErrNotInitialized)

	assert.ErrorIs(t, p.Initialize(a, ledger.NewToken(tokA, "", 18)), ErrIdenticalAssets)
	assert.ErrorIs(t, p.Initialize(a, ledger.NewToken(common.Address{}, "", 18)), ErrZeroAddress)

	// reversed input is sorted
	require.NoError(t, p.Initialize(b, a))
	asset0, asset1, err := p.Assets()
	require.NoError(t, err)
	assert.Equal(t, tokA, asset0)
	assert.Equal(t, tokB, asset1)

	assert.ErrorIs(t, p.Initialize(a, b), ErrAlreadyInitialized)
}

func TestEventsOrder(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1000, 2000)
	assert.Equal(t, []string{model.EventMint, model.EventSync}, f.events.names())
	f.fund(t, alice, 10, 0)

	f.events.reset()
	_, err := f.pool.SwapExactIn(f.ctx, alice, tokA, u(10), nil, bob)
	require.NoError(t, err)
	assert.Equal(t, []string{model.EventSwap, model.EventSync}, f.events.names())

	syncData := f.events.events[1].Decoded.(model.SyncEventData)
	assert.Equal(t, "1010", syncData.Reserve0)
	assert.Equal(t, "1981", syncData.Reserve1)

	swap := f.events.events[0].Decoded.(model.SwapEventData)
	assert.Equal(t, "10", swap.Amount0In)
	assert.Equal(t, "19", swap.Amount1Out)
	assert.Equal(t, "0", swap.Amount1In)
	assert.Equal(t, poolAddr.Hex(), f.events.events[0].Pool)

	f.events.reset()
	_, _, err = f.pool.RemoveLiquidity(f.ctx, alice, u(100), nil, nil, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{model.EventBurn, model.EventSync}, f.events.names())
}

func TestFailedOperationEmitsNothing(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1000, 2000)
	f.events.reset()

	_, err := f.pool.SwapExactIn(f.ctx, alice, tokA, u(10), u(20), bob)
	require.ErrorIs(t, err, ErrInsufficientOutput)
	assert.Empty(t, f.events.names())
}

func TestReentrantCallsFail(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1000, 2000)
	f.fund(t, alice, 10, 0)
	f.fund(t, bob, 100, 100)

	var nested error
	var seenReserve0 uint64
	f.tokenB.SetHook(func(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
		if from != poolAddr {
			return nil
		}
		r0, _ := f.pool.GetReserves()
		seenReserve0 = r0.Uint64()
		_, nested = f.pool.SwapExactIn(ctx, bob, tokA, u(5), nil, bob)
		return nil
	})

	out, err := f.pool.SwapExactIn(f.ctx, alice, tokA, u(10), nil, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(19), out.Uint64())
	assert.ErrorIs(t, nested, ErrReentrant)
	// reads from inside the operation see the last committed state
	assert.Equal(t, uint64(1000), seenReserve0)
	f.requireReserves(t, 1010, 1981)
	f.requireCustody(t)
}

func TestNestedCallWithFreshContextTimesOut(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1000, 2000)
	f.fund(t, alice, 10, 0)
	f.fund(t, bob, 100, 100)

	var nested error
	f.tokenB.SetHook(func(_ context.Context, from, _ common.Address, _ *uint256.Int) error {
		if from != poolAddr {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, nested = f.pool.SwapExactIn(ctx, bob, tokA, u(5), nil, bob)
		return nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.pool.SwapExactIn(f.ctx, alice, tokA, u(10), nil, alice)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("outer swap did not return")
	}
	assert.ErrorIs(t, nested, context.DeadlineExceeded)
	f.requireReserves(t, 1010, 1981)
	f.requireCustody(t)
}

func TestReentrantSinkFails(t *testing.T) {
	var p *Pool
	var nested []error
	sink := EventSinkFunc(func(ctx context.Context, event model.PoolEvent) error {
		_, _, _, err := p.AddLiquidity(ctx, alice, u(1), u(1), nil, nil, alice)
		nested = append(nested, err)
		return errors.New("sink failure is only logged")
	})

	var err error
	p, err = New(poolAddr, DefaultConfig(), sink, nil)
	require.NoError(t, err)
	tokenA := ledger.NewToken(tokA, "", 18)
	tokenB := ledger.NewToken(tokB, "", 18)
	require.NoError(t, p.Initialize(tokenA, tokenB))
	require.NoError(t, tokenA.Mint(alice, u(100)))
	require.NoError(t, tokenB.Mint(alice, u(100)))
	tokenA.Approve(alice, poolAddr, u(100))
	tokenB.Approve(alice, poolAddr, u(100))

	_, _, shares, err := p.AddLiquidity(context.Background(), alice, u(50), u(50), nil, nil, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), shares.Uint64())
	require.Len(t, nested, 2)
	for _, err := range nested {
		assert.ErrorIs(t, err, ErrReentrant)
	}
}

func TestSwapRollsBackOnFailedPayout(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1000, 2000)
	f.fund(t, bob, 50, 0)

	blocked := errors.New("recipient blocked")
	f.tokenB.SetHook(func(_ context.Context, from, to common.Address, _ *uint256.Int) error {
		if to == carol {
			return blocked
		}
		return nil
	})
	f.events.reset()

	_, err := f.pool.SwapExactIn(f.ctx, bob, tokA, u(10), nil, carol)
	require.ErrorIs(t, err, ErrTransferFailed)
	require.ErrorIs(t, err, blocked)

	f.requireReserves(t, 1000, 2000)
	f.requireCustody(t)
	assert.Equal(t, uint64(50), f.tokenA.BalanceOf(bob).Uint64())
	assert.True(t, f.tokenA.Allowance(bob, poolAddr).Eq(new(uint256.Int).SetAllOne()))
	assert.Empty(t, f.events.names())
}

func TestRemoveRollsBackOnFailedPayout(t *testing.T) {
	f := newFixture(t)
	shares := f.deposit(t, alice, 100, 200)

	blocked := errors.New("recipient blocked")
	f.tokenB.SetHook(func(_ context.Context, from, to common.Address, _ *uint256.Int) error {
		if from == poolAddr {
			return blocked
		}
		return nil
	})

	_, _, err := f.pool.RemoveLiquidity(f.ctx, alice, u(70), nil, nil, carol)
	require.ErrorIs(t, err, blocked)

	assert.True(t, shares.Eq(f.pool.ShareBalanceOf(alice)))
	assert.True(t, shares.Eq(f.pool.TotalShares()))
	assert.True(t, f.tokenA.BalanceOf(carol).IsZero())
	f.requireReserves(t, 100, 200)
	f.requireCustody(t)
}

func TestAddRollsBackOnFailedPull(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1000, 2000)

	// bob approves only token0
	require.NoError(t, f.tokenA.Mint(bob, u(100)))
	require.NoError(t, f.tokenB.Mint(bob, u(200)))
	f.tokenA.Approve(bob, poolAddr, u(100))

	_, _, _, err := f.pool.AddLiquidity(f.ctx, bob, u(100), u(200), nil, nil, bob)
	require.ErrorIs(t, err, ErrTransferFailed)
	require.ErrorIs(t, err, ledger.ErrInsufficientAllowance)

	assert.Equal(t, uint64(100), f.tokenA.BalanceOf(bob).Uint64())
	assert.Equal(t, uint64(100), f.tokenA.Allowance(bob, poolAddr).Uint64())
	assert.True(t, f.pool.ShareBalanceOf(bob).IsZero())
	f.requireReserves(t, 1000, 2000)
	f.requireCustody(t)
}

func TestConcurrentSwapsKeepCustodyAndK(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 1_000_000, 2_000_000)

	traders := []common.Address{bob, carol, common.HexToAddress("0xd0"), common.HexToAddress("0xe0")}
	for _, trader := range traders {
		f.fund(t, trader, 100_000, 100_000)
	}

	kBefore := f.pool.K()
	var g errgroup.Group
	for i, trader := range traders {
		trader := trader
		tokenIn := tokA
		if i%2 == 1 {
			tokenIn = tokB
		}
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				if _, err := f.pool.SwapExactIn(f.ctx, trader, tokenIn, u(uint64(100+j)), nil, trader); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	f.requireCustody(t)
	assert.Equal(t, 1, f.pool.K().Cmp(kBefore))
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, alice, 100, 200)
	require.NoError(t, f.pool.TransferShares(f.ctx, alice, bob, u(41)))

	snap := f.pool.Snapshot()
	assert.Equal(t, poolAddr.Hex(), snap.Address)
	assert.Equal(t, tokA.Hex(), snap.Token0)
	assert.Equal(t, tokB.Hex(), snap.Token1)
	assert.Equal(t, "100", snap.Reserve0)
	assert.Equal(t, "200", snap.Reserve1)
	assert.Equal(t, "141", snap.TotalShares)
	assert.Equal(t, "20000", snap.K)
	assert.Equal(t, uint64(997), snap.FeeNumerator)
	assert.Equal(t, map[string]string{alice.Hex(): "100", bob.Hex(): "41"}, snap.Shares)
	assert.Equal(t, 0, f.pool.K().Cmp(big.NewInt(20000)))
}
