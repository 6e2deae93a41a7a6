package pool

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"ammpool/internal/model"
)

// Asset is a fungible token held in custody by a pool.
//
// The pool calls an asset while it holds its operation lock, passing a
// context marked with the pool. Any hook that calls back into the pool must
// forward that context: a nested call carrying it fails with ErrReentrant,
// while a nested call on a fresh context waits for the outer operation and
// only returns once its own context is done.
type Asset interface {
	Address() common.Address
	// TransferInto moves amount from `from` to `to`, consuming the allowance
	// `from` granted to `to`.
	TransferInto(ctx context.Context, from, to common.Address, amount *uint256.Int) error
	// TransferFrom moves amount held by `from` to `to` on the pool's authority.
	TransferFrom(ctx context.Context, from, to common.Address, amount *uint256.Int) error
	// ReturnFrom undoes a TransferInto, moving amount held by `from` back to
	// `to` and restoring the allowance `to` granted to `from`.
	ReturnFrom(ctx context.Context, from, to common.Address, amount *uint256.Int) error
}

// Config holds the swap fee as numerator/denominator of the input kept for
// pricing. 997/1000 charges 0.3%.
type Config struct {
	FeeNumerator   uint64
	FeeDenominator uint64
}

func DefaultConfig() Config {
	return Config{FeeNumerator: 997, FeeDenominator: 1000}
}

func (c Config) Validate() error {
	if c.FeeDenominator == 0 {
		return fmt.Errorf("fee denominator must be greater than zero")
	}
	if c.FeeNumerator == 0 || c.FeeNumerator > c.FeeDenominator {
		return fmt.Errorf("fee numerator must be in (0, %d]", c.FeeDenominator)
	}
	return nil
}

// state is the committed pool state. Published values are never mutated.
type state struct {
	initialized bool
	assets      [2]Asset
	reserves    [2]*uint256.Int
	totalShares *uint256.Int
}

func (s *state) isEmpty() bool {
	return s.totalShares.IsZero()
}

func (s *state) sideOf(asset common.Address) (AssetSide, error) {
	switch asset {
	case s.assets[Side0].Address():
		return Side0, nil
	case s.assets[Side1].Address():
		return Side1, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownAsset, asset.Hex())
	}
}

// Pool is a constant-product liquidity pool for one ordered asset pair.
//
// Operations are serialized by opLock, a one-slot semaphore held across asset
// transfers and event delivery. Waiting for it honors context cancellation. Committed reserves are published atomically so quotes and
// reserve reads never block. Share balances are guarded separately by
// sharesMu, held only while the maps are touched.
type Pool struct {
	address common.Address
	fee     Config
	feeNum  *uint256.Int
	feeDen  *uint256.Int
	sink    EventSink
	logger  *zap.Logger

	opLock chan struct{}
	state  atomic.Pointer[state]

	sharesMu   sync.RWMutex
	shares     map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

// New builds an uninitialized pool. A nil sink discards events.
func New(address common.Address, cfg Config, sink EventSink, logger *zap.Logger) (*Pool, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("%w: pool address", ErrZeroAddress)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		address:    address,
		fee:        cfg,
		feeNum:     uint256.NewInt(cfg.FeeNumerator),
		feeDen:     uint256.NewInt(cfg.FeeDenominator),
		sink:       sink,
		logger:     logger.With(zap.String("pool", address.Hex())),
		opLock:     make(chan struct{}, 1),
		shares:     make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
	p.state.Store(&state{
		reserves:    [2]*uint256.Int{new(uint256.Int), new(uint256.Int)},
		totalShares: new(uint256.Int),
	})
	return p, nil
}

// SortAddresses returns a and b in canonical byte order.
func SortAddresses(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		return b, a
	}
	return a, b
}

// Initialize binds the pool to its asset pair. Inputs are sorted into
// canonical order. It may be called once.
func (p *Pool) Initialize(assetA, assetB Asset) error {
	if assetA == nil || assetB == nil {
		return fmt.Errorf("%w: nil asset", ErrZeroAddress)
	}
	addrA, addrB := assetA.Address(), assetB.Address()
	if addrA == addrB {
		return fmt.Errorf("%w: %s", ErrIdenticalAssets, addrA.Hex())
	}
	if addrA == (common.Address{}) || addrB == (common.Address{}) {
		return ErrZeroAddress
	}
	if first, _ := SortAddresses(addrA, addrB); first != addrA {
		assetA, assetB = assetB, assetA
	}

	if err := p.lock(context.Background()); err != nil {
		return err
	}
	defer p.unlock()

	cur := p.state.Load()
	if cur.initialized {
		return ErrAlreadyInitialized
	}
	next := *cur
	next.initialized = true
	next.assets = [2]Asset{assetA, assetB}
	p.state.Store(&next)

	p.logger.Debug("pool initialized",
		zap.String("token0", assetA.Address().Hex()),
		zap.String("token1", assetB.Address().Hex()),
	)
	return nil
}

type guardKey struct{ pool *Pool }

// enter acquires the operation lock and returns a context marked with this
// pool. Transfers and event sinks receive the marked context, so a nested call
// back into the same pool fails instead of deadlocking. A caller that drops
// the marker blocks until its own context is done.
func (p *Pool) enter(ctx context.Context) (context.Context, *state, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Value(guardKey{p}) != nil {
		return nil, nil, nil, ErrReentrant
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}
	if err := p.lock(ctx); err != nil {
		return nil, nil, nil, err
	}
	cur := p.state.Load()
	if !cur.initialized {
		p.unlock()
		return nil, nil, nil, ErrNotInitialized
	}
	return context.WithValue(ctx, guardKey{p}, struct{}{}), cur, p.unlock, nil
}

func (p *Pool) lock(ctx context.Context) error {
	select {
	case p.opLock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) unlock() {
	<-p.opLock
}

func (p *Pool) commit(cur *state, reserve0, reserve1, totalShares *uint256.Int) *state {
	next := &state{
		initialized: true,
		assets:      cur.assets,
		reserves:    [2]*uint256.Int{reserve0, reserve1},
		totalShares: totalShares,
	}
	p.state.Store(next)
	return next
}

func (p *Pool) Address() common.Address {
	return p.address
}

func (p *Pool) Fee() Config {
	return p.fee
}

// Assets returns the canonically ordered asset pair.
func (p *Pool) Assets() (common.Address, common.Address, error) {
	cur := p.state.Load()
	if !cur.initialized {
		return common.Address{}, common.Address{}, ErrNotInitialized
	}
	return cur.assets[Side0].Address(), cur.assets[Side1].Address(), nil
}

// GetReserves returns copies of the committed reserves.
func (p *Pool) GetReserves() (*uint256.Int, *uint256.Int) {
	cur := p.state.Load()
	return cur.reserves[Side0].Clone(), cur.reserves[Side1].Clone()
}

func (p *Pool) TotalShares() *uint256.Int {
	return p.state.Load().totalShares.Clone()
}

// K returns reserve0 * reserve1. The product may exceed 256 bits.
func (p *Pool) K() *big.Int {
	cur := p.state.Load()
	return product(cur.reserves[Side0], cur.reserves[Side1])
}

func product(a, b *uint256.Int) *big.Int {
	return new(big.Int).Mul(a.ToBig(), b.ToBig())
}

func (p *Pool) ShareBalanceOf(holder common.Address) *uint256.Int {
	p.sharesMu.RLock()
	defer p.sharesMu.RUnlock()
	if bal, ok := p.shares[holder]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// Snapshot returns the committed state including every non-zero holder.
func (p *Pool) Snapshot() model.PoolSnapshot {
	cur := p.state.Load()
	snap := model.PoolSnapshot{
		Address:        p.address.Hex(),
		Reserve0:       cur.reserves[Side0].Dec(),
		Reserve1:       cur.reserves[Side1].Dec(),
		TotalShares:    cur.totalShares.Dec(),
		K:              product(cur.reserves[Side0], cur.reserves[Side1]).String(),
		FeeNumerator:   p.fee.FeeNumerator,
		FeeDenominator: p.fee.FeeDenominator,
	}
	if cur.initialized {
		snap.Token0 = cur.assets[Side0].Address().Hex()
		snap.Token1 = cur.assets[Side1].Address().Hex()
	}

	p.sharesMu.RLock()
	holders := make([]common.Address, 0, len(p.shares))
	for holder, bal := range p.shares {
		if !bal.IsZero() {
			holders = append(holders, holder)
		}
	}
	sort.Slice(holders, func(i, j int) bool {
		return bytes.Compare(holders[i].Bytes(), holders[j].Bytes()) < 0
	})
	if len(holders) > 0 {
		snap.Shares = make(map[string]string, len(holders))
		for _, holder := range holders {
			snap.Shares[holder.Hex()] = p.shares[holder].Dec()
		}
	}
	p.sharesMu.RUnlock()

	return snap
}

func (p *Pool) emit(ctx context.Context, name string, payload interface{}) {
	if p.sink == nil {
		return
	}
	event := model.PoolEvent{
		Pool:      p.address.Hex(),
		EventName: name,
		Decoded:   payload,
	}
	if err := p.sink.HandleEvent(ctx, event); err != nil {
		p.logger.Warn("event sink failed", zap.String("event", name), zap.Error(err))
	}
}

func (p *Pool) emitSync(ctx context.Context, st *state) {
	p.emit(ctx, model.EventSync, model.SyncEventData{
		Reserve0: st.reserves[Side0].Dec(),
		Reserve1: st.reserves[Side1].Dec(),
	})
}

func isZero(v *uint256.Int) bool {
	return v == nil || v.IsZero()
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
