package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"ammpool/internal/model"
	"ammpool/internal/pool"
)

var (
	// DefaultFactory and DefaultInitCodeHash are the Uniswap V2 mainnet
	// values, so a simulated pool shares its address with the live pair.
	DefaultFactory      = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	DefaultInitCodeHash = common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f")
)

// Config controls pool creation.
type Config struct {
	Factory      common.Address
	InitCodeHash common.Hash
	Pool         pool.Config
}

func DefaultConfig() Config {
	return Config{
		Factory:      DefaultFactory,
		InitCodeHash: DefaultInitCodeHash,
		Pool:         pool.DefaultConfig(),
	}
}

type pairKey struct {
	token0 common.Address
	token1 common.Address
}

func keyFor(a, b common.Address) pairKey {
	token0, token1 := pool.SortAddresses(a, b)
	return pairKey{token0: token0, token1: token1}
}

// Registry creates and tracks exactly one pool per unordered asset pair.
type Registry struct {
	cfg    Config
	sink   pool.EventSink
	logger *zap.Logger

	mu    sync.RWMutex
	pools map[pairKey]*pool.Pool
	all   []*pool.Pool
}

// New builds an empty registry. sink receives PoolCreated and is shared with
// every pool the registry creates.
func New(cfg Config, sink pool.EventSink, logger *zap.Logger) (*Registry, error) {
	if err := cfg.Pool.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		pools:  make(map[pairKey]*pool.Pool),
	}, nil
}

// PoolAddress derives the pool address for a pair the way CREATE2 does:
// keccak256(0xff ++ factory ++ keccak256(token0 ++ token1) ++ initCodeHash)[12:].
func PoolAddress(factory, tokenA, tokenB common.Address, initCodeHash common.Hash) common.Address {
	token0, token1 := pool.SortAddresses(tokenA, tokenB)
	salt := crypto.Keccak256(token0.Bytes(), token1.Bytes())
	return common.BytesToAddress(crypto.Keccak256([]byte{0xff}, factory.Bytes(), salt, initCodeHash.Bytes()))
}

// CreatePool creates and initializes the pool for the pair. The sink sees
// PoolCreated before any event of the new pool.
func (r *Registry) CreatePool(ctx context.Context, assetA, assetB pool.Asset) (*pool.Pool, error) {
	if assetA == nil || assetB == nil {
		return nil, fmt.Errorf("%w: nil asset", pool.ErrZeroAddress)
	}
	addrA, addrB := assetA.Address(), assetB.Address()
	if addrA == addrB {
		return nil, fmt.Errorf("%w: %s", pool.ErrIdenticalAssets, addrA.Hex())
	}
	if addrA == (common.Address{}) || addrB == (common.Address{}) {
		return nil, pool.ErrZeroAddress
	}
	key := keyFor(addrA, addrB)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.pools[key]; ok {
		return nil, fmt.Errorf("%w: %s", pool.ErrPoolExists, existing.Address().Hex())
	}

	address := PoolAddress(r.cfg.Factory, key.token0, key.token1, r.cfg.InitCodeHash)
	p, err := pool.New(address, r.cfg.Pool, r.sink, r.logger)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}
	if err := p.Initialize(assetA, assetB); err != nil {
		return nil, fmt.Errorf("initialize pool: %w", err)
	}

	r.pools[key] = p
	r.all = append(r.all, p)

	r.logger.Info("pool created",
		zap.String("pool", address.Hex()),
		zap.String("token0", key.token0.Hex()),
		zap.String("token1", key.token1.Hex()),
		zap.Int("index", len(r.all)),
	)
	if r.sink != nil {
		event := model.PoolEvent{
			Pool:      address.Hex(),
			EventName: model.EventPoolCreated,
			Decoded: model.PoolCreatedEventData{
				Token0: key.token0.Hex(),
				Token1: key.token1.Hex(),
				Pool:   address.Hex(),
				Index:  len(r.all),
			},
		}
		if err := r.sink.HandleEvent(ctx, event); err != nil {
			r.logger.Warn("event sink failed", zap.String("event", model.EventPoolCreated), zap.Error(err))
		}
	}

	return p, nil
}

// GetPool looks up the pool for a pair in either order.
func (r *Registry) GetPool(a, b common.Address) (*pool.Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[keyFor(a, b)]
	return p, ok
}

// AllPools returns pools in creation order.
func (r *Registry) AllPools() []*pool.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*pool.Pool, len(r.all))
	copy(out, r.all)
	return out
}

func (r *Registry) PoolCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// Snapshots returns the state of every pool in creation order.
func (r *Registry) Snapshots() []model.PoolSnapshot {
	pools := r.AllPools()
	out := make([]model.PoolSnapshot, 0, len(pools))
	for _, p := range pools {
		out = append(out, p.Snapshot())
	}
	return out
}

// PoolByAddress finds a pool by its derived address.
func (r *Registry) PoolByAddress(address common.Address) (*pool.Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.all {
		if p.Address() == address {
			return p, true
		}
	}
	return nil, false
}
