package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testPair = common.HexToAddress("0xA478c2975Ab1Ea89e8196811F51A7B7Ade33eB11")
	testDAI  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	testMKR  = common.HexToAddress("0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")
)

type fakeCaller struct {
	mu        sync.Mutex
	responses map[string][]byte
	calls     atomic.Int64
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[string][]byte)}
}

func (f *fakeCaller) set(t *testing.T, to common.Address, parsed abi.ABI, method string, values ...interface{}) {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	f.mu.Lock()
	f.responses[key(to, parsed.Methods[method].ID)] = out
	f.mu.Unlock()
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	resp, ok := f.responses[key(*msg.To, msg.Data[:4])]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return resp, nil
}

func key(to common.Address, selector []byte) string {
	return to.Hex() + common.Bytes2Hex(selector)
}

func pairFixture(t *testing.T) *fakeCaller {
	t.Helper()
	pairABI, err := PairABI()
	require.NoError(t, err)
	erc20, err := ERC20ABI()
	require.NoError(t, err)
	bytes32ABI, err := erc20ABIBytes32.get()
	require.NoError(t, err)

	f := newFakeCaller()
	f.set(t, testPair, pairABI, "token0", testDAI)
	f.set(t, testPair, pairABI, "token1", testMKR)
	f.set(t, testPair, pairABI, "getReserves", big.NewInt(1_000_000), big.NewInt(2_000_000), uint32(1700000000))

	f.set(t, testDAI, erc20, "decimals", uint8(18))
	f.set(t, testDAI, erc20, "symbol", "DAI")
	f.set(t, testDAI, erc20, "name", "Dai Stablecoin")

	var symbol, name [32]byte
	copy(symbol[:], "MKR")
	copy(name[:], "Maker")
	f.set(t, testMKR, erc20, "decimals", uint8(18))
	f.set(t, testMKR, bytes32ABI, "symbol", symbol)
	f.set(t, testMKR, bytes32ABI, "name", name)
	return f
}

func TestReadPair(t *testing.T) {
	f := pairFixture(t)
	c, err := NewClientWithCaller(f, Options{})
	require.NoError(t, err)

	state, err := c.ReadPair(context.Background(), testPair, nil)
	require.NoError(t, err)

	assert.Equal(t, testPair.Hex(), state.Address)
	assert.Equal(t, "1000000", state.Reserve0)
	assert.Equal(t, "2000000", state.Reserve1)
	assert.Equal(t, uint32(1700000000), state.BlockTimestampLast)
	assert.Equal(t, "DAI", state.Token0.Symbol)
	assert.Equal(t, "Dai Stablecoin", state.Token0.Name)
	assert.Equal(t, uint8(18), state.Token0.Decimals)
	assert.Equal(t, "MKR", state.Token1.Symbol)
	assert.Equal(t, "Maker", state.Token1.Name)
}

func TestTokenMetaCached(t *testing.T) {
	f := pairFixture(t)
	c, err := NewClientWithCaller(f, Options{CacheSize: 8})
	require.NoError(t, err)

	_, err = c.TokenMeta(context.Background(), testDAI, nil)
	require.NoError(t, err)
	calls := f.calls.Load()

	meta, err := c.TokenMeta(context.Background(), testDAI, nil)
	require.NoError(t, err)
	assert.Equal(t, "DAI", meta.Symbol)
	assert.Equal(t, calls, f.calls.Load())
}

func TestTokenMetaMissingDecimals(t *testing.T) {
	c, err := NewClientWithCaller(newFakeCaller(), Options{})
	require.NoError(t, err)

	_, err = c.TokenMeta(context.Background(), testDAI, nil)
	require.Error(t, err)
}

func TestReadPairs(t *testing.T) {
	f := pairFixture(t)
	c, err := NewClientWithCaller(f, Options{})
	require.NoError(t, err)

	states, err := c.ReadPairs(context.Background(), []common.Address{testPair, testPair}, 2, nil)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, states[0], states[1])

	_, err = c.ReadPairs(context.Background(), []common.Address{testPair, testDAI}, 2, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), testDAI.Hex())
}

func TestNewClientWithCallerRejectsNil(t *testing.T) {
	_, err := NewClientWithCaller(nil, Options{})
	require.Error(t, err)
}
