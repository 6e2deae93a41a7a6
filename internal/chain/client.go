package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"
)

// ContractCaller is the subset of ethclient used for view calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Options tunes RPC pacing and metadata caching.
type Options struct {
	RequestsPerSecond float64
	Burst             int
	CacheSize         int
}

func DefaultOptions() Options {
	return Options{RequestsPerSecond: 20, Burst: 5, CacheSize: 1024}
}

// Client wraps go-ethereum RPC with a rate limit and a token metadata cache.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	caller    ContractCaller

	limiter *rate.Limiter
	tokens  *lru.Cache
}

// NewClient dials the RPC URL.
func NewClient(ctx context.Context, rpcURL string, opts Options) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	ethClient := ethclient.NewClient(rpcClient)

	c, err := newClient(ethClient, opts)
	if err != nil {
		rpcClient.Close()
		return nil, err
	}
	c.rpcClient = rpcClient
	c.ethClient = ethClient
	return c, nil
}

// NewClientWithCaller builds a client over an existing caller.
func NewClientWithCaller(caller ContractCaller, opts Options) (*Client, error) {
	return newClient(caller, opts)
}

func newClient(caller ContractCaller, opts Options) (*Client, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultOptions().CacheSize
	}
	tokens, err := lru.New(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("token cache: %w", err)
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		caller:  caller,
		limiter: rate.NewLimiter(limit, burst),
		tokens:  tokens,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	if c.ethClient == nil {
		return nil, fmt.Errorf("no rpc connection")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.ethClient.ChainID(ctx)
}

// CallContract performs a rate limited eth_call.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.caller.CallContract(ctx, msg, blockNumber)
}
