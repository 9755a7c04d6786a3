// Package chain provides the JSON-RPC access layer: a ranked list of
// endpoints with sticky failover and adaptive eth_getLogs chunking.
package chain

import (
	"context"
	"log"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is the read surface the pipeline needs from a chain.
type Client interface {
	// LatestBlock returns the tip block number.
	LatestBlock(ctx context.Context) (uint64, error)

	// GetLogs returns every log in [from, to] matching address and topics.
	// The range is fetched in provider-sized chunks; partial results are
	// never returned.
	GetLogs(ctx context.Context, from, to uint64, address common.Address, topics [][]common.Hash) ([]types.Log, error)

	// Call executes a read-only contract call.
	Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)

	// EstimateGas estimates gas for a call without executing it on-chain.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)

	// GetCode returns the runtime bytecode at addr.
	GetCode(ctx context.Context, addr common.Address) ([]byte, error)

	// GetBalance returns the native balance of addr in wei.
	GetBalance(ctx context.Context, addr common.Address) (*big.Int, error)
}

// Chunking bounds. A provider that rejects a span gets its chunk size
// halved, persistently for that provider, down to the floor.
const (
	DefaultChunkMax = 2_000
	chunkFloor      = 500
)

func halveChunk(n uint64) uint64 {
	half := n / 2
	if half < chunkFloor {
		half = chunkFloor
	}
	return half
}

// endpoint is one ranked provider with its adaptive chunk size. chunkMax is
// atomic: the discoverer and the analysis workers share one client.
type endpoint struct {
	url      string
	client   *ethclient.Client
	chunkMax atomic.Uint64
}

// FailoverClient implements Client over an ordered endpoint list.
// It stays sticky on the current endpoint until it fails, then cycles.
type FailoverClient struct {
	mu        sync.Mutex
	endpoints []*endpoint
	current   int
	logger    *log.Logger
}

// Option configures FailoverClient.
type Option func(*FailoverClient)

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) Option {
	return func(c *FailoverClient) {
		c.logger = l
	}
}

// WithChunkMax overrides the initial per-provider chunk size.
func WithChunkMax(n uint64) Option {
	return func(c *FailoverClient) {
		if n < chunkFloor {
			n = chunkFloor
		}
		for _, ep := range c.endpoints {
			ep.chunkMax.Store(n)
		}
	}
}

// NewFailoverClient creates a client over the ranked endpoint list.
// Endpoints are dialed lazily on first use.
func NewFailoverClient(urls []string, opts ...Option) *FailoverClient {
	c := &FailoverClient{
		logger: log.New(log.Writer(), "[chain] ", log.LstdFlags),
	}
	for _, u := range urls {
		ep := &endpoint{url: u}
		ep.chunkMax.Store(DefaultChunkMax)
		c.endpoints = append(c.endpoints, ep)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// active returns the current endpoint, dialing it if needed.
func (c *FailoverClient) active(ctx context.Context) (*endpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.current
	for i := 0; i < len(c.endpoints); i++ {
		ep := c.endpoints[(start+i)%len(c.endpoints)]
		if ep.client == nil {
			cl, err := ethclient.DialContext(ctx, ep.url)
			if err != nil {
				c.logger.Printf("dial %s failed: %v", ep.url, err)
				continue
			}
			ep.client = cl
		}
		c.current = (start + i) % len(c.endpoints)
		return ep, nil
	}
	return nil, ErrAllEndpointsFailed
}

// fail rotates away from a failed endpoint.
func (c *FailoverClient) fail(ep *endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.endpoints[c.current] == ep {
		c.current = (c.current + 1) % len(c.endpoints)
	}
}

// do runs fn against the active endpoint, cycling through the ranked list
// on transient failures. Each endpoint is tried once per call.
func (c *FailoverClient) do(ctx context.Context, fn func(ep *endpoint) error) error {
	var lastErr error
	for i := 0; i < len(c.endpoints); i++ {
		ep, err := c.active(ctx)
		if err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err = fn(ep)
		if err == nil {
			return nil
		}
		lastErr = &ProviderError{Endpoint: ep.url, Err: err}
		if !isTransient(err) {
			return lastErr
		}
		c.logger.Printf("endpoint %s failed, cycling: %v", ep.url, err)
		c.fail(ep)
	}
	if lastErr != nil {
		return lastErr
	}
	return ErrAllEndpointsFailed
}

// LatestBlock returns the tip block number.
func (c *FailoverClient) LatestBlock(ctx context.Context) (uint64, error) {
	var out uint64
	err := c.do(ctx, func(ep *endpoint) error {
		n, err := ep.client.BlockNumber(ctx)
		if err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}

// GetLogs fetches [from, to] in chunks bounded by the provider's current
// chunkMax. A range-too-large rejection halves the provider's chunk size
// (floor 500) and retries the same chunk; a rate limit also halves it but
// cycles to the next endpoint. Blocks are never skipped.
func (c *FailoverClient) GetLogs(ctx context.Context, from, to uint64, address common.Address, topics [][]common.Hash) ([]types.Log, error) {
	if to < from {
		return nil, nil
	}

	var all []types.Log
	cursor := from
	for cursor <= to {
		err := c.do(ctx, func(ep *endpoint) error {
			for cursor <= to {
				chunk := ep.chunkMax.Load()
				end := cursor + chunk - 1
				if end > to {
					end = to
				}

				q := ethereum.FilterQuery{
					FromBlock: new(big.Int).SetUint64(cursor),
					ToBlock:   new(big.Int).SetUint64(end),
					Topics:    topics,
				}
				if address != (common.Address{}) {
					q.Addresses = []common.Address{address}
				}

				logs, err := ep.client.FilterLogs(ctx, q)
				if err != nil {
					if isRangeTooLarge(err) && chunk > chunkFloor {
						half := halveChunk(chunk)
						c.logger.Printf("endpoint %s rejected range %d-%d, lowering chunk to %d", ep.url, cursor, end, half)
						ep.chunkMax.Store(half)
						continue // retry the same chunk, smaller
					}
					if isRateLimited(err) && chunk > chunkFloor {
						// remember the smaller chunk for when the rotation
						// comes back to this endpoint
						half := halveChunk(chunk)
						c.logger.Printf("endpoint %s throttled at %d-%d, lowering chunk to %d", ep.url, cursor, end, half)
						ep.chunkMax.Store(half)
					}
					return err
				}

				all = append(all, logs...)
				cursor = end + 1
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return all, nil
}

// Call executes a read-only contract call.
func (c *FailoverClient) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	var out []byte
	err := c.do(ctx, func(ep *endpoint) error {
		ret, err := ep.client.CallContract(ctx, msg, nil)
		if err != nil {
			return err
		}
		out = ret
		return nil
	})
	return out, err
}

// EstimateGas estimates gas for a call. Reverts are returned to the caller
// unchanged: the prober distinguishes "reverts" from "provider failed".
func (c *FailoverClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var out uint64
	err := c.do(ctx, func(ep *endpoint) error {
		g, err := ep.client.EstimateGas(ctx, msg)
		if err != nil {
			return err
		}
		out = g
		return nil
	})
	return out, err
}

// GetCode returns the runtime bytecode at addr.
func (c *FailoverClient) GetCode(ctx context.Context, addr common.Address) ([]byte, error) {
	var out []byte
	err := c.do(ctx, func(ep *endpoint) error {
		code, err := ep.client.CodeAt(ctx, addr, nil)
		if err != nil {
			return err
		}
		out = code
		return nil
	})
	return out, err
}

// GetBalance returns the native balance of addr in wei.
func (c *FailoverClient) GetBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var out *big.Int
	err := c.do(ctx, func(ep *endpoint) error {
		bal, err := ep.client.BalanceAt(ctx, addr, nil)
		if err != nil {
			return err
		}
		out = bal
		return nil
	})
	return out, err
}

// Verify interface compliance at compile time.
var _ Client = (*FailoverClient)(nil)
