// Package stub provides a scripted chain.Client for tests: seed it with
// logs, call results and balances, then run the pipeline against it.
package stub

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"base-launch-radar/internal/chain"
)

// ErrNoScript is returned for calls the test did not script.
var ErrNoScript = errors.New("stub: no scripted result")

// Client implements chain.Client from scripted state.
type Client struct {
	mu sync.Mutex

	Latest     uint64
	Logs       []types.Log
	CallResult map[string][]byte // selector-keyed, see callKey
	CallErr    map[string]error
	GasResult  map[string]uint64
	GasErr     map[string]error
	Code       map[common.Address][]byte
	Balances   map[common.Address]*big.Int

	// RangeLimit, when > 0, makes GetLogs reject any span wider than the
	// limit the way a throttling provider would.
	RangeLimit uint64

	// LogsCalls records every (from, to) span requested, for assertions.
	LogsCalls [][2]uint64
}

// New creates an empty stub client.
func New() *Client {
	return &Client{
		CallResult: make(map[string][]byte),
		CallErr:    make(map[string]error),
		GasResult:  make(map[string]uint64),
		GasErr:     make(map[string]error),
		Code:       make(map[common.Address][]byte),
		Balances:   make(map[common.Address]*big.Int),
	}
}

// callKey keys scripted call results by target address and the 4-byte
// selector of the calldata.
func callKey(to *common.Address, data []byte) string {
	addr := ""
	if to != nil {
		addr = to.Hex()
	}
	sel := data
	if len(sel) > 4 {
		sel = sel[:4]
	}
	return addr + "|" + hex.EncodeToString(sel)
}

// ScriptCall seeds the result of a contract call.
func (c *Client) ScriptCall(to common.Address, selector []byte, result []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallResult[callKey(&to, selector)] = result
}

// ScriptCallError seeds a call failure.
func (c *Client) ScriptCallError(to common.Address, selector []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallErr[callKey(&to, selector)] = err
}

// ScriptGas seeds an estimateGas result.
func (c *Client) ScriptGas(to common.Address, selector []byte, gas uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GasResult[callKey(&to, selector)] = gas
}

// ScriptGasError seeds an estimateGas failure (a revert, typically).
func (c *Client) ScriptGasError(to common.Address, selector []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GasErr[callKey(&to, selector)] = err
}

// AddLog appends a log to the scripted chain.
func (c *Client) AddLog(l types.Log) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Logs = append(c.Logs, l)
	if l.BlockNumber > c.Latest {
		c.Latest = l.BlockNumber
	}
}

// LatestBlock returns the scripted tip.
func (c *Client) LatestBlock(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Latest, nil
}

// GetLogs filters scripted logs by range, address and topic0.
func (c *Client) GetLogs(_ context.Context, from, to uint64, address common.Address, topics [][]common.Hash) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.LogsCalls = append(c.LogsCalls, [2]uint64{from, to})

	if c.RangeLimit > 0 && to-from+1 > c.RangeLimit {
		return nil, errors.New("query exceeds max block range too large")
	}

	var out []types.Log
	for _, l := range c.Logs {
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		if address != (common.Address{}) && l.Address != address {
			continue
		}
		if len(topics) > 0 && len(topics[0]) > 0 {
			if len(l.Topics) == 0 {
				continue
			}
			match := false
			for _, t := range topics[0] {
				if l.Topics[0] == t {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, l)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

// Call returns the scripted call result.
func (c *Client) Call(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := callKey(msg.To, msg.Data)
	if err, ok := c.CallErr[key]; ok {
		return nil, err
	}
	if ret, ok := c.CallResult[key]; ok {
		return ret, nil
	}
	return nil, ErrNoScript
}

// EstimateGas returns the scripted gas estimate.
func (c *Client) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := callKey(msg.To, msg.Data)
	if err, ok := c.GasErr[key]; ok {
		return 0, err
	}
	if g, ok := c.GasResult[key]; ok {
		return g, nil
	}
	return 21_000, nil
}

// GetCode returns the scripted bytecode, empty when unset.
func (c *Client) GetCode(_ context.Context, addr common.Address) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Code[addr], nil
}

// GetBalance returns the scripted balance, zero when unset.
func (c *Client) GetBalance(_ context.Context, addr common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.Balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

// Verify interface compliance at compile time.
var _ chain.Client = (*Client)(nil)
