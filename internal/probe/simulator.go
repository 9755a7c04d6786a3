package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SwapSimResult is the outcome of a simulated buy followed by a sell.
type SwapSimResult struct {
	BuyExpected  *big.Int // quote-denominated expectation from reserves
	BuyReceived  *big.Int // tokens actually credited in the fork
	SellExpected *big.Int
	SellReceived *big.Int
	SellReverted bool
}

// SwapSimulator performs a buy+sell simulation for a token against a quote
// asset. The remote implementation runs the swaps in a fork; when it is
// configured it is preferred over local heuristics.
type SwapSimulator interface {
	SimulateBuySell(ctx context.Context, token, quote common.Address, amountIn *big.Int) (*SwapSimResult, error)
}

// RemoteSimulator calls an external fork-simulation service over HTTP.
type RemoteSimulator struct {
	url    string
	client *http.Client
}

// NewRemoteSimulator creates a simulator client for the given service URL.
func NewRemoteSimulator(url string) *RemoteSimulator {
	return &RemoteSimulator{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type simRequest struct {
	Token    string `json:"token"`
	Quote    string `json:"quote"`
	AmountIn string `json:"amountIn"`
}

type simResponse struct {
	OK           bool   `json:"ok"`
	Error        string `json:"error,omitempty"`
	BuyExpected  string `json:"buyExpected"`
	BuyReceived  string `json:"buyReceived"`
	SellExpected string `json:"sellExpected"`
	SellReceived string `json:"sellReceived"`
	SellReverted bool   `json:"sellReverted"`
}

// SimulateBuySell runs the buy+sell in the remote fork.
func (s *RemoteSimulator) SimulateBuySell(ctx context.Context, token, quote common.Address, amountIn *big.Int) (*SwapSimResult, error) {
	body, err := json.Marshal(simRequest{
		Token:    token.Hex(),
		Quote:    quote.Hex(),
		AmountIn: amountIn.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal simulation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create simulation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("simulation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("simulator returned HTTP %d", resp.StatusCode)
	}

	var out simResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode simulation response: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("simulator error: %s", out.Error)
	}

	result := &SwapSimResult{SellReverted: out.SellReverted}
	var ok bool
	if result.BuyExpected, ok = new(big.Int).SetString(out.BuyExpected, 10); !ok {
		return nil, fmt.Errorf("simulator returned bad buyExpected %q", out.BuyExpected)
	}
	if result.BuyReceived, ok = new(big.Int).SetString(out.BuyReceived, 10); !ok {
		return nil, fmt.Errorf("simulator returned bad buyReceived %q", out.BuyReceived)
	}
	if result.SellExpected, ok = new(big.Int).SetString(out.SellExpected, 10); !ok {
		return nil, fmt.Errorf("simulator returned bad sellExpected %q", out.SellExpected)
	}
	if result.SellReceived, ok = new(big.Int).SetString(out.SellReceived, 10); !ok {
		return nil, fmt.Errorf("simulator returned bad sellReceived %q", out.SellReceived)
	}

	return result, nil
}

// Verify interface compliance at compile time.
var _ SwapSimulator = (*RemoteSimulator)(nil)
