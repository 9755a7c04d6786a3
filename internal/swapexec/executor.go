// Package swapexec is the hand-off boundary to the external swap executor.
// The core never signs or submits transactions; it forwards a buy request
// and relays the executor's verdict back to the subscriber.
package swapexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultRequestTimeout bounds one executor round trip.
const DefaultRequestTimeout = 20 * time.Second

// ErrRejected wraps an executor-side refusal (insufficient balance, token
// blocked, slippage). The reason is human-readable and safe to relay.
var ErrRejected = errors.New("swap rejected")

// Result is a successful hand-off outcome.
type Result struct {
	TxHash common.Hash
}

// Executor submits a buy on behalf of a subscriber. Implementations must
// answer within the context deadline; a nil error means the transaction was
// accepted and broadcast.
type Executor interface {
	ExecuteBuy(ctx context.Context, token common.Address, subscriberID int64, amount *big.Int) (*Result, error)
}

// HTTPExecutor talks to the external executor service over JSON/HTTP.
type HTTPExecutor struct {
	url    string
	client *http.Client
}

// NewHTTPExecutor creates an executor client for the given service URL.
func NewHTTPExecutor(url string) *HTTPExecutor {
	return &HTTPExecutor{
		url:    url,
		client: &http.Client{Timeout: DefaultRequestTimeout},
	}
}

type buyRequest struct {
	Token        string `json:"token"`
	SubscriberID int64  `json:"subscriberId"`
	Amount       string `json:"amount"`
}

type buyResponse struct {
	OK     bool   `json:"ok"`
	TxHash string `json:"txHash,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ExecuteBuy forwards the buy request and decodes the verdict.
func (e *HTTPExecutor) ExecuteBuy(ctx context.Context, token common.Address, subscriberID int64, amount *big.Int) (*Result, error) {
	body, err := json.Marshal(buyRequest{
		Token:        token.Hex(),
		SubscriberID: subscriberID,
		Amount:       amount.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal buy request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create buy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("executor returned HTTP %d", resp.StatusCode)
	}

	var out buyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode executor response: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("%w: %s", ErrRejected, out.Error)
	}
	return &Result{TxHash: common.HexToHash(out.TxHash)}, nil
}

// Verify interface compliance at compile time.
var _ Executor = (*HTTPExecutor)(nil)
