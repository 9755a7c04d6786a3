package swapexec

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// StubExecutor accepts every buy and records it; tests script failures with
// Reject.
type StubExecutor struct {
	mu     sync.Mutex
	buys   []StubBuy
	reject map[common.Address]string
}

// StubBuy is one recorded hand-off.
type StubBuy struct {
	Token        common.Address
	SubscriberID int64
	Amount       *big.Int
}

func NewStubExecutor() *StubExecutor {
	return &StubExecutor{reject: make(map[common.Address]string)}
}

// Reject makes future buys of token fail with the given reason.
func (s *StubExecutor) Reject(token common.Address, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject[token] = reason
}

// Buys returns a copy of the recorded hand-offs.
func (s *StubExecutor) Buys() []StubBuy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StubBuy, len(s.buys))
	copy(out, s.buys)
	return out
}

func (s *StubExecutor) ExecuteBuy(_ context.Context, token common.Address, subscriberID int64, amount *big.Int) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reason, ok := s.reject[token]; ok {
		return nil, fmt.Errorf("%w: %s", ErrRejected, reason)
	}
	s.buys = append(s.buys, StubBuy{Token: token, SubscriberID: subscriberID, Amount: new(big.Int).Set(amount)})
	seed := fmt.Sprintf("%s|%d|%d", token.Hex(), subscriberID, len(s.buys))
	return &Result{TxHash: crypto.Keccak256Hash([]byte(seed))}, nil
}

var _ Executor = (*StubExecutor)(nil)
