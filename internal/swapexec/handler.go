package swapexec

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"base-launch-radar/internal/transport"
)

// DefaultBuyAmount is 0.005 of the native asset in wei.
var DefaultBuyAmount = big.NewInt(5_000_000_000_000_000)

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Messenger transport.Messenger
	Executor  Executor
	BuyAmount *big.Int
	Timeout   time.Duration
	Logger    *log.Logger
}

// Handler consumes button presses from the messenger and forwards buy
// requests to the executor. Each press is answered exactly once, with the
// transaction hash or the refusal reason.
type Handler struct {
	messenger transport.Messenger
	executor  Executor
	buyAmount *big.Int
	timeout   time.Duration
	logger    *log.Logger
}

func NewHandler(opts HandlerOptions) *Handler {
	h := &Handler{
		messenger: opts.Messenger,
		executor:  opts.Executor,
		buyAmount: opts.BuyAmount,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
	if h.buyAmount == nil {
		h.buyAmount = DefaultBuyAmount
	}
	if h.timeout == 0 {
		h.timeout = DefaultRequestTimeout
	}
	if h.logger == nil {
		h.logger = log.New(log.Writer(), "[swapexec] ", log.LstdFlags)
	}
	return h
}

// Run serves presses until the context is canceled or the event channel
// closes.
func (h *Handler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case press, ok := <-h.messenger.Events():
			if !ok {
				return nil
			}
			h.handle(ctx, press)
		}
	}
}

func (h *Handler) handle(ctx context.Context, press transport.ButtonPress) {
	token, _, ok := transport.ParseBuyPayload(press.Payload)
	if !ok {
		h.logger.Printf("unparseable payload %q from %d", press.Payload, press.SubscriberID)
		h.answer(ctx, press.CallbackID, "Unknown action.")
		return
	}

	if h.executor == nil {
		h.answer(ctx, press.CallbackID, "Buying is not enabled on this instance.")
		return
	}

	execCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	res, err := h.executor.ExecuteBuy(execCtx, token, press.SubscriberID, h.buyAmount)
	switch {
	case err == nil:
		h.answer(ctx, press.CallbackID, fmt.Sprintf("Buy sent: %s", res.TxHash.Hex()))
	case errors.Is(err, ErrRejected):
		h.answer(ctx, press.CallbackID, fmt.Sprintf("Buy refused: %v", err))
	default:
		h.logger.Printf("executor failed for %s / %d: %v", token.Hex(), press.SubscriberID, err)
		h.answer(ctx, press.CallbackID, "Executor unavailable, try again later.")
	}
}

func (h *Handler) answer(ctx context.Context, callbackID, text string) {
	if err := h.messenger.AnswerCallback(ctx, callbackID, text); err != nil {
		h.logger.Printf("answer callback %s: %v", callbackID, err)
	}
}
