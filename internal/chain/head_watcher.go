package chain

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// HeadWatcher subscribes to newHeads over a websocket endpoint and nudges
// the discoverer between polls. It is an optimization only: the discoverer
// falls back to its poll interval whenever the socket is down.
type HeadWatcher struct {
	endpoint  string
	logger    *log.Logger
	reconnect time.Duration
	maxDelay  time.Duration

	heads chan uint64
}

// NewHeadWatcher creates a watcher for the given ws:// or wss:// endpoint.
func NewHeadWatcher(endpoint string, logger *log.Logger) *HeadWatcher {
	return &HeadWatcher{
		endpoint:  endpoint,
		logger:    logger,
		reconnect: 1 * time.Second,
		maxDelay:  30 * time.Second,
		heads:     make(chan uint64, 16),
	}
}

// Heads returns the channel of new head numbers. Closed when Run returns.
func (w *HeadWatcher) Heads() <-chan uint64 {
	return w.heads
}

// Run connects and pumps head notifications until ctx is canceled,
// reconnecting with capped backoff on any socket failure.
func (w *HeadWatcher) Run(ctx context.Context) {
	defer close(w.heads)

	var delay time.Duration
	for {
		connected := time.Now()
		if err := w.pump(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			delay = w.nextDelay(delay, time.Since(connected))
			w.logger.Printf("head subscription dropped: %v (reconnect in %s)", err, delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// nextDelay doubles the reconnect delay up to the cap. A connection that
// outlived the cap was healthy, so its eventual drop starts over from the
// base instead of inheriting stale backoff.
func (w *HeadWatcher) nextDelay(prev, lifetime time.Duration) time.Duration {
	if prev == 0 || lifetime > w.maxDelay {
		return w.reconnect
	}
	next := prev * 2
	if next > w.maxDelay {
		next = w.maxDelay
	}
	return next
}

// subscribeRequest is the eth_subscribe frame for newHeads.
type subscribeRequest struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      uint64   `json:"id"`
	Method  string   `json:"method"`
	Params  []string `json:"params"`
}

// headNotification is the shape of an eth_subscription push.
type headNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Number string `json:"number"`
		} `json:"result"`
	} `json:"params"`
}

// pump runs one connection lifetime.
func (w *HeadWatcher) pump(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the socket when ctx is canceled so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	req := subscribeRequest{JSONRPC: "2.0", ID: 1, Method: "eth_subscribe", Params: []string{"newHeads"}}
	if err := conn.WriteJSON(req); err != nil {
		return err
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var note headNotification
		if err := json.Unmarshal(data, &note); err != nil || note.Method != "eth_subscription" {
			continue // subscription ack or unrelated frame
		}

		num, err := strconv.ParseUint(strings.TrimPrefix(note.Params.Result.Number, "0x"), 16, 64)
		if err != nil {
			continue
		}

		select {
		case w.heads <- num:
		default:
			// discoverer is busy; dropping a nudge is harmless
		}
	}
}
