package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcCall struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// fakeNode is a minimal JSON-RPC endpoint. It records every eth_getLogs
// span and can reject spans wider than maxSpan the way public providers do.
type fakeNode struct {
	mu        sync.Mutex
	tip       uint64
	maxSpan   uint64 // 0 = no limit
	rangeErr  string
	spans     [][2]uint64
	callCount map[string]int
	estGasErr string
	down      bool
}

func newFakeNode(tip uint64) *fakeNode {
	return &fakeNode{
		tip:       tip,
		rangeErr:  "query returned more than 10000 results",
		callCount: make(map[string]int),
	}
}

func (n *fakeNode) getLogsSpans() [][2]uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][2]uint64(nil), n.spans...)
}

func (n *fakeNode) calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.callCount[method]
}

func (n *fakeNode) setDown(down bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down = down
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	if n.down {
		n.mu.Unlock()
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	n.mu.Unlock()

	var call rpcCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.callCount[call.Method]++
	n.mu.Unlock()

	var result any
	var rpcErr string

	switch call.Method {
	case "eth_chainId":
		result = hexutil.EncodeUint64(8453)
	case "eth_blockNumber":
		result = hexutil.EncodeUint64(n.tip)
	case "eth_estimateGas":
		if n.estGasErr != "" {
			rpcErr = n.estGasErr
		} else {
			result = hexutil.EncodeUint64(21_000)
		}
	case "eth_getLogs":
		var filter struct {
			FromBlock string `json:"fromBlock"`
			ToBlock   string `json:"toBlock"`
		}
		if err := json.Unmarshal(call.Params[0], &filter); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		from, _ := hexutil.DecodeUint64(filter.FromBlock)
		to, _ := hexutil.DecodeUint64(filter.ToBlock)

		n.mu.Lock()
		reject := n.maxSpan > 0 && to-from+1 > n.maxSpan
		if !reject {
			n.spans = append(n.spans, [2]uint64{from, to})
		}
		n.mu.Unlock()

		if reject {
			rpcErr = n.rangeErr
		} else {
			result = []any{}
		}
	default:
		rpcErr = "method not supported"
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": call.ID}
	if rpcErr != "" {
		resp["error"] = map[string]any{"code": -32000, "message": rpcErr}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func startNode(t *testing.T, n *fakeNode) string {
	t.Helper()
	srv := httptest.NewServer(n)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestLatestBlock(t *testing.T) {
	node := newFakeNode(12_345)
	c := NewFailoverClient([]string{startNode(t, node)})

	tip, err := c.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(12_345), tip)
}

func TestGetLogs_ChunksWideRanges(t *testing.T) {
	node := newFakeNode(10_000)
	c := NewFailoverClient([]string{startNode(t, node)})

	_, err := c.GetLogs(context.Background(), 1, 5_000, common.Address{}, nil)
	require.NoError(t, err)

	assert.Equal(t, [][2]uint64{{1, 2_000}, {2_001, 4_000}, {4_001, 5_000}}, node.getLogsSpans())
}

func TestGetLogs_HalvesChunkOnRejection(t *testing.T) {
	node := newFakeNode(10_000)
	node.maxSpan = 600
	c := NewFailoverClient([]string{startNode(t, node)})

	_, err := c.GetLogs(context.Background(), 1, 1_200, common.Address{}, nil)
	require.NoError(t, err)

	// the 1200- and 1000-wide attempts get rejected, 500 sticks; no block
	// is skipped
	assert.Equal(t, [][2]uint64{{1, 500}, {501, 1_000}, {1_001, 1_200}}, node.getLogsSpans())

	// the reduced chunk persists for the endpoint
	node.mu.Lock()
	node.spans = nil
	node.mu.Unlock()
	_, err = c.GetLogs(context.Background(), 2_000, 2_999, common.Address{}, nil)
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{2_000, 2_499}, {2_500, 2_999}}, node.getLogsSpans())
}

func TestGetLogs_ConcurrentScansShareEndpoint(t *testing.T) {
	node := newFakeNode(100_000)
	node.maxSpan = 600
	c := NewFailoverClient([]string{startNode(t, node)})

	// the discoverer and the analysis workers share one client; concurrent
	// scans must agree on the endpoint's adaptive chunk size (run with -race)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := uint64(1 + i*10_000)
			_, err := c.GetLogs(context.Background(), from, from+1_199, common.Address{}, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

func TestGetLogs_RateLimitLowersChunkAndCycles(t *testing.T) {
	primary := newFakeNode(10_000)
	primary.maxSpan = 1_000
	primary.rangeErr = "429 Too Many Requests"
	secondary := newFakeNode(10_000)
	c := NewFailoverClient([]string{startNode(t, primary), startNode(t, secondary)})

	// throttled at 2000 wide: the primary's chunk is halved and the call
	// finishes on the secondary at full size
	_, err := c.GetLogs(context.Background(), 1, 2_000, common.Address{}, nil)
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{1, 2_000}}, secondary.getLogsSpans())
	assert.Empty(t, primary.getLogsSpans())

	// when the rotation comes back, the primary is asked with the halved
	// chunk and succeeds
	secondary.setDown(true)
	_, err = c.GetLogs(context.Background(), 3_000, 4_999, common.Address{}, nil)
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{3_000, 3_999}, {4_000, 4_999}}, primary.getLogsSpans())
}

func TestGetLogs_NeverBelowFloor(t *testing.T) {
	node := newFakeNode(10_000)
	node.maxSpan = 100 // provider keeps rejecting even the floor chunk
	c := NewFailoverClient([]string{startNode(t, node)})

	_, err := c.GetLogs(context.Background(), 1, 1_000, common.Address{}, nil)
	require.Error(t, err)

	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Contains(t, pErr.Error(), "query returned more than")
}

func TestFailover_CyclesToNextEndpoint(t *testing.T) {
	primary := newFakeNode(100)
	primary.setDown(true)
	secondary := newFakeNode(200)
	c := NewFailoverClient([]string{startNode(t, primary), startNode(t, secondary)})

	tip, err := c.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(200), tip)

	// sticky: the next call goes straight to the endpoint that worked
	before := secondary.calls("eth_blockNumber")
	_, err = c.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before+1, secondary.calls("eth_blockNumber"))
	assert.Zero(t, primary.calls("eth_blockNumber"))
}

func TestFailover_AllEndpointsDown(t *testing.T) {
	primary := newFakeNode(100)
	primary.setDown(true)
	secondary := newFakeNode(200)
	secondary.setDown(true)
	c := NewFailoverClient([]string{startNode(t, primary), startNode(t, secondary)})

	_, err := c.LatestBlock(context.Background())
	require.Error(t, err)
}

func TestEstimateGas_RevertIsNotRetried(t *testing.T) {
	primary := newFakeNode(100)
	primary.estGasErr = "execution reverted: TRANSFER_BLOCKED"
	secondary := newFakeNode(100)
	c := NewFailoverClient([]string{startNode(t, primary), startNode(t, secondary)})

	_, err := c.EstimateGas(context.Background(), ethereum.CallMsg{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution reverted")
	// a revert is a verdict, not an outage; the second endpoint is not asked
	assert.Zero(t, secondary.calls("eth_estimateGas"))
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, isRangeTooLarge(errors.New("Block range is too wide")))
	assert.True(t, isRangeTooLarge(errors.New("query returned more than 10000 results")))
	assert.False(t, isRangeTooLarge(errors.New("execution reverted")))

	assert.True(t, isTransient(errors.New("429 Too Many Requests")))
	assert.True(t, isTransient(errors.New("connection refused")))
	assert.True(t, isTransient(context.DeadlineExceeded))
	assert.False(t, isTransient(errors.New("execution reverted")))
}
