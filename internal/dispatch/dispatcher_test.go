package dispatch

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"base-launch-radar/internal/analyzer"
	"base-launch-radar/internal/chain/stub"
	"base-launch-radar/internal/domain"
	"base-launch-radar/internal/inspect"
	"base-launch-radar/internal/probe"
	"base-launch-radar/internal/storage/memory"
)

var (
	tokenAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	pairAddr  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	quoteAddr = common.HexToAddress("0x4200000000000000000000000000000000000006")
	deployerA = common.HexToAddress("0x3000000000000000000000000000000000000003")
	deadAddr  = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	lockerA   = common.HexToAddress("0x231278eDd38B00B07fBd52120CEf685B9BaEBCC1")
)

func sel4(sig string) []byte {
	h := crypto.Keccak256([]byte(sig))
	return h[:4]
}

func encUint(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func encAddr(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}

func encStr(s string) []byte {
	out := make([]byte, 0, 96)
	out = append(out, common.LeftPadBytes(big.NewInt(32).Bytes(), 32)...)
	out = append(out, common.LeftPadBytes(big.NewInt(int64(len(s))).Bytes(), 32)...)
	padded := make([]byte, (len(s)+31)/32*32)
	copy(padded, s)
	return append(out, padded...)
}

// scriptCleanToken sets up a renounced, sellable, LP-locked token with a
// plain transfer history on the stub chain.
func scriptCleanToken(client *stub.Client) {
	client.ScriptCall(tokenAddr, sel4("name()"), encStr("Radar Test"))
	client.ScriptCall(tokenAddr, sel4("symbol()"), encStr("RDT"))
	client.ScriptCall(tokenAddr, sel4("decimals()"), encUint(big.NewInt(18)))
	client.ScriptCall(tokenAddr, sel4("totalSupply()"), encUint(big.NewInt(1_000_000)))
	client.ScriptCall(tokenAddr, sel4("owner()"), encAddr(deadAddr))
	client.Code[tokenAddr] = []byte{0x60, 0x80, 0x60, 0x40}

	client.ScriptGas(tokenAddr, sel4("transfer(address,uint256)"), 60_000)
	client.ScriptCall(pairAddr, sel4("totalSupply()"), encUint(big.NewInt(1_000)))
	client.ScriptCall(pairAddr, sel4("balanceOf(address)"), encUint(big.NewInt(900)))
	unlock := time.Now().Add(400 * 24 * time.Hour).Unix()
	client.ScriptCall(lockerA, sel4("getUnlockTime(address)"), encUint(big.NewInt(unlock)))

	transferTopic := analyzer.TransferTopic
	addLog := func(from, to common.Address, amount int64, block uint64, idx uint) {
		client.AddLog(typesLog(transferTopic, from, to, amount, block, idx))
	}
	addLog(common.Address{}, deployerA, 1_000_000, 100, 0)
	addLog(deployerA, pairAddr, 900_000, 100, 1)
	addLog(pairAddr, common.HexToAddress("0x00000000000000000000000000000000000000B1"), 30_000, 110, 0)
	addLog(pairAddr, common.HexToAddress("0x00000000000000000000000000000000000000B2"), 10_000, 111, 0)
}

func typesLog(topic common.Hash, from, to common.Address, amount int64, block uint64, idx uint) types.Log {
	return types.Log{
		Address:     tokenAddr,
		Topics:      []common.Hash{topic, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:        common.LeftPadBytes(big.NewInt(amount).Bytes(), 32),
		BlockNumber: block,
		Index:       idx,
	}
}

type recordingDeliverer struct {
	mu        sync.Mutex
	alerts    []*domain.Alert
	group     []bool
	onDeliver func()
}

func (r *recordingDeliverer) Deliver(_ context.Context, a *domain.Alert, groupEligible bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	r.group = append(r.group, groupEligible)
	if r.onDeliver != nil {
		r.onDeliver()
	}
	return nil
}

func (r *recordingDeliverer) delivered() ([]*domain.Alert, []bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.Alert(nil), r.alerts...), append([]bool(nil), r.group...)
}

type fixedMarket struct {
	snap domain.MarketSnapshot
	err  error
}

func (f *fixedMarket) Snapshot(_ context.Context, _, _ common.Address) (domain.MarketSnapshot, error) {
	return f.snap, f.err
}

func hotMarket() *fixedMarket {
	return &fixedMarket{snap: domain.MarketSnapshot{
		LiquidityUSD:   600_000,
		Volume24hUSD:   2_000_000,
		MarketCapUSD:   1_100_000,
		PriceChangePct: 120,
	}}
}

func candidate() *domain.PairCandidate {
	return &domain.PairCandidate{
		PairAddress: pairAddr,
		Token0:      tokenAddr,
		Token1:      quoteAddr,
		QuoteToken:  quoteAddr,
		BaseToken:   tokenAddr,
		FactoryID:   "uniswap-v2",
		BlockNumber: 100,
		TxHash:      common.HexToHash("0xabc1"),
	}
}

func newTestDispatcher(client *stub.Client, deliverer Deliverer, opts func(*Options)) *Dispatcher {
	o := Options{
		Inspector: inspect.New(client, nil),
		Prober: probe.NewProber(probe.Options{
			Client:  client,
			Lockers: map[common.Address]string{lockerA: "UNCX"},
			Timeout: 2 * time.Second,
		}),
		Analyzer:  analyzer.New(analyzer.Options{Client: client}),
		Dedup:     memory.NewDedupStore(memory.DefaultDedupCap),
		Archive:   memory.NewAlertArchive(),
		Deliverer: deliverer,
		Market:    hotMarket(),
		Deadline:  5 * time.Second,
	}
	if opts != nil {
		opts(&o)
	}
	return New(o)
}

func TestProcess_CleanTokenBroadcastsToGroup(t *testing.T) {
	client := stub.New()
	scriptCleanToken(client)

	deliverer := &recordingDeliverer{}
	d := newTestDispatcher(client, deliverer, nil)

	d.Process(context.Background(), candidate())

	alerts, group := deliverer.delivered()
	require.Len(t, alerts, 1)
	a := alerts[0]

	assert.True(t, group[0])
	assert.Equal(t, "RDT", a.Meta.Symbol)
	assert.True(t, a.Meta.Renounced)
	assert.Equal(t, 100, a.Score.Security)
	assert.GreaterOrEqual(t, a.Score.Overall, 80)
	assert.Equal(t, domain.RiskSafe, a.Score.Risk)
	assert.NotEmpty(t, a.AlertID)
	assert.True(t, a.Safety.LPLocked)
	assert.False(t, a.Safety.IsHoneypot)
}

func TestProcess_AlertIsArchived(t *testing.T) {
	client := stub.New()
	scriptCleanToken(client)

	archive := memory.NewAlertArchive()
	deliverer := &recordingDeliverer{}
	d := newTestDispatcher(client, deliverer, func(o *Options) {
		o.Archive = archive
	})

	d.Process(context.Background(), candidate())

	stored, err := archive.LatestForPair(context.Background(), pairAddr.Hex())
	require.NoError(t, err)
	alerts, _ := deliverer.delivered()
	assert.Equal(t, alerts[0].AlertID, stored.AlertID)
}

func TestProcess_HoneypotDeliveredDirectOnly(t *testing.T) {
	client := stub.New()
	scriptCleanToken(client)
	client.ScriptGasError(tokenAddr, sel4("transfer(address,uint256)"), errors.New("execution reverted"))

	deliverer := &recordingDeliverer{}
	d := newTestDispatcher(client, deliverer, nil)

	d.Process(context.Background(), candidate())

	alerts, group := deliverer.delivered()
	require.Len(t, alerts, 1)
	assert.False(t, group[0])
	assert.True(t, alerts[0].Safety.IsHoneypot)
	// honeypot forfeits the whole security component and forces the tag
	assert.Zero(t, alerts[0].Score.Security)
	assert.Equal(t, domain.RiskCritical, alerts[0].Score.Risk)
}

func TestProcess_MetadataUnavailableSkips(t *testing.T) {
	client := stub.New() // nothing scripted: every view call fails

	deliverer := &recordingDeliverer{}
	d := newTestDispatcher(client, deliverer, nil)

	d.Process(context.Background(), candidate())

	alerts, _ := deliverer.delivered()
	assert.Empty(t, alerts)
}

func TestAccept_SkipsAlreadyProcessed(t *testing.T) {
	client := stub.New()
	scriptCleanToken(client)
	deliverer := &recordingDeliverer{}
	d := newTestDispatcher(client, deliverer, nil)

	d.Process(context.Background(), candidate())

	// the processed pair is acknowledged without queueing
	require.NoError(t, d.Accept(context.Background(), candidate()))
	assert.Equal(t, 0, d.queue.Len())
}

func TestDedupKeyMarkedAtProcessingNotIntake(t *testing.T) {
	client := stub.New()
	scriptCleanToken(client)
	dedup := memory.NewDedupStore(memory.DefaultDedupCap)
	deliverer := &recordingDeliverer{}
	d := newTestDispatcher(client, deliverer, func(o *Options) {
		o.Dedup = dedup
	})

	c := candidate()
	require.NoError(t, d.Accept(context.Background(), c))

	// queued but not yet processed: the key stays unmarked, so a crash here
	// cannot silence the pair across a restart
	seen, err := dedup.Seen(context.Background(), c.Key())
	require.NoError(t, err)
	assert.False(t, seen)

	d.Process(context.Background(), d.queue.Pop())

	seen, err = dedup.Seen(context.Background(), c.Key())
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestProcess_DuplicateInQueueAlertsOnce(t *testing.T) {
	client := stub.New()
	scriptCleanToken(client)
	deliverer := &recordingDeliverer{}
	d := newTestDispatcher(client, deliverer, nil)

	// intake dedup cannot see unprocessed queue entries
	require.NoError(t, d.Accept(context.Background(), candidate()))
	require.NoError(t, d.Accept(context.Background(), candidate()))
	require.Equal(t, 2, d.queue.Len())

	d.Process(context.Background(), d.queue.Pop())
	d.Process(context.Background(), d.queue.Pop())

	alerts, _ := deliverer.delivered()
	assert.Len(t, alerts, 1)
}

func TestAccept_SaturationDropsOldest(t *testing.T) {
	client := stub.New()
	deliverer := &recordingDeliverer{}
	d := newTestDispatcher(client, deliverer, func(o *Options) {
		o.MaxQueue = 2
	})

	mk := func(n byte) *domain.PairCandidate {
		c := candidate()
		c.PairAddress = common.BytesToAddress([]byte{0xCC, n})
		return c
	}

	require.NoError(t, d.Accept(context.Background(), mk(1)))
	require.NoError(t, d.Accept(context.Background(), mk(2)))
	require.NoError(t, d.Accept(context.Background(), mk(3)))

	// the oldest waiting candidate gave way; rediscovery can bring it back
	// because its key was never marked
	assert.Equal(t, 2, d.queue.Len())
	assert.Equal(t, mk(2).Key(), d.queue.Pop().Key())
	assert.Equal(t, mk(3).Key(), d.queue.Pop().Key())
}

func TestProcess_TransferScanFailureYieldsNoAlert(t *testing.T) {
	client := stub.New()
	scriptCleanToken(client)
	client.RangeLimit = 1 // every transfer-log span gets rejected

	deliverer := &recordingDeliverer{}
	d := newTestDispatcher(client, deliverer, nil)

	d.Process(context.Background(), candidate())

	// a broken scan drops the candidate instead of alerting with zeroed
	// holder and sniper figures
	alerts, _ := deliverer.delivered()
	assert.Empty(t, alerts)
}

func TestInFlight_TracksActiveCandidates(t *testing.T) {
	client := stub.New()
	scriptCleanToken(client)

	release := make(chan struct{})
	deliverer := &recordingDeliverer{onDeliver: func() { <-release }}
	d := newTestDispatcher(client, deliverer, nil)

	done := make(chan struct{})
	go func() {
		d.Process(context.Background(), candidate())
		close(done)
	}()

	require.Eventually(t, func() bool { return d.InFlight() == 1 }, 2*time.Second, 10*time.Millisecond)
	close(release)
	<-done
	assert.Zero(t, d.InFlight())
	assert.Zero(t, d.QueueLen())
}

func TestRun_WorkersDrainQueue(t *testing.T) {
	client := stub.New()
	scriptCleanToken(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	deliverer := &recordingDeliverer{onDeliver: func() { close(done) }}
	d := newTestDispatcher(client, deliverer, func(o *Options) {
		o.Workers = 2
	})

	require.NoError(t, d.Accept(ctx, candidate()))

	go func() {
		_ = d.Run(ctx)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("worker never processed the queued candidate")
	}
	cancel()
}
