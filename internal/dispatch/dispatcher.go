package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"base-launch-radar/internal/analyzer"
	"base-launch-radar/internal/domain"
	"base-launch-radar/internal/idhash"
	"base-launch-radar/internal/inspect"
	"base-launch-radar/internal/observability"
	"base-launch-radar/internal/probe"
	"base-launch-radar/internal/scoring"
	"base-launch-radar/internal/storage"
)

const (
	// DefaultWorkers is the number of concurrent candidate analyses.
	DefaultWorkers = 8

	// DefaultMaxQueue bounds candidates waiting for a worker. Beyond it the
	// oldest non-started candidate is dropped.
	DefaultMaxQueue = 1024

	// DefaultDeadline bounds one candidate's probe+analysis stage.
	DefaultDeadline = 60 * time.Second
)

// Deliverer receives finished alerts for fan-out. groupEligible carries the
// gate decision; direct subscribers receive the alert either way.
type Deliverer interface {
	Deliver(ctx context.Context, alert *domain.Alert, groupEligible bool) error
}

// MarketSource supplies externally observed market figures for the viral and
// social score components. Optional: a nil source scores those at zero.
type MarketSource interface {
	Snapshot(ctx context.Context, token, pair common.Address) (domain.MarketSnapshot, error)
}

// Options configures a Dispatcher.
type Options struct {
	Inspector *inspect.Inspector
	Prober    *probe.Prober
	Analyzer  *analyzer.Analyzer
	Dedup     storage.DedupStore
	Archive   storage.AlertArchive
	Deliverer Deliverer
	Market    MarketSource

	// GroupGate is the minimum overall score for group broadcast.
	// Zero means scoring.DefaultGroupGate.
	GroupGate int

	// Workers is the analysis pool size. Zero means DefaultWorkers.
	Workers int

	// MaxQueue bounds the waiting line. Zero means DefaultMaxQueue.
	MaxQueue int

	// Deadline bounds one candidate end to end. Zero means DefaultDeadline.
	Deadline time.Duration

	Logger *log.Logger
}

// Dispatcher owns the bounded analysis pool. Candidates come in from the
// discoverer through Accept, get deduplicated, analyzed, scored, archived
// and handed to the delivery controller.
type Dispatcher struct {
	inspector *inspect.Inspector
	prober    *probe.Prober
	analyzer  *analyzer.Analyzer
	dedup     storage.DedupStore
	archive   storage.AlertArchive
	deliverer Deliverer
	market    MarketSource
	groupGate int
	workers   int
	deadline  time.Duration
	logger    *log.Logger

	queue    *candidateQueue
	inflight atomic.Int64
}

// New creates a Dispatcher from options, filling in defaults.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		inspector: opts.Inspector,
		prober:    opts.Prober,
		analyzer:  opts.Analyzer,
		dedup:     opts.Dedup,
		archive:   opts.Archive,
		deliverer: opts.Deliverer,
		market:    opts.Market,
		groupGate: opts.GroupGate,
		workers:   opts.Workers,
		deadline:  opts.Deadline,
		logger:    opts.Logger,
	}
	if d.groupGate == 0 {
		d.groupGate = scoring.DefaultGroupGate
	}
	if d.workers == 0 {
		d.workers = DefaultWorkers
	}
	if d.deadline == 0 {
		d.deadline = DefaultDeadline
	}
	if d.logger == nil {
		d.logger = log.New(log.Writer(), "[dispatch] ", log.LstdFlags)
	}
	maxQueue := opts.MaxQueue
	if maxQueue == 0 {
		maxQueue = DefaultMaxQueue
	}
	d.queue = newCandidateQueue(maxQueue)
	return d
}

// Accept implements the discoverer's sink. A candidate already processed is
// acknowledged without work; a fresh one is queued. The dedup key is marked
// by the worker, not here: the queue is volatile, and a key persisted for a
// candidate that never reached a worker would silence the pair across a
// restart. Duplicates that slip into the queue meanwhile are filtered again
// at processing time.
func (d *Dispatcher) Accept(ctx context.Context, c *domain.PairCandidate) error {
	seen, err := d.dedup.Seen(ctx, c.Key())
	if err != nil {
		return fmt.Errorf("dedup lookup: %w", err)
	}
	if seen {
		observability.RecordCandidateDeduped()
		return nil
	}

	dropped, ok := d.queue.Push(c)
	if !ok {
		return errors.New("dispatcher closed")
	}
	if dropped != nil {
		// never marked, so rediscovery or a recheck can bring it back
		d.logger.Printf("dropped %s due to saturation", dropped.Key())
		observability.RecordCandidateDropped()
	}
	observability.UpdateDispatchQueue(d.queue.Len())
	return nil
}

// Run serves the queue with the worker pool until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Close stops the intake. Queued candidates remain for the workers to drain.
func (d *Dispatcher) Close() {
	d.queue.Close()
}

// QueueLen returns the number of candidates waiting for a worker.
func (d *Dispatcher) QueueLen() int {
	return d.queue.Len()
}

// InFlight returns the number of candidates currently being processed.
// Shutdown waits for both the queue and this count to reach zero before
// flushing delivery.
func (d *Dispatcher) InFlight() int {
	return int(d.inflight.Load())
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c := d.queue.Pop()
		if c == nil {
			select {
			case <-ctx.Done():
				return
			case <-d.queue.Wait():
				continue
			}
		}
		observability.UpdateDispatchQueue(d.queue.Len())
		d.Process(ctx, c)
	}
}

// Process runs one candidate through inspect, probe, analyze, score and
// delivery. Exported for the operator recheck path, which bypasses the
// queue.
func (d *Dispatcher) Process(ctx context.Context, c *domain.PairCandidate) {
	d.inflight.Add(1)
	defer d.inflight.Add(-1)

	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.deadline)
	defer cancel()

	// re-check and mark under the durable store here rather than in Accept:
	// duplicates can share the queue, and rechecks bypass Accept entirely
	seen, err := d.dedup.Seen(ctx, c.Key())
	if err != nil {
		d.logger.Printf("skipped %s: dedup lookup: %v", c.Key(), err)
		return
	}
	if seen {
		observability.RecordCandidateDeduped()
		return
	}
	if err := d.dedup.Mark(ctx, c.Key()); err != nil {
		d.logger.Printf("skipped %s: dedup mark: %v", c.Key(), err)
		return
	}

	meta, err := d.inspector.Inspect(ctx, c.BaseToken)
	if err != nil {
		if errors.Is(err, inspect.ErrMetadataUnavailable) {
			d.logger.Printf("skipped %s: metadata unavailable", c.Key())
			observability.RecordCandidateSkipped("metadata_unavailable")
		} else {
			d.logger.Printf("skipped %s: inspect: %v", c.Key(), err)
			observability.RecordCandidateSkipped("inspect_error")
		}
		return
	}

	// safety probes and the transfer-log scan are independent, run them
	// side by side under the shared deadline
	var (
		wg      sync.WaitGroup
		safety  domain.SafetyProbe
		stats   *domain.OnChainStats
		scanErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		safety = d.prober.Probe(ctx, c.BaseToken, c.PairAddress, c.QuoteToken)
	}()
	go func() {
		defer wg.Done()
		stats, scanErr = d.analyzer.Analyze(ctx, c.BaseToken, c.PairAddress, meta.TotalSupply)
	}()
	wg.Wait()

	// a failed transfer scan means no alert at all, never a zeroed one
	if scanErr != nil {
		d.logger.Printf("skipped %s: analysis: %v", c.Key(), scanErr)
		observability.RecordCandidateSkipped("analysis_error")
		return
	}

	var market domain.MarketSnapshot
	if d.market != nil {
		if m, merr := d.market.Snapshot(ctx, c.BaseToken, c.PairAddress); merr != nil {
			d.logger.Printf("market snapshot unavailable for %s: %v", c.Key(), merr)
		} else {
			market = m
		}
	}

	score := scoring.Compute(*meta, safety, *stats, market)

	alert := &domain.Alert{
		AlertID:   idhash.ComputeAlertID(c.FactoryID, c.PairAddress, c.BaseToken, c.BlockNumber, c.TxHash),
		Pair:      *c,
		Meta:      *meta,
		Safety:    safety,
		OnChain:   *stats,
		Market:    market,
		Score:     score,
		CreatedAt: time.Now().UnixMilli(),
	}

	groupEligible := scoring.GroupEligible(score, *meta, safety, d.groupGate) && !safety.Inconclusive()

	if d.archive != nil {
		if err := d.archive.Insert(ctx, alert); err != nil {
			d.logger.Printf("archive insert failed for %s: %v", alert.AlertID, err)
		}
	}

	observability.RecordAnalysisDone(time.Since(started).Seconds())
	observability.RecordAlertCreated(score.Risk.String())

	if err := d.deliverer.Deliver(ctx, alert, groupEligible); err != nil {
		d.logger.Printf("delivery handoff failed for %s: %v", alert.AlertID, err)
	}
}
