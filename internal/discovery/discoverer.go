package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"base-launch-radar/internal/chain"
	"base-launch-radar/internal/domain"
	"base-launch-radar/internal/observability"
	"base-launch-radar/internal/registry"
	"base-launch-radar/internal/storage"
)

const (
	// DefaultTick is the poll period between factory scans.
	DefaultTick = 10 * time.Second

	// DefaultScanWindow caps how many blocks one tick may cover. The chain
	// client chunks the range further per provider limits.
	DefaultScanWindow = 10_000
)

// Sink receives discovered candidates. Accept returning an error means the
// candidate was NOT taken; the discoverer holds the cursor and retries the
// batch, which gives at-least-once delivery downstream.
type Sink interface {
	Accept(ctx context.Context, candidate *domain.PairCandidate) error
}

// Options configures a Discoverer.
type Options struct {
	Client   chain.Client
	Registry *registry.Registry
	State    storage.DiscoveryStateStore
	Sink     Sink

	// QuoteAssets is the set of recognized "money" tokens. A candidate is
	// kept only when exactly one side of the pair is a quote asset.
	QuoteAssets map[common.Address]struct{}

	// Tick is the poll period. Zero means DefaultTick.
	Tick time.Duration

	// ScanWindow caps blocks per tick. Zero means DefaultScanWindow.
	ScanWindow uint64

	// WarmWindow is how far behind the tip a fresh cursor starts.
	// Zero means "only forward from now".
	WarmWindow uint64

	// Heads optionally delivers new block numbers from a head watcher;
	// each one nudges a scan ahead of the next tick.
	Heads <-chan uint64

	Logger *log.Logger
}

// Discoverer walks every enabled factory's creation log and turns fresh
// pools into PairCandidates. Cursors advance only after the sink accepted
// the whole batch, so a crash replays rather than skips.
type Discoverer struct {
	client     chain.Client
	registry   *registry.Registry
	state      storage.DiscoveryStateStore
	sink       Sink
	quotes     map[common.Address]struct{}
	tick       time.Duration
	scanWindow uint64
	warmWindow uint64
	heads      <-chan uint64
	logger     *log.Logger
}

// New creates a Discoverer from options, filling in defaults.
func New(opts Options) *Discoverer {
	d := &Discoverer{
		client:     opts.Client,
		registry:   opts.Registry,
		state:      opts.State,
		sink:       opts.Sink,
		quotes:     opts.QuoteAssets,
		tick:       opts.Tick,
		scanWindow: opts.ScanWindow,
		warmWindow: opts.WarmWindow,
		heads:      opts.Heads,
		logger:     opts.Logger,
	}
	if d.tick == 0 {
		d.tick = DefaultTick
	}
	if d.scanWindow == 0 {
		d.scanWindow = DefaultScanWindow
	}
	if d.logger == nil {
		d.logger = log.New(log.Writer(), "[discovery] ", log.LstdFlags)
	}
	return d
}

// Run scans on every tick (and on head-watcher nudges) until the context is
// canceled. Scan errors are logged and retried on the next round; only
// cancellation ends the loop.
func (d *Discoverer) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		if err := d.ScanOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Printf("scan round failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-d.heads:
			// a new head arrived, scan early
		}
	}
}

// ScanOnce runs a single scan round over all enabled factories. A failure on
// one factory does not stop the others; the first error is returned.
func (d *Discoverer) ScanOnce(ctx context.Context) error {
	var firstErr error
	for _, desc := range d.registry.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.scanFactory(ctx, desc); err != nil {
			d.logger.Printf("factory %s: %v", desc.ID, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("factory %s: %w", desc.ID, err)
			}
		}
	}
	if firstErr == nil {
		observability.MarkScanComplete(time.Now().Unix())
	}
	return firstErr
}

func (d *Discoverer) scanFactory(ctx context.Context, desc domain.FactoryDescriptor) error {
	enabled, err := d.state.IsEnabled(ctx, desc.ID)
	if err != nil {
		return fmt.Errorf("read enabled flag: %w", err)
	}
	if !enabled {
		return nil
	}

	latest, err := d.client.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("read tip: %w", err)
	}

	cursor, err := d.state.GetCursor(ctx, desc.ID)
	if errors.Is(err, storage.ErrNotFound) {
		cursor = d.startCursor(latest)
		if err := d.state.SetCursor(ctx, desc.ID, cursor); err != nil {
			return fmt.Errorf("initialize cursor: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}

	if cursor+1 > latest {
		return nil
	}

	from := cursor + 1
	to := latest
	if to > cursor+d.scanWindow {
		to = cursor + d.scanWindow
	}

	logs, err := d.client.GetLogs(ctx, from, to, desc.Address, [][]common.Hash{{desc.CreatedTopic}})
	if err != nil {
		return fmt.Errorf("fetch creation log: %w", err)
	}

	for _, l := range logs {
		ev, err := registry.DecodeCreation(desc, l)
		if err != nil {
			d.logger.Printf("factory %s: undecodable log in block %d: %v", desc.ID, l.BlockNumber, err)
			continue
		}

		candidate, ok := d.toCandidate(desc, ev)
		if !ok {
			continue
		}

		if err := d.sink.Accept(ctx, candidate); err != nil {
			// batch not fully accepted, keep the cursor and retry
			return fmt.Errorf("sink rejected %s: %w", candidate.Key(), err)
		}
		observability.RecordPairDiscovered(desc.ID)
	}

	if err := d.state.SetCursor(ctx, desc.ID, to); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	observability.UpdateDiscoveryCursor(desc.ID, to)
	return nil
}

func (d *Discoverer) startCursor(latest uint64) uint64 {
	if d.warmWindow > 0 && latest > d.warmWindow {
		return latest - d.warmWindow
	}
	if d.warmWindow > 0 {
		return 0
	}
	return latest
}

// toCandidate applies the quote-asset filter: exactly one side of the pair
// must be a recognized quote asset, the other becomes the analysis target.
func (d *Discoverer) toCandidate(desc domain.FactoryDescriptor, ev *registry.CreationEvent) (*domain.PairCandidate, bool) {
	_, quote0 := d.quotes[ev.Token0]
	_, quote1 := d.quotes[ev.Token1]
	if quote0 == quote1 {
		// both or neither: stable-stable pools and exotic pairs are noise
		return nil, false
	}

	quote, base := ev.Token0, ev.Token1
	if quote1 {
		quote, base = ev.Token1, ev.Token0
	}

	return &domain.PairCandidate{
		PairAddress: ev.PairAddress,
		Token0:      ev.Token0,
		Token1:      ev.Token1,
		QuoteToken:  quote,
		BaseToken:   base,
		FactoryID:   desc.ID,
		FeeTier:     ev.FeeTier,
		Stable:      ev.Stable,
		BlockNumber: ev.BlockNumber,
		LogIndex:    ev.LogIndex,
		TxHash:      ev.TxHash,
	}, true
}
