// Package main runs the launch radar daemon:
// - Discovery (continuous): per-factory cursor scans for new pairs
// - Analysis (pooled): metadata, safety probes, on-chain distribution, scoring
// - Delivery (continuous): tiered Telegram fan-out with retry journal
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"base-launch-radar/internal/analyzer"
	"base-launch-radar/internal/chain"
	"base-launch-radar/internal/config"
	"base-launch-radar/internal/delivery"
	"base-launch-radar/internal/discovery"
	"base-launch-radar/internal/dispatch"
	"base-launch-radar/internal/inspect"
	"base-launch-radar/internal/observability"
	"base-launch-radar/internal/probe"
	"base-launch-radar/internal/registry"
	"base-launch-radar/internal/storage"
	chstore "base-launch-radar/internal/storage/clickhouse"
	"base-launch-radar/internal/storage/memory"
	"base-launch-radar/internal/storage/migrations"
	pgstore "base-launch-radar/internal/storage/postgres"
	"base-launch-radar/internal/swapexec"
	"base-launch-radar/internal/transport"

	"github.com/ethereum/go-ethereum/common"
)

// Server holds all components of the radar daemon.
type Server struct {
	cfg      *config.Config
	stores   *allStores
	logger   *log.Logger
	registry *registry.Registry

	discoverer *discovery.Discoverer
	dispatcher *dispatch.Dispatcher
	controller *delivery.Controller

	// baseCtx outlives individual HTTP requests; operator rechecks run on
	// it so they survive the response
	baseCtx context.Context

	mu      sync.Mutex
	started time.Time
}

// allStores holds all storage implementations.
type allStores struct {
	state       storage.DiscoveryStateStore
	dedup       storage.DedupStore
	journal     storage.DeliveryJournal
	subscribers storage.SubscriberStore
	archive     storage.AlertArchive
}

func main() {
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	dryRun := flag.Bool("dry-run", false, "Log alerts instead of sending to Telegram")
	flag.Parse()

	logger := log.New(os.Stdout, "[radar] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Configuration error: %v", err)
	}
	if !*useMemory && cfg.PostgresDSN == "" {
		logger.Fatal("POSTGRES_DSN is required (use --use-memory for in-memory storage)")
	}
	if !*dryRun && cfg.TelegramToken == "" {
		logger.Fatal("TELEGRAM_TOKEN is required (use --dry-run to log alerts instead)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	server, err := buildServer(ctx, cfg, stores, *dryRun, logger)
	if err != nil {
		logger.Fatalf("Failed to build pipeline: %v", err)
	}

	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		server.Shutdown(cancel)

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(cfg.DrainBudget + 30*time.Second):
			logger.Println("Graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go server.startHTTPServer(cfg.MetricsAddr)

	err = server.Run(ctx)
	close(done)

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, cfg *config.Config, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			state:       memory.NewDiscoveryStateStore(),
			dedup:       memory.NewDedupStore(cfg.DedupCap),
			journal:     memory.NewDeliveryJournal(),
			subscribers: memory.NewSubscriberStore(),
			archive:     memory.NewAlertArchive(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	stores := &allStores{
		state:       pgstore.NewDiscoveryStateStore(pool),
		dedup:       pgstore.NewDedupStore(pool, cfg.DedupCap),
		journal:     pgstore.NewDeliveryJournal(pool),
		subscribers: pgstore.NewSubscriberStore(pool),
	}

	// alert history is optional; without ClickHouse recheck falls back to
	// a fresh analysis
	var chConn *chstore.Conn
	if cfg.ClickhouseDSN != "" {
		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		stores.archive = chstore.NewAlertArchive(chConn)
	} else {
		stores.archive = memory.NewAlertArchive()
	}

	cleanup := func() {
		if chConn != nil {
			chConn.Close()
		}
		pool.Close()
	}
	return stores, cleanup, nil
}

// buildServer wires the discovery -> dispatch -> delivery pipeline.
func buildServer(ctx context.Context, cfg *config.Config, stores *allStores, dryRun bool, logger *log.Logger) (*Server, error) {
	client := chain.NewFailoverClient(cfg.RPCEndpoints,
		chain.WithChunkMax(cfg.ChunkMax),
		chain.WithLogger(log.New(os.Stdout, "[chain] ", log.LstdFlags)),
	)

	reg, err := registry.New(registry.BaseMainnet())
	if err != nil {
		return nil, fmt.Errorf("factory registry: %w", err)
	}

	var messenger transport.Messenger
	if dryRun {
		messenger = transport.NewStubMessenger()
	} else {
		messenger, err = transport.NewTelegram(cfg.TelegramToken, log.New(os.Stdout, "[telegram] ", log.LstdFlags))
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
	}

	controller := delivery.New(delivery.Options{
		Messenger:   messenger,
		Subscribers: stores.subscribers,
		Journal:     stores.journal,
		Logger:      log.New(os.Stdout, "[delivery] ", log.LstdFlags),
	})

	var simulator probe.SwapSimulator
	if cfg.SimulatorURL != "" {
		simulator = probe.NewRemoteSimulator(cfg.SimulatorURL)
	}

	dispatcher := dispatch.New(dispatch.Options{
		Inspector: inspect.New(client, cfg.DangerousSelectors),
		Prober: probe.NewProber(probe.Options{
			Client:    client,
			Simulator: simulator,
			Lockers:   cfg.LockerRegistry,
			Logger:    log.New(os.Stdout, "[probe] ", log.LstdFlags),
		}),
		Analyzer: analyzer.New(analyzer.Options{
			Client:         client,
			LookbackBlocks: cfg.AnalyzerLookbackBlocks,
			Logger:         log.New(os.Stdout, "[analyzer] ", log.LstdFlags),
		}),
		Dedup:     stores.dedup,
		Archive:   stores.archive,
		Deliverer: controller,
		GroupGate: cfg.GroupGate,
		Workers:   cfg.WorkPoolSize,
		MaxQueue:  cfg.MaxQueue,
		Deadline:  cfg.CandidateDeadline,
		Logger:    log.New(os.Stdout, "[dispatch] ", log.LstdFlags),
	})

	quotes := make(map[common.Address]struct{}, len(cfg.QuoteAssets))
	for _, a := range cfg.QuoteAssets {
		quotes[a] = struct{}{}
	}

	var heads <-chan uint64
	if cfg.WSEndpoint != "" {
		watcher := chain.NewHeadWatcher(cfg.WSEndpoint, log.New(os.Stdout, "[heads] ", log.LstdFlags))
		go watcher.Run(ctx)
		heads = watcher.Heads()
	}

	discoverer := discovery.New(discovery.Options{
		Client:      client,
		Registry:    reg,
		State:       stores.state,
		Sink:        dispatcher,
		QuoteAssets: quotes,
		Tick:        cfg.TickInterval,
		WarmWindow:  cfg.WarmWindow,
		Heads:       heads,
		Logger:      log.New(os.Stdout, "[discovery] ", log.LstdFlags),
	})

	server := &Server{
		cfg:        cfg,
		stores:     stores,
		logger:     logger,
		registry:   reg,
		discoverer: discoverer,
		dispatcher: dispatcher,
		controller: controller,
		baseCtx:    ctx,
	}

	if cfg.SwapExecutorURL != "" || dryRun {
		var executor swapexec.Executor
		if cfg.SwapExecutorURL != "" {
			executor = swapexec.NewHTTPExecutor(cfg.SwapExecutorURL)
		}
		handler := swapexec.NewHandler(swapexec.HandlerOptions{
			Messenger: messenger,
			Executor:  executor,
			Logger:    log.New(os.Stdout, "[swapexec] ", log.LstdFlags),
		})
		go func() {
			if err := handler.Run(ctx); err != nil && err != context.Canceled {
				logger.Printf("Swap handler stopped: %v", err)
			}
		}()
	}

	return server, nil
}

// Run starts all pipeline stages and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()
	s.logger.Println("Starting launch radar...")

	errCh := make(chan error, 3)

	go func() {
		if err := s.discoverer.Run(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("discovery: %w", err)
		}
	}()
	go func() {
		if err := s.dispatcher.Run(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("dispatch: %w", err)
		}
	}()
	go func() {
		if err := s.controller.Run(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("delivery: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown drains in order: stop intake, let workers finish queued
// candidates, flush the delivery queue within the drain budget, then cancel
// everything. Cursors are already persisted per scan, so nothing else needs
// flushing.
func (s *Server) Shutdown(cancel context.CancelFunc) {
	s.dispatcher.Close()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), s.cfg.DrainBudget)
	defer drainCancel()

	// wait for workers mid-candidate too, or their alerts would be handed
	// to the controller after the delivery flush
	for (s.dispatcher.QueueLen() > 0 || s.dispatcher.InFlight() > 0) && drainCtx.Err() == nil {
		time.Sleep(100 * time.Millisecond)
	}
	s.controller.Drain(drainCtx)

	cancel()
}

// startHTTPServer serves health, metrics and operator status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/recheck", s.handleRecheck)
	mux.HandleFunc("/factories/enable", s.handleSetEnabled(true))
	mux.HandleFunc("/factories/disable", s.handleSetEnabled(false))

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status       string            `json:"status"`
	Uptime       string            `json:"uptime"`
	Cursors      map[string]uint64 `json:"cursors"`
	QueueLen     int               `json:"queue_len"`
	DedupTracked int               `json:"dedup_tracked"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	cursors, err := s.stores.state.AllCursors(r.Context())
	if err != nil {
		s.logger.Printf("Status cursor read: %v", err)
		cursors = map[string]uint64{}
	}
	tracked, err := s.stores.dedup.Len(r.Context())
	if err != nil {
		tracked = -1
	}

	resp := StatusResponse{
		Status:       "running",
		Uptime:       time.Since(started).String(),
		Cursors:      cursors,
		QueueLen:     s.dispatcher.QueueLen(),
		DedupTracked: tracked,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleRecheck releases the dedup key for a pair and, when the pair was
// alerted before, re-runs the analysis from the archived candidate.
func (s *Server) handleRecheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	factoryID := r.URL.Query().Get("factory")
	pairHex := r.URL.Query().Get("pair")
	if factoryID == "" || !common.IsHexAddress(pairHex) {
		http.Error(w, "factory and pair query parameters required", http.StatusBadRequest)
		return
	}
	if _, ok := s.registry.Get(factoryID); !ok {
		http.Error(w, "unknown factory", http.StatusNotFound)
		return
	}

	pair := common.HexToAddress(pairHex)
	key := fmt.Sprintf("%s|%s", factoryID, pair.Hex())
	if err := s.stores.dedup.Remove(r.Context(), key); err != nil {
		s.logger.Printf("Recheck dedup release %s: %v", key, err)
		http.Error(w, "dedup release failed", http.StatusInternalServerError)
		return
	}

	prev, err := s.stores.archive.LatestForPair(r.Context(), pair.Hex())
	if err != nil {
		// never alerted: the key is released, discovery will pick the pair
		// up again when its factory re-emits it
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "rechecking": false})
		return
	}

	candidate := prev.Pair
	go s.dispatcher.Process(s.baseCtx, &candidate)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"ok": true, "rechecking": true})
}

func (s *Server) handleSetEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		factoryID := r.URL.Query().Get("id")
		if _, ok := s.registry.Get(factoryID); !ok {
			http.Error(w, "unknown factory", http.StatusNotFound)
			return
		}
		if err := s.stores.state.SetEnabled(r.Context(), factoryID, enabled); err != nil {
			s.logger.Printf("SetEnabled %s=%v: %v", factoryID, enabled, err)
			http.Error(w, "state write failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "factory": factoryID, "enabled": enabled})
	}
}
