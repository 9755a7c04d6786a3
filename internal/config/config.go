// Package config loads runtime configuration from the environment.
// Keys are accepted in both lower_case and UPPER_CASE form; a .env file in
// the working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Defaults for tunables the environment does not set.
const (
	DefaultGroupGate         = 80
	DefaultWorkPoolSize      = 8
	DefaultMaxQueue          = 1024
	DefaultCandidateDeadline = 60 * time.Second
	DefaultTickInterval      = 10 * time.Second
	DefaultChunkMax          = 2_000
	DefaultDedupCap          = 50_000
	DefaultDrainBudget       = 10 * time.Second
)

// Config keeps all pipeline configuration.
type Config struct {
	// Chain access
	RPCEndpoints []string // ordered, first is preferred
	WSEndpoint   string   // optional newHeads websocket
	ChainID      int64

	// Storage
	PostgresDSN   string
	ClickhouseDSN string // optional alert archive

	// Transport
	TelegramToken string

	// Discovery
	QuoteAssets  []common.Address
	TickInterval time.Duration
	WarmWindow   uint64 // blocks to rewind on cold start; 0 = only forward from now
	ChunkMax     uint64

	// Analysis
	WorkPoolSize           int
	MaxQueue               int
	CandidateDeadline      time.Duration
	AnalyzerLookbackBlocks uint64 // 0 = scan from the token's first Transfer

	// Dispatch
	GroupGate int
	DedupCap  int

	// Safety probes
	LockerRegistry     map[common.Address]string // locker address -> label
	SimulatorURL       string                    // optional external buy+sell simulator
	DangerousSelectors map[string]string         // name -> 4-byte selector hex

	// Swap hand-off
	SwapExecutorURL string // optional; empty disables the buy button backend

	// Lifecycle
	DrainBudget time.Duration
	MetricsAddr string
}

// Load reads configuration from the environment. A missing .env file is not
// an error. Returns an error for invalid values so the process can exit with
// the configuration-error code.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RPCEndpoints:           splitCSV(get([]string{"chain_rpc_endpoints", "CHAIN_RPC_ENDPOINTS"}, "")),
		WSEndpoint:             get([]string{"chain_ws_endpoint", "CHAIN_WS_ENDPOINT"}, ""),
		ChainID:                getInt64([]string{"chain_id", "CHAIN_ID"}, 8453),
		PostgresDSN:            get([]string{"postgres_dsn", "POSTGRES_DSN"}, ""),
		ClickhouseDSN:          get([]string{"clickhouse_dsn", "CLICKHOUSE_DSN"}, ""),
		TelegramToken:          get([]string{"telegram_token", "TELEGRAM_TOKEN"}, ""),
		TickInterval:           getDuration([]string{"tick_interval", "TICK_INTERVAL"}, DefaultTickInterval),
		WarmWindow:             uint64(getInt64([]string{"warm_window", "WARM_WINDOW"}, 0)),
		ChunkMax:               uint64(getInt64([]string{"chunk_max", "CHUNK_MAX"}, DefaultChunkMax)),
		WorkPoolSize:           getInt([]string{"work_pool_size", "WORK_POOL_SIZE"}, DefaultWorkPoolSize),
		MaxQueue:               getInt([]string{"max_queue", "MAX_QUEUE"}, DefaultMaxQueue),
		CandidateDeadline:      getDuration([]string{"candidate_deadline", "CANDIDATE_DEADLINE"}, DefaultCandidateDeadline),
		AnalyzerLookbackBlocks: uint64(getInt64([]string{"analyzer_lookback_blocks", "ANALYZER_LOOKBACK_BLOCKS"}, 0)),
		GroupGate:              getInt([]string{"group_gate", "GROUP_GATE"}, DefaultGroupGate),
		DedupCap:               getInt([]string{"dedup_cap", "DEDUP_CAP"}, DefaultDedupCap),
		SimulatorURL:           get([]string{"simulator_url", "SIMULATOR_URL"}, ""),
		SwapExecutorURL:        get([]string{"swap_executor_url", "SWAP_EXECUTOR_URL"}, ""),
		DrainBudget:            getDuration([]string{"drain_budget", "DRAIN_BUDGET"}, DefaultDrainBudget),
		MetricsAddr:            get([]string{"metrics_addr", "METRICS_ADDR"}, ":9090"),
	}

	var err error
	cfg.QuoteAssets, err = parseAddressList(get([]string{"quote_assets", "QUOTE_ASSETS"}, defaultQuoteAssets))
	if err != nil {
		return nil, fmt.Errorf("quote_assets: %w", err)
	}

	cfg.LockerRegistry, err = parseLabeledAddresses(get([]string{"locker_registry", "LOCKER_REGISTRY"}, defaultLockerRegistry))
	if err != nil {
		return nil, fmt.Errorf("locker_registry: %w", err)
	}

	cfg.DangerousSelectors = parseSelectorMap(get([]string{"dangerous_selectors", "DANGEROUS_SELECTORS"}, ""))

	if len(cfg.RPCEndpoints) == 0 {
		return nil, fmt.Errorf("chain_rpc_endpoints must list at least one endpoint")
	}
	if cfg.GroupGate < 0 || cfg.GroupGate > 100 {
		return nil, fmt.Errorf("group_gate must be within [0,100], got %d", cfg.GroupGate)
	}
	if cfg.WorkPoolSize <= 0 {
		return nil, fmt.Errorf("work_pool_size must be positive, got %d", cfg.WorkPoolSize)
	}

	return cfg, nil
}

// Base mainnet quote assets: WETH and native USDC.
const defaultQuoteAssets = "0x4200000000000000000000000000000000000006," +
	"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"

// Known LP lockers on Base.
const defaultLockerRegistry = "0x231278eDd38B00B07fBd52120CEf685B9BaEBCC1=UNCX," +
	"0x71B5759d73262FBb223956913ecF4ecC51057641=PinkLock"

func get(keys []string, def string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return def
}

func getInt(keys []string, def int) int {
	s := get(keys, "")
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n
	}
	return def
}

func getInt64(keys []string, def int64) int64 {
	s := get(keys, "")
	if s == "" {
		return def
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return n
	}
	return def
}

func getDuration(keys []string, def time.Duration) time.Duration {
	s := get(keys, "")
	if s == "" {
		return def
	}
	// Accept both "30s" and a bare number of seconds.
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAddressList(s string) ([]common.Address, error) {
	var out []common.Address
	for _, p := range splitCSV(s) {
		if !common.IsHexAddress(p) {
			return nil, fmt.Errorf("not a hex address: %q", p)
		}
		out = append(out, common.HexToAddress(p))
	}
	return out, nil
}

// parseLabeledAddresses parses "addr=Label,addr=Label" pairs.
func parseLabeledAddresses(s string) (map[common.Address]string, error) {
	out := make(map[common.Address]string)
	for _, p := range splitCSV(s) {
		addr, label, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("expected addr=label, got %q", p)
		}
		addr = strings.TrimSpace(addr)
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("not a hex address: %q", addr)
		}
		out[common.HexToAddress(addr)] = strings.TrimSpace(label)
	}
	return out, nil
}

// parseSelectorMap parses "name=0xdeadbeef" pairs. Invalid entries are
// dropped; the inspector carries built-in defaults for the usual suspects.
func parseSelectorMap(s string) map[string]string {
	out := make(map[string]string)
	for _, p := range splitCSV(s) {
		name, sel, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		sel = strings.TrimSpace(sel)
		if !strings.HasPrefix(sel, "0x") || len(sel) != 10 {
			continue
		}
		out[strings.TrimSpace(name)] = sel
	}
	return out
}
