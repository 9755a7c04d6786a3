// Package main is the operator CLI for the launch radar daemon.
//
// Usage:
//
//	radarctl [--addr http://host:9090] status
//	radarctl [--addr ...] recheck <factoryId> <pairAddress>
//	radarctl [--addr ...] enable <factoryId>
//	radarctl [--addr ...] disable <factoryId>
//
// Exit codes: 0 success, 1 invalid arguments or a refused operation,
// 2 upstream unreachable after all fallbacks.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"base-launch-radar/internal/storage/postgres"
)

const (
	exitOK          = 0
	exitUsage       = 1
	exitUnreachable = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	defaultAddr := os.Getenv("RADAR_ADDR")
	if defaultAddr == "" {
		defaultAddr = "http://127.0.0.1:9090"
	}
	addr := flag.String("addr", defaultAddr, "Radar daemon HTTP address")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return exitUsage
	}

	ctl := &ctl{
		addr:   strings.TrimRight(*addr, "/"),
		client: &http.Client{Timeout: *timeout},
	}

	switch args[0] {
	case "status":
		return ctl.status()
	case "recheck":
		if len(args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: radarctl recheck <factoryId> <pairAddress>")
			return exitUsage
		}
		if !common.IsHexAddress(args[2]) {
			fmt.Fprintf(os.Stderr, "not a hex address: %s\n", args[2])
			return exitUsage
		}
		return ctl.recheck(args[1], args[2])
	case "enable":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: radarctl enable <factoryId>")
			return exitUsage
		}
		return ctl.setEnabled(args[1], true)
	case "disable":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: radarctl disable <factoryId>")
			return exitUsage
		}
		return ctl.setEnabled(args[1], false)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `radarctl - operator CLI for the launch radar daemon

Commands:
  status                          Show cursors, queue depth and uptime
  recheck <factoryId> <pair>      Release the dedup key and re-run analysis
  enable <factoryId>              Resume discovery for a factory
  disable <factoryId>             Pause discovery for a factory

Flags:`)
	flag.PrintDefaults()
}

type ctl struct {
	addr   string
	client *http.Client
}

// status asks the daemon first and falls back to reading cursors straight
// from Postgres when the daemon is down.
func (c *ctl) status() int {
	resp, err := c.client.Get(c.addr + "/status")
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			var st struct {
				Status       string            `json:"status"`
				Uptime       string            `json:"uptime"`
				Cursors      map[string]uint64 `json:"cursors"`
				QueueLen     int               `json:"queue_len"`
				DedupTracked int               `json:"dedup_tracked"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
				fmt.Fprintf(os.Stderr, "bad status payload: %v\n", err)
				return exitUnreachable
			}
			fmt.Printf("status:  %s (up %s)\n", st.Status, st.Uptime)
			fmt.Printf("queue:   %d waiting, %d keys tracked\n", st.QueueLen, st.DedupTracked)
			printCursors(st.Cursors)
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "daemon returned HTTP %d\n", resp.StatusCode)
	} else {
		fmt.Fprintf(os.Stderr, "daemon unreachable at %s: %v\n", c.addr, err)
	}

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		return exitUnreachable
	}
	fmt.Fprintln(os.Stderr, "falling back to database cursors")

	ctx, cancel := context.WithTimeout(context.Background(), c.client.Timeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres unreachable: %v\n", err)
		return exitUnreachable
	}
	defer pool.Close()

	cursors, err := postgres.NewDiscoveryStateStore(pool).AllCursors(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cursor read failed: %v\n", err)
		return exitUnreachable
	}
	fmt.Println("status:  daemon down (cursors from database)")
	printCursors(cursors)
	return exitOK
}

func printCursors(cursors map[string]uint64) {
	if len(cursors) == 0 {
		fmt.Println("cursors: none persisted yet")
		return
	}
	ids := make([]string, 0, len(cursors))
	for id := range cursors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Println("cursors:")
	for _, id := range ids {
		fmt.Printf("  %-24s %d\n", id, cursors[id])
	}
}

func (c *ctl) recheck(factoryID, pair string) int {
	q := url.Values{"factory": {factoryID}, "pair": {pair}}
	return c.post("/recheck?"+q.Encode(), func(body []byte) {
		var out struct {
			Rechecking bool `json:"rechecking"`
		}
		_ = json.Unmarshal(body, &out)
		if out.Rechecking {
			fmt.Printf("recheck started for %s on %s\n", pair, factoryID)
		} else {
			fmt.Printf("dedup key released for %s on %s (no archived alert to replay)\n", pair, factoryID)
		}
	})
}

func (c *ctl) setEnabled(factoryID string, enabled bool) int {
	path := "/factories/disable"
	if enabled {
		path = "/factories/enable"
	}
	q := url.Values{"id": {factoryID}}
	return c.post(path+"?"+q.Encode(), func([]byte) {
		fmt.Printf("factory %s enabled=%v\n", factoryID, enabled)
	})
}

func (c *ctl) post(path string, onOK func(body []byte)) int {
	resp, err := c.client.Post(c.addr+path, "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "daemon unreachable at %s: %v\n", c.addr, err)
		return exitUnreachable
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusOK:
		onOK(body)
		return exitOK
	case resp.StatusCode >= 500:
		fmt.Fprintf(os.Stderr, "daemon error: HTTP %d: %s\n", resp.StatusCode, strings.TrimSpace(string(body)))
		return exitUnreachable
	default:
		fmt.Fprintf(os.Stderr, "refused: HTTP %d: %s\n", resp.StatusCode, strings.TrimSpace(string(body)))
		return exitUsage
	}
}
