package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"base-launch-radar/internal/chain"
	"base-launch-radar/internal/domain"
)

// TransferTopic is keccak256("Transfer(address,address,uint256)").
var TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// Heuristic thresholds. These values are the behavioral contract of the
// analyzer; downstream scoring depends on them staying put.
const (
	bundleMinBuyers      = 2  // unique buyers per block to call it a bundle
	sniperBlockSpan      = 2  // buys in firstBlock..firstBlock+span are snipes
	airdropMinRecipients = 3  // deployer fan-out per block to call it an airdrop
	bundleRecipients     = 2  // deployer fan-out per block to call it a bundle
	first20Cap           = 20 // distinct buy destinations tracked

	whaleThresholdPct = 2.0
	fishThresholdPct  = 0.5
)

var (
	// ErrNoTransfers means the token has no Transfer history in the window.
	ErrNoTransfers = errors.New("analyzer: no transfer events in window")

	zeroAddr = common.Address{}

	// Excluded from holder statistics: burn sinks and the zero address.
	// The pool itself is excluded separately since it holds the liquidity
	// side of the supply.
	reportingExcluded = map[common.Address]struct{}{
		zeroAddr: {},
		common.HexToAddress("0x000000000000000000000000000000000000dEaD"): {},
		common.HexToAddress("0x0000000000000000000000000000000000000001"): {},
	}
)

// Options configures an Analyzer.
type Options struct {
	Client chain.Client

	// LookbackBlocks bounds the scan window from the tip. Zero means
	// unlimited, which is the right call for freshly launched tokens.
	LookbackBlocks uint64

	Logger *log.Logger
}

// Analyzer reconstructs holder, bundle, sniper, first-20 and deployer
// statistics from a token's Transfer log in a single pass.
type Analyzer struct {
	client   chain.Client
	lookback uint64
	logger   *log.Logger
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	a := &Analyzer{
		client:   opts.Client,
		lookback: opts.LookbackBlocks,
		logger:   opts.Logger,
	}
	if a.logger == nil {
		a.logger = log.New(log.Writer(), "[analyzer] ", log.LstdFlags)
	}
	return a
}

// transfer is one decoded Transfer event.
type transfer struct {
	from   common.Address
	to     common.Address
	amount *big.Int
	block  uint64
	index  uint
}

// Analyze scans the token's Transfer events up to the current tip and
// aggregates them. pair identifies the pool so buys (pair → wallet) can be
// distinguished. totalSupply may be nil, in which case minted-minus-burned
// is used. Rerunning over the same window yields identical output.
func (a *Analyzer) Analyze(ctx context.Context, token, pair common.Address, totalSupply *big.Int) (*domain.OnChainStats, error) {
	tip, err := a.client.LatestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve tip: %w", err)
	}

	var from uint64
	if a.lookback > 0 && tip > a.lookback {
		from = tip - a.lookback
	}

	logs, err := a.client.GetLogs(ctx, from, tip, token, [][]common.Hash{{TransferTopic}})
	if err != nil {
		return nil, fmt.Errorf("fetch transfer log: %w", err)
	}

	transfers := decodeTransfers(logs)
	if len(transfers) == 0 {
		return nil, ErrNoTransfers
	}

	stats := aggregate(transfers, pair, totalSupply)
	stats.LastBlock = tip

	if stats.Deployer.Address != zeroAddr {
		balance, err := a.client.GetBalance(ctx, stats.Deployer.Address)
		if err != nil {
			a.logger.Printf("deployer balance lookup failed for %s: %v", stats.Deployer.Address.Hex(), err)
		} else {
			stats.Deployer.ETHBalance = balance
		}
	}

	return stats, nil
}

// decodeTransfers filters well-formed Transfer events and orders them by
// (block, logIndex) ascending.
func decodeTransfers(logs []types.Log) []transfer {
	out := make([]transfer, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) != 3 || l.Topics[0] != TransferTopic {
			continue
		}
		out = append(out, transfer{
			from:   common.BytesToAddress(l.Topics[1].Bytes()[12:]),
			to:     common.BytesToAddress(l.Topics[2].Bytes()[12:]),
			amount: new(big.Int).SetBytes(l.Data),
			block:  l.BlockNumber,
			index:  l.Index,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].block != out[j].block {
			return out[i].block < out[j].block
		}
		return out[i].index < out[j].index
	})
	return out
}

// aggregate runs the single-pass reconstruction over ordered transfers.
func aggregate(transfers []transfer, pair common.Address, totalSupply *big.Int) *domain.OnChainStats {
	stats := &domain.OnChainStats{FirstBlock: transfers[0].block}

	balances := make(map[common.Address]*big.Int)
	credit := func(addr common.Address, amt *big.Int) {
		b, ok := balances[addr]
		if !ok {
			b = new(big.Int)
			balances[addr] = b
		}
		b.Add(b, amt)
	}
	debit := func(addr common.Address, amt *big.Int) {
		b, ok := balances[addr]
		if !ok {
			b = new(big.Int)
			balances[addr] = b
		}
		b.Sub(b, amt)
	}

	var (
		deployer common.Address

		minted = new(big.Int)
		burned = new(big.Int)

		buyersByBlock    = make(map[uint64]map[common.Address]struct{})
		buyVolumeByBlock = make(map[uint64]*big.Int)
		totalBuyVolume   = new(big.Int)
		firstBuyBlock    = make(map[common.Address]uint64)

		first20Order  []common.Address
		first20Volume = new(big.Int)

		devRecipients = make(map[uint64]map[common.Address]struct{})
		devOutByBlock = make(map[uint64]*big.Int)
		devReceived   = new(big.Int)
		devSent       = new(big.Int)
	)

	for _, t := range transfers {
		credit(t.to, t.amount)
		debit(t.from, t.amount)

		if t.from == zeroAddr {
			minted.Add(minted, t.amount)
			if deployer == zeroAddr && t.to != zeroAddr {
				deployer = t.to
			}
		}
		if _, dead := reportingExcluded[t.to]; dead && t.from != zeroAddr {
			burned.Add(burned, t.amount)
		}

		if t.from == pair && t.to != zeroAddr && t.to != pair {
			block := buyersByBlock[t.block]
			if block == nil {
				block = make(map[common.Address]struct{})
				buyersByBlock[t.block] = block
			}
			block[t.to] = struct{}{}

			vol := buyVolumeByBlock[t.block]
			if vol == nil {
				vol = new(big.Int)
				buyVolumeByBlock[t.block] = vol
			}
			vol.Add(vol, t.amount)
			totalBuyVolume.Add(totalBuyVolume, t.amount)

			if _, seen := firstBuyBlock[t.to]; !seen {
				firstBuyBlock[t.to] = t.block
				if len(first20Order) < first20Cap {
					first20Order = append(first20Order, t.to)
				}
			}
			if buyOrderIndex(first20Order, t.to) >= 0 {
				first20Volume.Add(first20Volume, t.amount)
			}
		}

		if deployer != zeroAddr && t.from == deployer {
			devSent.Add(devSent, t.amount)
			recips := devRecipients[t.block]
			if recips == nil {
				recips = make(map[common.Address]struct{})
				devRecipients[t.block] = recips
			}
			recips[t.to] = struct{}{}
			out := devOutByBlock[t.block]
			if out == nil {
				out = new(big.Int)
				devOutByBlock[t.block] = out
			}
			out.Add(out, t.amount)
		}
		if deployer != zeroAddr && t.to == deployer {
			devReceived.Add(devReceived, t.amount)
		}
	}

	supply := totalSupply
	if supply == nil || supply.Sign() == 0 {
		supply = new(big.Int).Sub(minted, burned)
	}

	// holder stats over positive balances, excluding burn sinks and the pool
	var topBalance *big.Int
	for addr, bal := range balances {
		if bal.Sign() <= 0 || addr == pair {
			continue
		}
		if _, skip := reportingExcluded[addr]; skip {
			continue
		}
		stats.HolderCount++
		if topBalance == nil || bal.Cmp(topBalance) > 0 {
			topBalance = bal
		}
		switch pct := pctOf(bal, supply); {
		case pct >= whaleThresholdPct:
			stats.Classification.Whales++
		case pct >= fishThresholdPct:
			stats.Classification.Fish++
		default:
			stats.Classification.Shrimp++
		}
	}
	if topBalance != nil {
		stats.TopHolderPct = pctOf(topBalance, supply)
	}

	// bundles: blocks with enough unique buyers
	bundleWallets := make(map[common.Address]struct{})
	bundleVolume := new(big.Int)
	for block, buyers := range buyersByBlock {
		if len(buyers) < bundleMinBuyers {
			continue
		}
		stats.BundleCount++
		bundleVolume.Add(bundleVolume, buyVolumeByBlock[block])
		for addr := range buyers {
			bundleWallets[addr] = struct{}{}
		}
	}
	stats.BundleInitialPct = pctOf(bundleVolume, totalBuyVolume)
	stats.BundleCurrentPct = pctOf(balanceSum(balances, bundleWallets), supply)

	// snipers: first buy inside the opening window
	sniperWallets := make(map[common.Address]struct{})
	sniperVolume := new(big.Int)
	sniperLimit := stats.FirstBlock + sniperBlockSpan
	for addr, block := range firstBuyBlock {
		if block <= sniperLimit {
			sniperWallets[addr] = struct{}{}
		}
	}
	for block, vol := range buyVolumeByBlock {
		if block <= sniperLimit {
			sniperVolume.Add(sniperVolume, vol)
		}
	}
	stats.SniperCount = len(sniperWallets)
	stats.SniperInitialPct = pctOf(sniperVolume, totalBuyVolume)
	stats.SniperCurrentPct = pctOf(balanceSum(balances, sniperWallets), supply)

	// first 20 distinct buyers
	stats.First20.Buyers = len(first20Order)
	stats.First20.InitialPct = pctOf(first20Volume, supply)
	for _, addr := range first20Order {
		if len(buyersByBlock[firstBuyBlock[addr]]) >= bundleMinBuyers {
			stats.First20.BundledInFirst20++
		}
	}

	// deployer behavior
	stats.Deployer.Address = deployer
	if deployer != zeroAddr {
		if bal, ok := balances[deployer]; ok && bal.Sign() > 0 {
			stats.Deployer.HoldingPct = pctOf(bal, supply)
		}
		airdropVolume := new(big.Int)
		bundledVolume := new(big.Int)
		for block, recips := range devRecipients {
			switch {
			case len(recips) >= airdropMinRecipients:
				airdropVolume.Add(airdropVolume, devOutByBlock[block])
			case len(recips) == bundleRecipients:
				bundledVolume.Add(bundledVolume, devOutByBlock[block])
			}
		}
		stats.Deployer.AirdropPct = pctOf(airdropVolume, supply)
		stats.Deployer.BundledPct = pctOf(bundledVolume, supply)
		stats.Deployer.SoldPct = pctOf(devSent, devReceived)
	}

	return stats
}

// buyOrderIndex reports addr's position in the first-20 list, or -1.
func buyOrderIndex(order []common.Address, addr common.Address) int {
	for i, a := range order {
		if a == addr {
			return i
		}
	}
	return -1
}

// balanceSum totals the final balances of a wallet set, ignoring negatives.
func balanceSum(balances map[common.Address]*big.Int, wallets map[common.Address]struct{}) *big.Int {
	sum := new(big.Int)
	for addr := range wallets {
		if bal, ok := balances[addr]; ok && bal.Sign() > 0 {
			sum.Add(sum, bal)
		}
	}
	return sum
}

// pctOf returns part/whole as a percentage; zero when whole is empty.
func pctOf(part, whole *big.Int) float64 {
	if part == nil || whole == nil || whole.Sign() <= 0 {
		return 0
	}
	ratio, _ := new(big.Float).Quo(
		new(big.Float).SetInt(part),
		new(big.Float).SetInt(whole),
	).Float64()
	return ratio * 100
}
