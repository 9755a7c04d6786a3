package probe

import (
	"context"
	"errors"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"base-launch-radar/internal/chain"
	"base-launch-radar/internal/domain"
)

const (
	// DefaultGasThreshold marks a trial transfer as suspicious when it
	// succeeds but burns pathological amounts of gas.
	DefaultGasThreshold = 500_000

	// DefaultProbeTimeout bounds each of the three sub-probes. A probe
	// that runs over reports ConfidenceUnknown instead of blocking.
	DefaultProbeTimeout = 10 * time.Second
)

var (
	selTransfer    = probeSel("transfer(address,uint256)")
	selBalanceOf   = probeSel("balanceOf(address)")
	selTotalSupply = probeSel("totalSupply()")

	// Lock-expiry views tried in order against a locker contract. Most
	// lockers expose one of these; none answering just leaves LPLockDays 0.
	lockExpirySels = [][]byte{
		probeSel("getUnlockTime(address)"),
		probeSel("unlockTime(address)"),
	}

	// probeSink receives the trial transfer. Any non-special address works;
	// a fixed one keeps gas estimates comparable across tokens.
	probeSink = common.HexToAddress("0x000000000000000000000000000000000000bEEF")

	// LP held by burn addresses is as good as locked forever.
	burnLockers = map[common.Address]string{
		common.HexToAddress("0x0000000000000000000000000000000000000000"): "burned",
		common.HexToAddress("0x000000000000000000000000000000000000dEaD"): "burned",
	}
)

func probeSel(sig string) []byte {
	h := crypto.Keccak256([]byte(sig))
	return h[:4]
}

// Options configures a Prober.
type Options struct {
	Client chain.Client

	// Simulator, when set, runs buy+sell in an external fork and is
	// preferred over the local gas-estimate heuristic.
	Simulator SwapSimulator

	// Lockers maps known locker contract addresses to human labels.
	Lockers map[common.Address]string

	// GasThreshold above which a successful trial transfer is flagged
	// suspicious. Zero means DefaultGasThreshold.
	GasThreshold uint64

	// Timeout bounds each sub-probe. Zero means DefaultProbeTimeout.
	Timeout time.Duration

	Logger *log.Logger
}

// Prober answers the three safety questions about a freshly discovered pair:
// can holders sell, what do swaps cost in taxes, and is the liquidity locked.
type Prober struct {
	client       chain.Client
	sim          SwapSimulator
	lockers      map[common.Address]string
	gasThreshold uint64
	timeout      time.Duration
	logger       *log.Logger
}

// NewProber creates a prober from options, filling in defaults.
func NewProber(opts Options) *Prober {
	p := &Prober{
		client:       opts.Client,
		sim:          opts.Simulator,
		lockers:      opts.Lockers,
		gasThreshold: opts.GasThreshold,
		timeout:      opts.Timeout,
		logger:       opts.Logger,
	}
	if p.gasThreshold == 0 {
		p.gasThreshold = DefaultGasThreshold
	}
	if p.timeout == 0 {
		p.timeout = DefaultProbeTimeout
	}
	if p.logger == nil {
		p.logger = log.New(log.Writer(), "[probe] ", log.LstdFlags)
	}
	return p
}

// probeAmount is the notional used for simulated swaps: 0.01 units of an
// 18-decimals quote asset, small enough not to move a fresh pool.
var probeAmount = big.NewInt(10_000_000_000_000_000)

// Probe runs all three sub-probes. Each is independently bounded by the
// configured timeout; one timing out degrades its fields to
// ConfidenceUnknown without failing the others.
func (p *Prober) Probe(ctx context.Context, token, pair, quote common.Address) domain.SafetyProbe {
	var out domain.SafetyProbe

	simResult := p.simulate(ctx, token, quote)

	p.probeHoneypot(ctx, &out, token, pair, simResult)
	p.probeTaxes(&out, simResult)
	p.probeLPLock(ctx, &out, pair)

	return out
}

// simulate runs the external buy+sell once and shares the result between the
// honeypot and tax probes. Returns nil when no simulator is configured or
// the simulation failed.
func (p *Prober) simulate(ctx context.Context, token, quote common.Address) *SwapSimResult {
	if p.sim == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.sim.SimulateBuySell(ctx, token, quote, probeAmount)
	if err != nil {
		p.logger.Printf("simulation failed for %s: %v", token.Hex(), err)
		return nil
	}
	return result
}

func (p *Prober) probeHoneypot(ctx context.Context, out *domain.SafetyProbe, token, pair common.Address, sim *SwapSimResult) {
	if sim != nil {
		out.IsHoneypot = sim.SellReverted
		out.HoneypotConf = domain.ConfidenceHigh
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Trial transfer of one base unit from the pair, which always holds
	// tokens after launch. A blanket transfer block reverts here.
	data := make([]byte, 0, 4+64)
	data = append(data, selTransfer...)
	data = append(data, common.LeftPadBytes(probeSink.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(big.NewInt(1).Bytes(), 32)...)

	gas, err := p.client.EstimateGas(ctx, ethereum.CallMsg{
		From: pair,
		To:   &token,
		Data: data,
	})
	switch {
	case err == nil:
		out.IsHoneypot = false
		out.HoneypotSusp = gas > p.gasThreshold
		out.HoneypotConf = domain.ConfidenceHigh
	case isRevert(err):
		out.IsHoneypot = true
		out.HoneypotConf = domain.ConfidenceHigh
	default:
		// transport trouble, not a contract verdict
		p.logger.Printf("honeypot probe inconclusive for %s: %v", token.Hex(), err)
		out.HoneypotConf = domain.ConfidenceUnknown
	}
}

func (p *Prober) probeTaxes(out *domain.SafetyProbe, sim *SwapSimResult) {
	if sim == nil {
		// Fee-on-transfer cannot be measured without executing swaps.
		out.BuyTaxPct = 0
		out.SellTaxPct = 0
		out.TransferTaxPct = 0
		out.TaxConf = domain.ConfidenceLow
		return
	}

	out.BuyTaxPct = taxPct(sim.BuyExpected, sim.BuyReceived)
	out.SellTaxPct = taxPct(sim.SellExpected, sim.SellReceived)
	out.TaxConf = domain.ConfidenceHigh
}

// taxPct computes 1 - received/expected as a percentage, clamped to [0, 100].
func taxPct(expected, received *big.Int) float64 {
	if expected == nil || received == nil || expected.Sign() <= 0 {
		return 0
	}
	ratio, _ := new(big.Float).Quo(
		new(big.Float).SetInt(received),
		new(big.Float).SetInt(expected),
	).Float64()
	pct := (1 - ratio) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func (p *Prober) probeLPLock(ctx context.Context, out *domain.SafetyProbe, pair common.Address) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	supply, err := p.lpCall(ctx, pair, selTotalSupply, nil)
	if err != nil {
		p.logger.Printf("lp lock probe inconclusive for %s: %v", pair.Hex(), err)
		out.LockConf = domain.ConfidenceUnknown
		return
	}
	if supply.Sign() == 0 {
		out.LPLocked = false
		out.LockConf = domain.ConfidenceHigh
		return
	}

	half := new(big.Int).Rsh(supply, 1)

	for _, l := range p.allLockers() {
		balance, err := p.lpCall(ctx, pair, selBalanceOf, l.addr.Bytes())
		if err != nil {
			if ctx.Err() != nil {
				out.LockConf = domain.ConfidenceUnknown
				return
			}
			continue
		}
		if balance.Cmp(half) <= 0 {
			continue
		}

		out.LPLocked = true
		out.LockerLabel = l.label
		out.LockConf = domain.ConfidenceHigh
		if l.label != "burned" {
			out.LPLockDays = p.lockDays(ctx, l.addr, pair)
		}
		return
	}

	out.LPLocked = false
	out.LockConf = domain.ConfidenceHigh
}

type lockerEntry struct {
	addr  common.Address
	label string
}

// allLockers lists registry lockers before burn addresses so a named lock
// wins the label when both hold LP.
func (p *Prober) allLockers() []lockerEntry {
	all := make([]lockerEntry, 0, len(p.lockers)+len(burnLockers))
	for addr, label := range p.lockers {
		all = append(all, lockerEntry{addr: addr, label: label})
	}
	for addr, label := range burnLockers {
		all = append(all, lockerEntry{addr: addr, label: label})
	}
	return all
}

// lockDays asks the locker for the unlock timestamp of the pair's LP.
// Lockers that expose no expiry view leave the result at zero.
func (p *Prober) lockDays(ctx context.Context, locker, pair common.Address) int {
	for _, sel := range lockExpirySels {
		data := make([]byte, 0, 4+32)
		data = append(data, sel...)
		data = append(data, common.LeftPadBytes(pair.Bytes(), 32)...)

		ret, err := p.client.Call(ctx, ethereum.CallMsg{To: &locker, Data: data})
		if err != nil || len(ret) < 32 {
			continue
		}
		unlock := new(big.Int).SetBytes(ret[:32])
		if !unlock.IsInt64() {
			continue
		}
		remaining := unlock.Int64() - time.Now().Unix()
		if remaining <= 0 {
			return 0
		}
		return int(remaining / 86_400)
	}
	return 0
}

func (p *Prober) lpCall(ctx context.Context, pair common.Address, sel []byte, arg []byte) (*big.Int, error) {
	data := make([]byte, 0, 4+32)
	data = append(data, sel...)
	if arg != nil {
		data = append(data, common.LeftPadBytes(arg, 32)...)
	}
	ret, err := p.client.Call(ctx, ethereum.CallMsg{To: &pair, Data: data})
	if err != nil {
		return nil, err
	}
	if len(ret) < 32 {
		return nil, errors.New("short return")
	}
	return new(big.Int).SetBytes(ret[:32]), nil
}

// isRevert distinguishes a contract rejecting the call from the transport
// failing to deliver it.
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "revert") ||
		strings.Contains(msg, "always failing transaction")
}
