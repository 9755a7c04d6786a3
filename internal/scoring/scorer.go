package scoring

import (
	"math"

	"base-launch-radar/internal/domain"
)

// Component weights for the overall score.
const (
	weightSocial   = 0.25
	weightViral    = 0.35
	weightSecurity = 0.40
)

// Thresholds used by the group-broadcast gate.
const (
	// DefaultGroupGate is the minimum overall score for group broadcast.
	DefaultGroupGate = 80

	// maxGroupTaxPct is the per-direction tax ceiling for group broadcast.
	maxGroupTaxPct = 10.0

	// lowTaxPct is the per-direction tax bound that earns the tax bonus.
	lowTaxPct = 5.0
)

// Compute derives the four component scores from token metadata, safety
// probes and on-chain statistics. It is a pure function: the same inputs
// always produce the same Score.
func Compute(meta domain.TokenMetadata, safety domain.SafetyProbe, onchain domain.OnChainStats, market domain.MarketSnapshot) domain.Score {
	s := domain.Score{
		Security: securityScore(meta, safety),
		Viral:    viralScore(market),
		Social:   socialScore(market),
	}

	overall := weightSocial*float64(s.Social) +
		weightViral*float64(s.Viral) +
		weightSecurity*float64(s.Security)
	s.Overall = clamp(int(math.Round(overall)))
	s.Risk = domain.TagForOverall(s.Overall)
	if safety.IsHoneypot {
		s.Risk = domain.RiskCritical
	}
	return s
}

// securityScore rewards the four hard safety properties. A 365-day lock on
// top of all four maxes the component out. A honeypot forfeits the whole
// component: none of the other properties matter if holders cannot sell.
func securityScore(meta domain.TokenMetadata, safety domain.SafetyProbe) int {
	if safety.IsHoneypot {
		return 0
	}
	score := 30
	if meta.Renounced {
		score += 30
	}
	if safety.LPLocked {
		score += 25
		score += lockBonus(safety.LPLockDays)
	}
	if safety.BuyTaxPct < lowTaxPct && safety.SellTaxPct < lowTaxPct {
		score += 10
	}
	return clamp(score)
}

func lockBonus(days int) int {
	switch {
	case days >= 365:
		return 5
	case days >= 180:
		return 3
	case days >= 30:
		return 1
	default:
		return 0
	}
}

// viralScore buckets trading activity. Unobservable figures are zero and
// simply earn nothing.
func viralScore(m domain.MarketSnapshot) int {
	score := volumeBucket(m.Volume24hUSD)

	// a small cap with real volume is the classic early-mover setup
	if m.MarketCapUSD > 0 && m.MarketCapUSD < 500_000 {
		switch {
		case m.Volume24hUSD >= 50_000:
			score += 20
		case m.Volume24hUSD >= 10_000:
			score += 10
		}
	}

	switch change := math.Abs(m.PriceChangePct); {
	case change >= 100:
		score += 30
	case change >= 50:
		score += 20
	case change >= 20:
		score += 10
	case change >= 5:
		score += 5
	}

	return clamp(score)
}

func volumeBucket(volume float64) int {
	switch {
	case volume >= 1_000_000:
		return 50
	case volume >= 250_000:
		return 40
	case volume >= 100_000:
		return 30
	case volume >= 25_000:
		return 20
	case volume >= 5_000:
		return 10
	default:
		return 0
	}
}

// socialScore buckets liquidity depth and its relation to market cap.
func socialScore(m domain.MarketSnapshot) int {
	score := liquidityBucket(m.LiquidityUSD)

	if m.MarketCapUSD > 0 {
		switch ratio := m.LiquidityUSD / m.MarketCapUSD; {
		case ratio >= 0.5:
			score += 30
		case ratio >= 0.2:
			score += 20
		case ratio >= 0.05:
			score += 10
		}
	}

	if m.LiquidityUSD > 0 && m.Volume24hUSD > 0 {
		score += 15
	}

	return clamp(score)
}

func liquidityBucket(liquidity float64) int {
	switch {
	case liquidity >= 500_000:
		return 40
	case liquidity >= 100_000:
		return 30
	case liquidity >= 50_000:
		return 20
	case liquidity >= 10_000:
		return 10
	default:
		return 0
	}
}

// GroupEligible decides whether an alert may be broadcast to group channels:
// the overall score must clear the gate and every hard safety constraint
// must pass. Direct subscribers receive alerts regardless.
func GroupEligible(score domain.Score, meta domain.TokenMetadata, safety domain.SafetyProbe, gate int) bool {
	if score.Overall < gate {
		return false
	}
	if safety.IsHoneypot {
		return false
	}
	if safety.BuyTaxPct > maxGroupTaxPct || safety.SellTaxPct > maxGroupTaxPct {
		return false
	}
	if !safety.LPLocked {
		return false
	}
	return meta.Renounced
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
