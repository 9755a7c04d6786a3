package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"base-launch-radar/internal/domain"
)

func cleanMeta() domain.TokenMetadata {
	return domain.TokenMetadata{Renounced: true}
}

func cleanSafety() domain.SafetyProbe {
	return domain.SafetyProbe{
		IsHoneypot: false,
		BuyTaxPct:  1,
		SellTaxPct: 1,
		LPLocked:   true,
		LPLockDays: 365,
	}
}

func TestSecurityScore_AllGreenMaxesOut(t *testing.T) {
	s := Compute(cleanMeta(), cleanSafety(), domain.OnChainStats{}, domain.MarketSnapshot{})
	assert.Equal(t, 100, s.Security)
}

func TestSecurityScore_Components(t *testing.T) {
	tests := []struct {
		name   string
		meta   domain.TokenMetadata
		safety domain.SafetyProbe
		want   int
	}{
		{"honeypot forfeits everything", cleanMeta(), domain.SafetyProbe{IsHoneypot: true, LPLocked: true, LPLockDays: 365, BuyTaxPct: 1, SellTaxPct: 1}, 0},
		{"sellable baseline", domain.TokenMetadata{}, domain.SafetyProbe{BuyTaxPct: 20}, 30},
		{"renounced", domain.TokenMetadata{Renounced: true}, domain.SafetyProbe{BuyTaxPct: 20}, 60},
		{"locked no bonus", domain.TokenMetadata{}, domain.SafetyProbe{LPLocked: true, BuyTaxPct: 20}, 55},
		{"locked 180d bonus", domain.TokenMetadata{}, domain.SafetyProbe{LPLocked: true, LPLockDays: 200, BuyTaxPct: 20}, 58},
		{"low taxes", domain.TokenMetadata{}, domain.SafetyProbe{BuyTaxPct: 2, SellTaxPct: 4}, 40},
		{"one-sided high tax loses bonus", domain.TokenMetadata{}, domain.SafetyProbe{BuyTaxPct: 2, SellTaxPct: 9}, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, securityScore(tt.meta, tt.safety))
		})
	}
}

func TestHoneypot_ForcesCriticalTag(t *testing.T) {
	hp := cleanSafety()
	hp.IsHoneypot = true
	// market figures good enough to clear 40 points on their own
	market := domain.MarketSnapshot{LiquidityUSD: 600_000, Volume24hUSD: 2_000_000, MarketCapUSD: 1_100_000, PriceChangePct: 120}

	s := Compute(cleanMeta(), hp, domain.OnChainStats{}, market)
	assert.Zero(t, s.Security)
	assert.Equal(t, domain.RiskCritical, s.Risk)
}

func TestOverall_WeightsAndRounding(t *testing.T) {
	// security 100, viral 0, social 0 → round(40.0) = 40
	s := Compute(cleanMeta(), cleanSafety(), domain.OnChainStats{}, domain.MarketSnapshot{})
	assert.Equal(t, 40, s.Overall)
	assert.Equal(t, domain.RiskRisky, s.Risk)
}

func TestOverall_AlwaysInBounds(t *testing.T) {
	markets := []domain.MarketSnapshot{
		{},
		{LiquidityUSD: 1e9, Volume24hUSD: 1e9, MarketCapUSD: 1, PriceChangePct: 10_000},
		{LiquidityUSD: -5, Volume24hUSD: -5, MarketCapUSD: -5, PriceChangePct: -10_000},
	}
	for _, m := range markets {
		s := Compute(cleanMeta(), cleanSafety(), domain.OnChainStats{}, m)
		assert.GreaterOrEqual(t, s.Overall, 0)
		assert.LessOrEqual(t, s.Overall, 100)
		assert.GreaterOrEqual(t, s.Viral, 0)
		assert.LessOrEqual(t, s.Viral, 100)
		assert.GreaterOrEqual(t, s.Social, 0)
		assert.LessOrEqual(t, s.Social, 100)
	}
}

func TestRiskTags(t *testing.T) {
	assert.Equal(t, domain.RiskSafe, domain.TagForOverall(80))
	assert.Equal(t, domain.RiskMedium, domain.TagForOverall(79))
	assert.Equal(t, domain.RiskMedium, domain.TagForOverall(60))
	assert.Equal(t, domain.RiskRisky, domain.TagForOverall(59))
	assert.Equal(t, domain.RiskRisky, domain.TagForOverall(40))
	assert.Equal(t, domain.RiskCritical, domain.TagForOverall(39))
	assert.Equal(t, domain.RiskCritical, domain.TagForOverall(0))
}

func TestGroupEligible_RequiresEveryConstraint(t *testing.T) {
	meta := cleanMeta()
	safety := cleanSafety()
	score := domain.Score{Overall: 85}

	assert.True(t, GroupEligible(score, meta, safety, DefaultGroupGate))

	low := score
	low.Overall = 79
	assert.False(t, GroupEligible(low, meta, safety, DefaultGroupGate))

	hp := safety
	hp.IsHoneypot = true
	assert.False(t, GroupEligible(score, meta, hp, DefaultGroupGate))

	taxed := safety
	taxed.SellTaxPct = 11
	assert.False(t, GroupEligible(score, meta, taxed, DefaultGroupGate))

	unlocked := safety
	unlocked.LPLocked = false
	assert.False(t, GroupEligible(score, meta, unlocked, DefaultGroupGate))

	owned := meta
	owned.Renounced = false
	assert.False(t, GroupEligible(score, owned, safety, DefaultGroupGate))
}

func TestGroupEligible_GateMonotonic(t *testing.T) {
	meta := cleanMeta()
	safety := cleanSafety()
	// raising the gate can only flip eligibility from true to false
	prev := true
	for gate := 0; gate <= 100; gate++ {
		now := GroupEligible(domain.Score{Overall: 70}, meta, safety, gate)
		if !prev {
			assert.False(t, now, "gate %d", gate)
		}
		prev = now
	}
}

func TestViralScore_Buckets(t *testing.T) {
	assert.Equal(t, 0, viralScore(domain.MarketSnapshot{}))
	assert.Equal(t, 10, viralScore(domain.MarketSnapshot{Volume24hUSD: 6_000}))
	assert.Equal(t, 50, viralScore(domain.MarketSnapshot{Volume24hUSD: 2_000_000}))
	// small cap with strong volume picks up the early-mover bonus
	assert.Equal(t, 40, viralScore(domain.MarketSnapshot{Volume24hUSD: 60_000, MarketCapUSD: 300_000}))
	// price swing magnitude counts, direction does not
	up := viralScore(domain.MarketSnapshot{PriceChangePct: 60})
	down := viralScore(domain.MarketSnapshot{PriceChangePct: -60})
	assert.Equal(t, up, down)
	assert.Equal(t, 20, up)
}

func TestSocialScore_Buckets(t *testing.T) {
	assert.Equal(t, 0, socialScore(domain.MarketSnapshot{}))
	assert.Equal(t, 30, socialScore(domain.MarketSnapshot{LiquidityUSD: 150_000}))
	// deep liquidity against a small cap plus live volume stacks bonuses
	s := socialScore(domain.MarketSnapshot{LiquidityUSD: 150_000, MarketCapUSD: 200_000, Volume24hUSD: 1_000})
	assert.Equal(t, 30+30+15, s)
}
