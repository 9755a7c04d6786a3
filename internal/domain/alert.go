package domain

// MarketSnapshot carries the externally observed market figures used by the
// viral and social score components. Zero values mean "not observable".
type MarketSnapshot struct {
	LiquidityUSD   float64
	Volume24hUSD   float64
	MarketCapUSD   float64
	PriceChangePct float64
}

// Alert is the finished product of one candidate's analysis.
// Constructed once by the dispatcher and immutable thereafter.
type Alert struct {
	AlertID   string // deterministic hash, see idhash.ComputeAlertID
	Pair      PairCandidate
	Meta      TokenMetadata
	Safety    SafetyProbe
	OnChain   OnChainStats
	Market    MarketSnapshot
	Score     Score
	CreatedAt int64 // Unix milliseconds
}
