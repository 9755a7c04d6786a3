package domain

// ProbeConfidence qualifies a probe result that could not be fully verified.
type ProbeConfidence string

const (
	ConfidenceHigh    ProbeConfidence = "high"
	ConfidenceLow     ProbeConfidence = "low"
	ConfidenceUnknown ProbeConfidence = "unknown"
)

// SafetyProbe aggregates the three independent safety probes.
// A probe that timed out contributes ConfidenceUnknown instead of blocking
// the pipeline.
type SafetyProbe struct {
	IsHoneypot     bool
	HoneypotSusp   bool // trial transfer succeeded but with pathological gas
	HoneypotConf   ProbeConfidence
	BuyTaxPct      float64
	SellTaxPct     float64
	TransferTaxPct float64
	TaxConf        ProbeConfidence
	LPLocked       bool
	LPLockDays     int    // 0 when the locker exposes no expiry view
	LockerLabel    string // human label of the locker holding the LP
	LockConf       ProbeConfidence
}

// Inconclusive reports whether any probe could not reach a verdict.
// Group broadcast is suppressed for inconclusive alerts.
func (s SafetyProbe) Inconclusive() bool {
	return s.HoneypotConf == ConfidenceUnknown ||
		s.TaxConf == ConfidenceUnknown ||
		s.LockConf == ConfidenceUnknown
}
