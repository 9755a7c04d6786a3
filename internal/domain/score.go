package domain

// RiskTag is the coarse label derived from the overall score.
type RiskTag string

const (
	RiskSafe     RiskTag = "safe"     // overall ≥ 80
	RiskMedium   RiskTag = "medium"   // overall ≥ 60
	RiskRisky    RiskTag = "risky"    // overall ≥ 40
	RiskCritical RiskTag = "critical" // otherwise
)

// String returns the string representation of the tag.
func (r RiskTag) String() string {
	return string(r)
}

// Score holds the four component scores, each clamped to [0, 100].
type Score struct {
	Social   int
	Viral    int
	Security int
	Overall  int
	Risk     RiskTag
}

// TagForOverall maps an overall score to its risk tag.
func TagForOverall(overall int) RiskTag {
	switch {
	case overall >= 80:
		return RiskSafe
	case overall >= 60:
		return RiskMedium
	case overall >= 40:
		return RiskRisky
	default:
		return RiskCritical
	}
}
