package ioc

// Tier is the coarse severity bucket derived from a numeric score.
type Tier string

const (
	TierCritical Tier = "CRITICAL"
	TierHigh     Tier = "HIGH"
	TierMedium   Tier = "MEDIUM"
	TierLow      Tier = "LOW"
	TierUnknown  Tier = "UNKNOWN"
)

// TierForScore maps a score onto its tier. The mapping is a monotonic
// step function: a higher score never yields a lower tier.
func TierForScore(score int) Tier {
	switch {
	case score >= 70:
		return TierCritical
	case score >= 45:
		return TierHigh
	case score >= 20:
		return TierMedium
	case score > 0:
		return TierLow
	default:
		return TierUnknown
	}
}

// Assessment is the result of severity scoring. Reasons replay, in
// rule-evaluation order, every signal that contributed to Score.
type Assessment struct {
	Score   int      `json:"severity_score"`
	Tier    Tier     `json:"severity"`
	Reasons []string `json:"severity_reasons"`
}
