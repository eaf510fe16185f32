// Package severity turns an enriched indicator into a numeric score,
// a tier and a replayable list of reasons. Rules are additive and
// independent; a missing signal contributes zero, never an error.
package severity

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"secint/internal/enrich"
	"secint/internal/ioc"
)

// Malware families that indicate hands-on-keyboard or ransomware
// operations.
var criticalFamilies = []string{
	"emotet", "trickbot", "ryuk", "ransomware", "wannacry",
	"lockbit", "conti", "revil", "sodinokibi", "blackmatter",
	"darkside", "ragnar", "maze", "egregor", "netwalker",
	"dridex", "qbot", "qakbot", "icedid", "cobalt strike",
	"metasploit", "mimikatz", "lazarus", "apt28", "apt29",
}

// Commodity stealer and RAT families.
var highRiskFamilies = []string{
	"gozi", "ursnif", "zeus", "formbook", "agent tesla",
	"lokibot", "njrat", "remcos", "nanocore", "asyncrat",
	"redline", "vidar", "raccoon", "azorult", "baldr",
	"netwire", "warzone", "darkcomet", "poison ivy",
}

// Keywords in feed context that mark a critical threat class.
var criticalThreatTypes = []string{
	"ransomware", "c2", "command and control", "botnet",
	"apt", "advanced persistent threat", "0day", "zero-day",
	"exploit kit", "cryptominer",
}

// Enriched pairs an indicator with its enrichment for scoring.
type Enriched struct {
	Indicator  ioc.Indicator
	Enrichment *enrich.Result
}

// Scored is an Enriched with its computed assessment attached.
type Scored struct {
	Enriched
	Assessment ioc.Assessment
}

// Scorer evaluates the severity rule table. The zero value is usable;
// now is overridable for tests.
type Scorer struct {
	now func() time.Time
}

func NewScorer() *Scorer { return &Scorer{now: time.Now} }

// Score evaluates every rule against e and sums the triggered
// weights. Rules are independent, so evaluation order only fixes the
// order of the reasons list, not the score.
func (s *Scorer) Score(e Enriched) ioc.Assessment {
	score := 0
	var reasons []string
	add := func(weight int, reason string) {
		score += weight
		reasons = append(reasons, reason)
	}

	ind := e.Indicator
	enr := e.Enrichment

	// Engine detection rate.
	if enr != nil {
		rate := enr.DetectionRate()
		switch {
		case rate > 0.8:
			add(50, fmt.Sprintf("VT detection: %s (>80%%)", enr.Detections))
		case rate > 0.5:
			add(30, fmt.Sprintf("VT detection: %s (>50%%)", enr.Detections))
		case rate > 0.2:
			add(15, fmt.Sprintf("VT detection: %s (>20%%)", enr.Detections))
		}
	}

	// Malware family, preferring the analysis provider's label over
	// the feed's.
	family := ""
	if enr != nil {
		family = enr.MalwareFamily
	}
	if family == "" {
		family = ind.MalwareFamily
	}
	if family != "" {
		lower := strings.ToLower(family)
		switch {
		case containsAny(lower, criticalFamilies):
			add(40, "Critical malware: "+lower)
		case containsAny(lower, highRiskFamilies):
			add(25, "High-risk malware: "+lower)
		default:
			add(10, "Known malware: "+lower)
		}
	}

	// Reputation confidence, IP indicators only.
	if ind.Type == ioc.TypeIPv4 && enr != nil && enr.Sources.AbuseIPDB != nil {
		conf := enr.Sources.AbuseIPDB.AbuseConfidenceScore
		switch {
		case conf > 90:
			add(30, fmt.Sprintf("AbuseIPDB confidence: %d%% (>90%%)", conf))
		case conf > 70:
			add(20, fmt.Sprintf("AbuseIPDB confidence: %d%% (>70%%)", conf))
		case conf > 50:
			add(10, fmt.Sprintf("AbuseIPDB confidence: %d%% (>50%%)", conf))
		}
	}

	// Critical threat keywords in feed context.
	combined := strings.ToLower(ind.Context + " " + ind.ThreatType + " " + ind.Description)
	if matched := matchAll(combined, criticalThreatTypes); len(matched) > 0 {
		if len(matched) > 2 {
			matched = matched[:2]
		}
		add(25, "Critical threat type: "+strings.Join(matched, ", "))
	}

	// Recency of first sighting.
	if !ind.FirstSeen.IsZero() {
		age := s.now().Sub(ind.FirstSeen)
		switch {
		case age < 7*24*time.Hour:
			add(15, "Recent threat (<7 days)")
		case age < 30*24*time.Hour:
			add(10, "Recent threat (<30 days)")
		}
	}

	// Malware URL feed flags.
	if strings.EqualFold(ind.Source, "urlhaus") {
		if strings.EqualFold(ind.URLStatus, "online") {
			add(20, "Active malware URL (online)")
		}
		if strings.Contains(strings.ToLower(ind.ThreatType), "malware_download") {
			add(15, "Confirmed malware distribution")
		}
	}

	// Strongly negative aggregate reputation.
	if enr != nil && enr.Sources.VirusTotal != nil && enr.Sources.VirusTotal.Reputation < -50 {
		add(20, fmt.Sprintf("Negative VT reputation: %d", enr.Sources.VirusTotal.Reputation))
	}

	// Corroboration across independent sources.
	if enr != nil {
		switch n := enr.Sources.Count(); {
		case n >= 3:
			add(15, fmt.Sprintf("Confirmed by %d sources", n))
		case n >= 2:
			add(10, fmt.Sprintf("Confirmed by %d sources", n))
		}
	}

	return ioc.Assessment{Score: score, Tier: ioc.TierForScore(score), Reasons: reasons}
}

// ScoreBatch scores every element, preserving input order.
func (s *Scorer) ScoreBatch(items []Enriched) []Scored {
	scored := make([]Scored, 0, len(items))
	for _, e := range items {
		scored = append(scored, Scored{Enriched: e, Assessment: s.Score(e)})
	}

	dist := make(map[ioc.Tier]int)
	for _, sc := range scored {
		dist[sc.Assessment.Tier]++
	}
	slog.Info("scored indicators", "count", len(scored), "distribution", dist)

	return scored
}

// FilterCritical keeps only CRITICAL results.
func FilterCritical(items []Scored) []Scored {
	var out []Scored
	for _, sc := range items {
		if sc.Assessment.Tier == ioc.TierCritical {
			out = append(out, sc)
		}
	}
	return out
}

// FilterHighPriority keeps CRITICAL and HIGH results.
func FilterHighPriority(items []Scored) []Scored {
	var out []Scored
	for _, sc := range items {
		if sc.Assessment.Tier == ioc.TierCritical || sc.Assessment.Tier == ioc.TierHigh {
			out = append(out, sc)
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func matchAll(s string, needles []string) []string {
	var matched []string
	for _, n := range needles {
		if strings.Contains(s, n) {
			matched = append(matched, n)
		}
	}
	return matched
}
