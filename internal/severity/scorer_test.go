package severity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secint/internal/enrich"
	"secint/internal/feeds"
	"secint/internal/ioc"
)

func fixedScorer(now time.Time) *Scorer {
	return &Scorer{now: func() time.Time { return now }}
}

func TestScoreBareIndicatorIsUnknown(t *testing.T) {
	s := NewScorer()
	got := s.Score(Enriched{Indicator: ioc.Indicator{Value: "1.2.3.4", Type: ioc.TypeIPv4}})

	assert.Equal(t, 0, got.Score)
	assert.Equal(t, ioc.TierUnknown, got.Tier)
	assert.Empty(t, got.Reasons)
}

func TestScoreDetectionRateBands(t *testing.T) {
	s := NewScorer()
	cases := []struct {
		name     string
		detected int
		total    int
		want     int
	}{
		{"above 80 percent", 60, 70, 50},
		{"above 50 percent", 40, 70, 30},
		{"above 20 percent", 20, 70, 15},
		{"at or below 20 percent", 10, 70, 0},
		{"no engine data", 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enr := &enrich.Result{
				Detections: ioc.MakeDetections(tc.detected, tc.total),
			}
			got := s.Score(Enriched{
				Indicator:  ioc.Indicator{Value: "abc", Type: ioc.TypeSHA256},
				Enrichment: enr,
			})
			assert.Equal(t, tc.want, got.Score)
		})
	}
}

func TestScoreMalwareFamilies(t *testing.T) {
	s := NewScorer()
	cases := []struct {
		family string
		want   int
	}{
		{"LockBit 3.0", 40},
		{"RedLine Stealer", 25},
		{"SomethingObscure", 10},
	}
	for _, tc := range cases {
		t.Run(tc.family, func(t *testing.T) {
			got := s.Score(Enriched{Indicator: ioc.Indicator{
				Value:         "abc",
				Type:          ioc.TypeSHA256,
				MalwareFamily: tc.family,
			}})
			assert.Equal(t, tc.want, got.Score)
		})
	}
}

func TestScorePrefersAnalysisLabelOverFeedFamily(t *testing.T) {
	s := NewScorer()
	enr := &enrich.Result{MalwareFamily: "emotet"}
	got := s.Score(Enriched{
		Indicator:  ioc.Indicator{Value: "abc", Type: ioc.TypeSHA256, MalwareFamily: "SomethingObscure"},
		Enrichment: enr,
	})

	assert.Equal(t, 40, got.Score)
	require.Len(t, got.Reasons, 1)
	assert.Contains(t, got.Reasons[0], "emotet")
}

func TestScoreAbuseConfidenceOnlyForIPs(t *testing.T) {
	s := NewScorer()
	enr := &enrich.Result{
		Sources: enrich.SourceSet{
			AbuseIPDB: &feeds.IPReputation{AbuseConfidenceScore: 95},
		},
	}

	ip := s.Score(Enriched{Indicator: ioc.Indicator{Value: "1.2.3.4", Type: ioc.TypeIPv4}, Enrichment: enr})
	dom := s.Score(Enriched{Indicator: ioc.Indicator{Value: "evil.example", Type: ioc.TypeDomain}, Enrichment: enr})

	assert.Equal(t, 30, ip.Score)
	assert.Equal(t, 0, dom.Score)
}

func TestScoreCorroboratedHighConfidenceIP(t *testing.T) {
	// An address flagged by the reputation source at 95% and seen by
	// three sources lands in HIGH.
	s := NewScorer()
	enr := &enrich.Result{
		Sources: enrich.SourceSet{
			AbuseIPDB:  &feeds.IPReputation{AbuseConfidenceScore: 95},
			VirusTotal: &enrich.VirusTotalData{},
			Other:      map[string]map[string]any{"otx": {"pulse_count": 4}},
		},
	}
	got := s.Score(Enriched{
		Indicator:  ioc.Indicator{Value: "45.61.49.78", Type: ioc.TypeIPv4},
		Enrichment: enr,
	})

	assert.Equal(t, 45, got.Score)
	assert.Equal(t, ioc.TierHigh, got.Tier)
	assert.Len(t, got.Reasons, 2)
}

func TestScoreThreatKeywords(t *testing.T) {
	s := NewScorer()
	got := s.Score(Enriched{Indicator: ioc.Indicator{
		Value:      "1.2.3.4",
		Type:       ioc.TypeIPv4,
		ThreatType: "C2",
		Context:    "ransomware botnet infrastructure",
	}})

	assert.Equal(t, 25, got.Score)
	require.Len(t, got.Reasons, 1)
	// At most two matched keywords are named.
	assert.Contains(t, got.Reasons[0], "ransomware")
}

func TestScoreRecency(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	s := fixedScorer(now)

	cases := []struct {
		name      string
		firstSeen time.Time
		want      int
	}{
		{"under 7 days", now.Add(-3 * 24 * time.Hour), 15},
		{"under 30 days", now.Add(-20 * 24 * time.Hour), 10},
		{"older", now.Add(-90 * 24 * time.Hour), 0},
		{"unset", time.Time{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Score(Enriched{Indicator: ioc.Indicator{
				Value:     "1.2.3.4",
				Type:      ioc.TypeIPv4,
				FirstSeen: tc.firstSeen,
			}})
			assert.Equal(t, tc.want, got.Score)
		})
	}
}

func TestScoreMalwareURLFlags(t *testing.T) {
	s := NewScorer()
	got := s.Score(Enriched{Indicator: ioc.Indicator{
		Value:      "http://bad.example/payload.exe",
		Type:       ioc.TypeURL,
		Source:     "URLhaus",
		URLStatus:  "online",
		ThreatType: "malware_download",
	}})

	assert.Equal(t, 35, got.Score)
	assert.Equal(t, ioc.TierMedium, got.Tier)
	assert.Len(t, got.Reasons, 2)
}

func TestScoreNegativeReputation(t *testing.T) {
	s := NewScorer()
	enr := &enrich.Result{
		Sources: enrich.SourceSet{
			VirusTotal: &enrich.VirusTotalData{Reputation: -80},
		},
	}
	got := s.Score(Enriched{Indicator: ioc.Indicator{Value: "1.2.3.4", Type: ioc.TypeIPv4}, Enrichment: enr})

	assert.Equal(t, 20, got.Score)
}

func TestScoreAddingSignalsNeverLowersScore(t *testing.T) {
	s := NewScorer()
	base := Enriched{Indicator: ioc.Indicator{
		Value:  "http://bad.example/x",
		Type:   ioc.TypeURL,
		Source: "URLhaus",
	}}
	before := s.Score(base).Score

	withMore := base
	withMore.Indicator.URLStatus = "online"
	withMore.Indicator.MalwareFamily = "emotet"
	after := s.Score(withMore).Score

	assert.GreaterOrEqual(t, after, before)
}

func TestScoreCriticalStack(t *testing.T) {
	s := NewScorer()
	enr := &enrich.Result{
		Detections:    ioc.MakeDetections(60, 70),
		MalwareFamily: "lockbit",
	}
	got := s.Score(Enriched{
		Indicator:  ioc.Indicator{Value: "abc", Type: ioc.TypeSHA256},
		Enrichment: enr,
	})

	assert.Equal(t, 90, got.Score)
	assert.Equal(t, ioc.TierCritical, got.Tier)
}

func TestFilterHighPriority(t *testing.T) {
	items := []Scored{
		{Assessment: ioc.Assessment{Tier: ioc.TierCritical}},
		{Assessment: ioc.Assessment{Tier: ioc.TierHigh}},
		{Assessment: ioc.Assessment{Tier: ioc.TierMedium}},
		{Assessment: ioc.Assessment{Tier: ioc.TierUnknown}},
	}

	assert.Len(t, FilterCritical(items), 1)
	assert.Len(t, FilterHighPriority(items), 2)
}
