// Package enrich fans indicator lookups out across the applicable
// external sources and merges whatever subset answers. A source that
// fails, times out or is unconfigured is simply absent from the merged
// result; absence means "not checked", never "checked and clean".
package enrich

import (
	"context"
	"sync"
	"time"

	"secint/internal/feeds"
	"secint/internal/ioc"
)

// IPReputationClient is the reputation provider surface the enricher
// needs.
type IPReputationClient interface {
	IsConfigured() bool
	CheckIP(ctx context.Context, ip string) *feeds.IPReputation
}

// AnalysisClient is the multi-engine analysis provider surface.
type AnalysisClient interface {
	IsConfigured() bool
	CheckFile(ctx context.Context, hash string) *feeds.FileReport
	CheckIP(ctx context.Context, ip string) *feeds.IPReport
}

// VirusTotalData is the merged per-source sub-record for the analysis
// provider, covering both file and address lookups.
type VirusTotalData struct {
	Stats       feeds.AnalysisStats `json:"stats"`
	Reputation  int                 `json:"reputation"`
	Country     string              `json:"country,omitempty"`
	ASOwner     string              `json:"as_owner,omitempty"`
	FileType    string              `json:"file_type,omitempty"`
	FileSize    int64               `json:"file_size,omitempty"`
	ThreatLabel string              `json:"threat_label,omitempty"`
}

// SourceSet holds one optional sub-record per known provider, plus a
// generic fallback for feed-supplied source data that has no typed
// shape. A nil or absent entry means that source was unavailable or
// not applicable.
type SourceSet struct {
	AbuseIPDB  *feeds.IPReputation       `json:"abuseipdb,omitempty"`
	VirusTotal *VirusTotalData           `json:"virustotal,omitempty"`
	Other      map[string]map[string]any `json:"other,omitempty"`
}

// Count reports how many sources corroborated the indicator.
func (s SourceSet) Count() int {
	n := len(s.Other)
	if s.AbuseIPDB != nil {
		n++
	}
	if s.VirusTotal != nil {
		n++
	}
	return n
}

// Result is the merged enrichment for one indicator.
type Result struct {
	Value      string    `json:"value"`
	Type       ioc.Type  `json:"type"`
	EnrichedAt time.Time `json:"enriched_at"`
	Sources    SourceSet `json:"sources"`

	// Derived convenience fields, computed only from present data.
	Detections    ioc.Detections `json:"detections"`
	MalwareFamily string         `json:"malware_family,omitempty"`
}

// AbuseScore returns the reputation confidence when that source was
// checked; nil means unknown, distinct from a known score of zero.
func (r *Result) AbuseScore() *int {
	if r.Sources.AbuseIPDB == nil {
		return nil
	}
	score := r.Sources.AbuseIPDB.AbuseConfidenceScore
	return &score
}

// DetectionRate returns detected/total from the analysis stats, or 0
// when no engine data is present.
func (r *Result) DetectionRate() float64 { return r.Detections.Rate() }

// Shell returns an empty but valid result for value, used when no
// enricher is wired or no source applies to the type.
func Shell(value string, t ioc.Type) *Result {
	return &Result{Value: value, Type: t, EnrichedAt: time.Now().UTC()}
}

// Enricher dispatches lookups by indicator type. It never retries;
// retry policy belongs to the calling pipeline.
type Enricher struct {
	reputation IPReputationClient
	analysis   AnalysisClient
}

func New(reputation IPReputationClient, analysis AnalysisClient) *Enricher {
	return &Enricher{reputation: reputation, analysis: analysis}
}

// Enrich looks value up against every source applicable to its type.
// Types with no applicable source get an empty but valid shell.
func (e *Enricher) Enrich(ctx context.Context, value string, t ioc.Type) *Result {
	result := &Result{Value: value, Type: t, EnrichedAt: time.Now().UTC()}

	switch t {
	case ioc.TypeIPv4:
		e.enrichIP(ctx, value, result)
	case ioc.TypeMD5, ioc.TypeSHA1, ioc.TypeSHA256:
		e.enrichHash(ctx, value, result)
	}
	return result
}

// enrichIP queries both address-capable sources concurrently. Each
// lookup converts its own failure to absence before the join, so the
// merge below never sees an error.
func (e *Enricher) enrichIP(ctx context.Context, ip string, result *Result) {
	var mu sync.Mutex
	var wg sync.WaitGroup

	if e.reputation != nil && e.reputation.IsConfigured() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rep := e.reputation.CheckIP(ctx, ip)
			if rep == nil {
				return
			}
			mu.Lock()
			result.Sources.AbuseIPDB = rep
			mu.Unlock()
		}()
	}

	if e.analysis != nil && e.analysis.IsConfigured() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report := e.analysis.CheckIP(ctx, ip)
			if report == nil {
				return
			}
			mu.Lock()
			result.Sources.VirusTotal = &VirusTotalData{
				Stats:      report.Stats,
				Reputation: report.Reputation,
				Country:    report.Country,
				ASOwner:    report.ASOwner,
			}
			mu.Unlock()
		}()
	}

	wg.Wait()
	e.derive(result)
}

func (e *Enricher) enrichHash(ctx context.Context, hash string, result *Result) {
	if e.analysis == nil || !e.analysis.IsConfigured() {
		return
	}
	report := e.analysis.CheckFile(ctx, hash)
	if report == nil {
		return
	}
	result.Sources.VirusTotal = &VirusTotalData{
		Stats:       report.Stats,
		Reputation:  report.Reputation,
		FileType:    report.FileType,
		FileSize:    report.FileSize,
		ThreatLabel: report.ThreatLabel,
	}
	e.derive(result)
}

// derive computes the convenience fields from whichever sources are
// present.
func (e *Enricher) derive(result *Result) {
	vt := result.Sources.VirusTotal
	if vt == nil {
		return
	}
	if vt.Stats.Total() > 0 {
		result.Detections = ioc.MakeDetections(vt.Stats.Detected(), vt.Stats.Total())
	}
	if vt.ThreatLabel != "" {
		result.MalwareFamily = vt.ThreatLabel
	}
}
