package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/willf/bloom"

	"secint/internal/enrich"
	"secint/internal/feeds"
	"secint/internal/ioc"
	"secint/internal/metrics"
	"secint/internal/severity"
)

// ErrAlreadyRunning is returned by RunFull when an ingestion cycle is
// still in flight.
var ErrAlreadyRunning = errors.New("ingestion already running")

// PulseFeed supplies pulse batches. A nil slice means the feed was
// unavailable for this call.
type PulseFeed interface {
	FetchPulses(ctx context.Context, limit int) []feeds.Pulse
}

// MalwareFeed supplies recent malware URLs and payload records.
type MalwareFeed interface {
	FetchRecentURLs(ctx context.Context, limit int) []feeds.MalwareURL
	FetchRecentPayloads(ctx context.Context, limit int) []feeds.Payload
}

// IndicatorEnricher gathers external context for a single indicator.
type IndicatorEnricher interface {
	Enrich(ctx context.Context, value string, t ioc.Type) *enrich.Result
}

// Limits caps how many items each feed contributes per cycle.
type Limits struct {
	Pulses   int
	URLs     int
	Payloads int
}

// DefaultLimits mirrors the per-feed caps used by the scheduled loader.
var DefaultLimits = Limits{Pulses: 50, URLs: 100, Payloads: 100}

// Stats is a snapshot of one ingestion cycle.
type Stats struct {
	Pulses   int `json:"otx_pulses"`
	URLs     int `json:"urlhaus_urls"`
	Payloads int `json:"urlhaus_payloads"`
	Stored   int `json:"iocs_stored"`
	Enriched int `json:"iocs_enriched"`
	Failed   int `json:"failed_stores"`
}

// otxTypeMap translates the pulse feed's indicator vocabulary into
// ours. Unmapped types are dropped.
var otxTypeMap = map[string]ioc.Type{
	"ipv4":            ioc.TypeIPv4,
	"ipv6":            ioc.TypeIPv4,
	"domain":          ioc.TypeDomain,
	"hostname":        ioc.TypeDomain,
	"url":             ioc.TypeURL,
	"filehash-md5":    ioc.TypeMD5,
	"filehash-sha1":   ioc.TypeSHA1,
	"filehash-sha256": ioc.TypeSHA256,
	"cve":             ioc.TypeCVE,
	"email":           ioc.TypeEmail,
}

// Pipeline drives the fetch, enrich, score, store cycle. One cycle at
// a time; concurrent triggers are rejected.
type Pipeline struct {
	store    Store
	enricher IndicatorEnricher
	scorer   *severity.Scorer
	pulses   PulseFeed
	malware  MalwareFeed
	log      *slog.Logger

	// seen is a negative cache over stored values. A miss proves the
	// value is new and saves the store lookup; a hit proves nothing.
	seen *bloom.BloomFilter

	running atomic.Bool

	mu    sync.Mutex
	stats Stats

	now func() time.Time
}

func NewPipeline(store Store, enricher IndicatorEnricher, scorer *severity.Scorer, pulses PulseFeed, malware MalwareFeed, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		store:    store,
		enricher: enricher,
		scorer:   scorer,
		pulses:   pulses,
		malware:  malware,
		log:      log,
		seen:     bloom.NewWithEstimates(100_000, 0.001),
		now:      time.Now,
	}
}

// StoreIndicator runs one indicator through enrich, score and store.
// It reports whether a new record was inserted. Re-ingesting a known
// value returns false with no error; only storage failures surface.
func (p *Pipeline) StoreIndicator(ctx context.Context, ind ioc.Indicator) (bool, error) {
	if ind.Value == "" {
		return false, nil
	}

	if p.seen.TestString(ind.Value) {
		existing, err := p.store.FindByValue(ctx, ind.Value)
		if err != nil {
			return false, fmt.Errorf("lookup %s: %w", ind.Value, err)
		}
		if existing != nil {
			metrics.IndicatorsSkipped.Inc()
			return false, nil
		}
	} else {
		metrics.BloomSkips.Inc()
	}

	enr := p.enrich(ctx, ind)
	assessment := p.scorer.Score(severity.Enriched{Indicator: ind, Enrichment: enr})
	rec := p.normalize(ind, enr, assessment)

	if err := p.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicate) {
			p.seen.AddString(ind.Value)
			metrics.IndicatorsSkipped.Inc()
			return false, nil
		}
		p.addFailed()
		metrics.StoreFailures.Inc()
		return false, fmt.Errorf("store %s: %w", ind.Value, err)
	}

	p.seen.AddString(ind.Value)
	p.addStored(ind.Type, enr)
	return true, nil
}

func (p *Pipeline) enrich(ctx context.Context, ind ioc.Indicator) *enrich.Result {
	if p.enricher == nil {
		return enrich.Shell(ind.Value, ind.Type)
	}
	return p.enricher.Enrich(ctx, ind.Value, ind.Type)
}

// normalize builds the stored record: correlation id, category,
// canonical detections and actor resolution.
func (p *Pipeline) normalize(ind ioc.Indicator, enr *enrich.Result, assessment ioc.Assessment) *Record {
	now := p.now().UTC()

	actor := ind.ThreatActor
	if actor == "" {
		actor = ind.PulseAuthor
	}

	rec := &Record{
		Indicator:     ind,
		Enrichment:    enr,
		Assessment:    assessment,
		CorrelationID: uuid.NewString(),
		Category:      ioc.CategoryOf(ind.Type),
		ThreatActor:   actor,
		FirstSeen:     now,
		LastUpdated:   now,
	}
	if enr != nil {
		rec.Detections = enr.Detections
		rec.AbuseScore = enr.AbuseScore()
	}
	return rec
}

// IngestPulses pulls recent pulses and stores every mappable
// indicator they carry. Returns the number of new records.
func (p *Pipeline) IngestPulses(ctx context.Context, limit int) int {
	if p.pulses == nil {
		return 0
	}
	pulses := p.pulses.FetchPulses(ctx, limit)
	if pulses == nil {
		p.log.Warn("pulse feed unavailable, skipping")
		return 0
	}
	p.mu.Lock()
	p.stats.Pulses += len(pulses)
	p.mu.Unlock()
	metrics.IndicatorsFetched.WithLabelValues("otx").Add(float64(len(pulses)))

	stored := 0
	for _, pulse := range pulses {
		for _, pi := range pulse.Indicators {
			t, ok := otxTypeMap[strings.ToLower(pi.Type)]
			if !ok {
				continue
			}
			ind := ioc.Indicator{
				Value:       pi.Indicator,
				Type:        t,
				Source:      "OTX",
				Description: "From OTX pulse: " + pulse.Name,
				Tags:        pulse.Tags,
				Context:     pi.Description,
				PulseID:     pulse.ID,
				PulseName:   pulse.Name,
				PulseAuthor: pulse.AuthorName,
				PulseTLP:    pulse.TLP,
				ThreatActor: pulse.AuthorName,
			}
			if p.storeCounted(ctx, ind) {
				stored++
			}
		}
	}
	p.log.Info("pulse ingestion complete", "pulses", len(pulses), "stored", stored)
	return stored
}

// IngestURLs pulls recent malware URLs. Each URL also yields a domain
// indicator for its host when one can be derived.
func (p *Pipeline) IngestURLs(ctx context.Context, limit int) int {
	if p.malware == nil {
		return 0
	}
	urls := p.malware.FetchRecentURLs(ctx, limit)
	if urls == nil {
		p.log.Warn("malware URL feed unavailable, skipping")
		return 0
	}
	p.mu.Lock()
	p.stats.URLs += len(urls)
	p.mu.Unlock()
	metrics.IndicatorsFetched.WithLabelValues("urlhaus").Add(float64(len(urls)))

	stored := 0
	for _, u := range urls {
		ind := ioc.Indicator{
			Value:       u.URL,
			Type:        ioc.TypeURL,
			Source:      "URLhaus",
			Description: fmt.Sprintf("URLhaus malware URL - Status: %s", u.URLStatus),
			ThreatType:  u.Threat,
			Tags:        u.Tags,
			URLStatus:   u.URLStatus,
		}
		if p.storeCounted(ctx, ind) {
			stored++
		}

		if host := hostOf(u.URL); host != "" {
			dom := ioc.Indicator{
				Value:       host,
				Type:        ioc.TypeDomain,
				Source:      "URLhaus",
				Description: "Host from URLhaus malware URL",
				ThreatType:  u.Threat,
				Tags:        u.Tags,
				RelatedURL:  u.URL,
			}
			if p.storeCounted(ctx, dom) {
				stored++
			}
		}
	}
	p.log.Info("malware URL ingestion complete", "urls", len(urls), "stored", stored)
	return stored
}

// IngestPayloads pulls recent payload records, storing both hashes of
// each payload.
func (p *Pipeline) IngestPayloads(ctx context.Context, limit int) int {
	if p.malware == nil {
		return 0
	}
	payloads := p.malware.FetchRecentPayloads(ctx, limit)
	if payloads == nil {
		p.log.Warn("payload feed unavailable, skipping")
		return 0
	}
	p.mu.Lock()
	p.stats.Payloads += len(payloads)
	p.mu.Unlock()
	metrics.IndicatorsFetched.WithLabelValues("urlhaus_payloads").Add(float64(len(payloads)))

	stored := 0
	for _, pl := range payloads {
		base := ioc.Indicator{
			Source:        "URLhaus",
			Description:   "URLhaus malware payload",
			MalwareFamily: pl.Signature,
			FileType:      pl.FileType,
			FileSize:      pl.FileSize,
		}
		if pl.SHA256Hash != "" {
			ind := base
			ind.Value = pl.SHA256Hash
			ind.Type = ioc.TypeSHA256
			if p.storeCounted(ctx, ind) {
				stored++
			}
		}
		if pl.MD5Hash != "" {
			ind := base
			ind.Value = pl.MD5Hash
			ind.Type = ioc.TypeMD5
			if p.storeCounted(ctx, ind) {
				stored++
			}
		}
	}
	p.log.Info("payload ingestion complete", "payloads", len(payloads), "stored", stored)
	return stored
}

// RunFull executes one complete cycle over every feed, sequentially.
// A second trigger while one is running gets ErrAlreadyRunning.
func (p *Pipeline) RunFull(ctx context.Context, limits Limits) (Stats, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Stats{}, ErrAlreadyRunning
	}
	defer p.running.Store(false)

	if limits == (Limits{}) {
		limits = DefaultLimits
	}

	p.mu.Lock()
	p.stats = Stats{}
	p.mu.Unlock()

	start := p.now()
	p.IngestPulses(ctx, limits.Pulses)
	p.IngestURLs(ctx, limits.URLs)
	p.IngestPayloads(ctx, limits.Payloads)

	stats := p.Stats()
	p.log.Info("ingestion cycle complete",
		"duration", p.now().Sub(start).Round(time.Millisecond),
		"stored", stats.Stored,
		"failed", stats.Failed)
	return stats, nil
}

// Running reports whether a cycle is currently in flight.
func (p *Pipeline) Running() bool { return p.running.Load() }

// Stats returns a snapshot of the current cycle's counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pipeline) storeCounted(ctx context.Context, ind ioc.Indicator) bool {
	stored, err := p.StoreIndicator(ctx, ind)
	if err != nil {
		p.log.Error("store failed", "value", ind.Value, "error", err)
		return false
	}
	return stored
}

func (p *Pipeline) addStored(t ioc.Type, enr *enrich.Result) {
	p.mu.Lock()
	p.stats.Stored++
	if enr != nil && enr.Sources.Count() > 0 {
		p.stats.Enriched++
	}
	p.mu.Unlock()
	metrics.IndicatorsStored.WithLabelValues(string(t)).Inc()
}

func (p *Pipeline) addFailed() {
	p.mu.Lock()
	p.stats.Failed++
	p.mu.Unlock()
}

// hostOf extracts the host portion of a URL-ish string, empty when no
// plausible host is present.
func hostOf(raw string) string {
	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}
	if !strings.Contains(rest, ".") {
		return ""
	}
	return strings.ToLower(rest)
}
