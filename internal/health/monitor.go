package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"secint/internal/metrics"
)

// Prober is one external source's liveness check.
type Prober interface {
	Name() string
	Probe(ctx context.Context) Status
}

// Monitor probes every registered source concurrently and caches the
// full result map for a freshness window. The cache is replaced
// wholesale under a single writer; readers get copies, so a cached
// snapshot can be stale but never torn.
type Monitor struct {
	probers []Prober
	ttl     time.Duration

	mu        sync.RWMutex
	cached    map[string]Status
	checkedAt time.Time
}

const defaultTTL = 5 * time.Minute

func NewMonitor(probers ...Prober) *Monitor {
	return &Monitor{probers: probers, ttl: defaultTTL}
}

// NewMonitorTTL is used by tests to shrink the freshness window.
func NewMonitorTTL(ttl time.Duration, probers ...Prober) *Monitor {
	return &Monitor{probers: probers, ttl: ttl}
}

// ValidateAll returns per-source health. When useCache is set and the
// last full check is younger than the freshness window, the cached map
// is returned without issuing probes.
func (m *Monitor) ValidateAll(ctx context.Context, useCache bool) map[string]Status {
	if useCache {
		m.mu.RLock()
		if m.cached != nil && time.Since(m.checkedAt) < m.ttl {
			snapshot := copyStatuses(m.cached)
			age := time.Since(m.checkedAt)
			m.mu.RUnlock()
			slog.Debug("using cached source health", "age", age)
			return snapshot
		}
		m.mu.RUnlock()
	}

	statuses := make(map[string]Status, len(m.probers))
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, p := range m.probers {
		wg.Add(1)
		go func(p Prober) {
			defer wg.Done()
			st := m.probe(ctx, p)
			metrics.HealthProbes.WithLabelValues(p.Name(), string(st.State)).Inc()
			mu.Lock()
			statuses[p.Name()] = st
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	m.mu.Lock()
	m.cached = statuses
	m.checkedAt = time.Now()
	m.mu.Unlock()

	ok := 0
	for _, s := range statuses {
		if s.State == StateOK {
			ok++
		}
	}
	slog.Info("source health check complete", "ok", ok, "total", len(statuses))

	return copyStatuses(statuses)
}

// probe runs a single prober, converting a panic into an error status
// so one misbehaving source cannot take the check down.
func (m *Monitor) probe(ctx context.Context, p Prober) (st Status) {
	defer func() {
		if r := recover(); r != nil {
			st = Status{
				State:     StateError,
				Message:   fmt.Sprintf("%s probe failed: %v", p.Name(), r),
				CheckedAt: time.Now().UTC(),
			}
		}
	}()
	return p.Probe(ctx)
}

func copyStatuses(in map[string]Status) map[string]Status {
	out := make(map[string]Status, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
