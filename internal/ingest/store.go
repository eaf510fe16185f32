package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"secint/internal/enrich"
	"secint/internal/ioc"
)

// Record is the stored form of an indicator: the raw indicator, its
// enrichment, its assessment and the storage metadata. Records are
// immutable after insertion; re-ingesting a known value is a no-op.
type Record struct {
	Indicator  ioc.Indicator  `json:"indicator"`
	Enrichment *enrich.Result `json:"enrichment,omitempty"`
	Assessment ioc.Assessment `json:"assessment"`

	CorrelationID string         `json:"correlation_id"`
	Category      ioc.Category   `json:"category"`
	Detections    ioc.Detections `json:"detections"`
	AbuseScore    *int           `json:"abuse_score,omitempty"`
	ThreatActor   string         `json:"threat_actor,omitempty"`
	FirstSeen     time.Time      `json:"first_seen"`
	LastUpdated   time.Time      `json:"last_updated"`
}

// ErrDuplicate is returned by Insert when a record with the same
// value already exists. The store's value uniqueness is what makes
// concurrent stores of one value safe.
var ErrDuplicate = errors.New("indicator already stored")

// Store is the document-store collaborator contract.
type Store interface {
	FindByValue(ctx context.Context, value string) (*Record, error)
	Insert(ctx context.Context, rec *Record) error
	Count(ctx context.Context) (int64, error)
	CountBy(ctx context.Context, field string) (map[string]int64, error)
}

// MemoryStore is an in-process Store keyed by indicator value.
type MemoryStore struct {
	mu      sync.Mutex
	byValue map[string]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byValue: make(map[string]*Record)}
}

func (m *MemoryStore) FindByValue(ctx context.Context, value string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byValue[value], nil
}

func (m *MemoryStore) Insert(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byValue[rec.Indicator.Value]; exists {
		return ErrDuplicate
	}
	m.byValue[rec.Indicator.Value] = rec
	return nil
}

func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byValue)), nil
}

// CountBy groups stored records by one of the supported fields.
func (m *MemoryStore) CountBy(ctx context.Context, field string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int64)
	for _, rec := range m.byValue {
		var key string
		switch field {
		case "severity":
			key = string(rec.Assessment.Tier)
		case "category":
			key = string(rec.Category)
		case "type":
			key = string(rec.Indicator.Type)
		case "source":
			key = rec.Indicator.Source
		default:
			return nil, fmt.Errorf("unsupported group field %q", field)
		}
		counts[key]++
	}
	return counts, nil
}
