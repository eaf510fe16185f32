package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IndicatorsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secint_indicators_fetched_total",
			Help: "Raw items fetched from each feed",
		},
		[]string{"feed"},
	)

	IndicatorsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secint_indicators_stored_total",
			Help: "Newly stored indicators by type",
		},
		[]string{"type"},
	)

	IndicatorsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secint_indicators_skipped_total",
			Help: "Indicators skipped as already stored",
		},
	)

	StoreFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secint_store_failures_total",
			Help: "Failed store inserts",
		},
	)

	BloomSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secint_bloom_negative_total",
			Help: "Existence checks answered by the bloom pre-screen",
		},
	)

	HealthProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secint_health_probes_total",
			Help: "Source health probe outcomes",
		},
		[]string{"source", "status"},
	)
)
