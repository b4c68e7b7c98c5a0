package metrics

import "github.com/prometheus/client_golang/prometheus"

// Duplicate gate and ledger Prometheus metrics.
var (
	DuplicateChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipregistry",
			Name:      "duplicate_checks_total",
			Help:      "Total duplicate checks by outcome",
		},
		[]string{"result"}, // "accepted" / "duplicate" / "unavailable" / "invalid" / "cancelled"
	)

	DuplicateCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ipregistry",
			Name:      "duplicate_check_duration_seconds",
			Help:      "Duplicate check duration in seconds, corpus reads included",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ComparisonsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipregistry",
			Name:      "similarity_comparisons_total",
			Help:      "Pairwise description comparisons",
		},
		[]string{"kind"}, // "scored" / "degenerate"
	)

	LedgerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipregistry",
			Name:      "ledger_requests_total",
			Help:      "Total ledger calls",
		},
		[]string{"driver", "method", "status"},
	)

	LedgerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ipregistry",
			Name:      "ledger_request_duration_seconds",
			Help:      "Ledger call duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		},
		[]string{"driver", "method"},
	)

	CorpusCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ipregistry",
			Name:      "corpus_cache_total",
			Help:      "Description cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var gateMetricsRegistered bool

// RegisterGateMetrics registers duplicate gate and ledger metrics. Must be called once from main.
func RegisterGateMetrics() {
	if gateMetricsRegistered {
		return
	}
	prometheus.MustRegister(DuplicateChecksTotal)
	prometheus.MustRegister(DuplicateCheckDuration)
	prometheus.MustRegister(ComparisonsTotal)
	prometheus.MustRegister(LedgerRequestsTotal)
	prometheus.MustRegister(LedgerRequestDuration)
	prometheus.MustRegister(CorpusCacheTotal)
	gateMetricsRegistered = true
}
