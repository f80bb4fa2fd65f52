package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Mapping layer Prometheus metrics.
var (
	IndexEnsureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "index_ensure_total",
			Help:      "Index creation attempts by collection and outcome",
		},
		[]string{"collection", "kind", "result"}, // kind: index / search; result: created / conflict / error
	)

	IndexEnsureDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "index_ensure_duration_seconds",
			Help:      "Time spent ensuring all indexes of one entity",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"collection"},
	)

	ReferenceResolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reference_resolve_total",
			Help:      "Document reference lookups by kind and source",
		},
		[]string{"kind", "source"}, // kind: document / dbref; source: db / cache
	)

	ReferenceDocumentsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reference_documents_fetched_total",
			Help:      "Documents returned by reference lookups",
		},
		[]string{"collection"},
	)

	RepositoryOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "repository_operation_duration_seconds",
			Help:      "Repository operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"collection", "op", "status"},
	)
)

var odmOnce sync.Once

// RegisterODMMetrics registers the mapping layer metrics. Safe to call more than once.
func RegisterODMMetrics() {
	odmOnce.Do(func() {
		mustRegister(prometheus.DefaultRegisterer,
			IndexEnsureTotal,
			IndexEnsureDuration,
			ReferenceResolveTotal,
			ReferenceDocumentsFetched,
			RepositoryOpDuration,
		)
	})
}
