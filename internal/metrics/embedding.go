package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric the service exports.
const Namespace = "mongomap"

// Query embedding metrics. Labels carry the provider and model so a model switch shows as a
// new series rather than a discontinuity.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "embedding",
		Name:      "requests_total",
		Help:      "Query embedding calls to the provider by outcome",
	}, []string{"provider", "model", "status"})

	EmbeddingRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "embedding",
		Name:      "request_duration_seconds",
		Help:      "Provider round trip for one query embedding",
		Buckets:   prometheus.ExponentialBuckets(0.025, 2, 10), // 25ms .. ~12.8s
	}, []string{"provider", "model"})

	EmbeddingTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "embedding",
		Name:      "tokens_total",
		Help:      "Tokens billed by the provider",
	}, []string{"provider", "model", "type"}) // type: prompt / total

	EmbeddingErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "embedding",
		Name:      "errors_total",
		Help:      "Failed query embeddings by error class",
	}, []string{"provider", "model", "error_type"})

	EmbeddingBudgetTokensRemaining = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "embedding",
		Name:      "budget_tokens_remaining",
		Help:      "Tokens left in the current budget window",
	}, []string{"provider", "period"}) // period: day / month

	EmbeddingCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "embedding",
		Name:      "cache_lookups_total",
		Help:      "Query embedding cache lookups by result",
	}, []string{"result"}) // hit / miss / error
)

var embOnce sync.Once

// RegisterEmbeddingMetrics registers the embedding metrics with the default registry.
// Safe to call more than once.
func RegisterEmbeddingMetrics() {
	embOnce.Do(func() {
		mustRegister(prometheus.DefaultRegisterer,
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingBudgetTokensRemaining,
			EmbeddingCacheTotal,
		)
	})
}

// mustRegister registers cs, tolerating collectors another caller already registered.
func mustRegister(reg prometheus.Registerer, cs ...prometheus.Collector) {
	for _, c := range cs {
		err := reg.Register(c)
		var are prometheus.AlreadyRegisteredError
		if err != nil && !errors.As(err, &are) {
			panic(err)
		}
	}
}
