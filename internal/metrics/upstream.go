package metrics

import "github.com/prometheus/client_golang/prometheus"

// Upstream and pipeline Prometheus metrics.
var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqsearch",
			Name:      "upstream_requests_total",
			Help:      "Outbound calls to the embedding provider and vector store, per attempt",
		},
		[]string{"provider", "op", "outcome"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faqsearch",
			Name:      "upstream_request_duration_seconds",
			Help:      "Outbound call duration in seconds, per attempt",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "op"},
	)

	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqsearch",
			Name:      "upstream_retries_total",
			Help:      "Retries scheduled after transient upstream failures",
		},
		[]string{"provider", "op"},
	)

	UpstreamBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "faqsearch",
			Name:      "upstream_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"provider"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqsearch",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	SearchResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "faqsearch",
			Name:      "search_results_count",
			Help:      "Number of results returned per successful search",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50, 100},
		},
	)

	SearchOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqsearch",
			Name:      "search_outcomes_total",
			Help:      "Search requests by terminal outcome",
		},
		[]string{"outcome"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers upstream and search metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(UpstreamRetriesTotal)
	prometheus.MustRegister(UpstreamBreakerState)
	prometheus.MustRegister(EmbeddingTokensTotal)
	prometheus.MustRegister(SearchResultsCount)
	prometheus.MustRegister(SearchOutcomesTotal)
	pipelineMetricsRegistered = true
}
