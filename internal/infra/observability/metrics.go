package observability

import (
	"time"

	"github.com/ncaco/2026-idea-mvp-01/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	stageDuration   *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_assistant_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_assistant_stage_duration_seconds",
				Help:    "Duration of each agent pipeline stage.",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_assistant_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_assistant_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_assistant_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_assistant_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_assistant_requests_total",
				Help: "Total chat turns processed.",
			},
			[]string{"status"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_assistant_fallbacks_total",
				Help: "Total degraded paths taken by the agent pipeline.",
			},
			[]string{"kind"},
		),
	}
}

// Fallback kinds.
const (
	FallbackAnalysis = "analysis"
	FallbackKeywords = "keywords"
	FallbackSearch   = "search"
	FallbackContext  = "context"
)

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordStageDuration records how long one pipeline stage took.
func (m *Metrics) RecordStageDuration(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrFallback increments the fallback counter for kind.
func (m *Metrics) IncrFallback(kind string) {
	m.fallbacks.WithLabelValues(kind).Inc()
}

// GetAgentSnapshot returns a snapshot of agent-related metrics suitable for the
// GET /v1/metrics/agent endpoint.
func (m *Metrics) GetAgentSnapshot() *domain.AgentMetrics {
	promptTokens := getCounterValue(m.tokensUsed, "prompt")
	completionTokens := getCounterValue(m.tokensUsed, "completion")
	errorCount := getCounterValue(m.requestsTotal, "error")
	totalRequests := getCounterValue(m.requestsTotal, "success") + errorCount
	analysisFallbacks := getCounterValue(m.fallbacks, FallbackAnalysis)
	keywordFallbacks := getCounterValue(m.fallbacks, FallbackKeywords)
	cacheHits := getCounterValue(m.cacheHits, "categories")
	cacheMisses := getCounterValue(m.cacheMisses, "categories")

	snapshot := &domain.AgentMetrics{
		TotalRequests: int64(totalRequests),
		Period:        "all_time",
	}
	if totalRequests > 0 {
		snapshot.ErrorRate = errorCount / totalRequests
		snapshot.AnalysisFallbackRate = analysisFallbacks / totalRequests
		snapshot.KeywordFallbackRate = keywordFallbacks / totalRequests
		snapshot.AvgTokensPerRequest = (promptTokens + completionTokens) / totalRequests
	}
	if cacheHits+cacheMisses > 0 {
		snapshot.CacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}
	return snapshot
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
