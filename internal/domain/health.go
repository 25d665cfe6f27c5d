package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// AgentMetrics is returned by GET /v1/metrics/agent.
type AgentMetrics struct {
	TotalRequests        int64   `json:"totalRequests"`
	ErrorRate            float64 `json:"errorRate"`
	AnalysisFallbackRate float64 `json:"analysisFallbackRate"`
	KeywordFallbackRate  float64 `json:"keywordFallbackRate"`
	AvgTokensPerRequest  float64 `json:"avgTokensPerRequest"`
	CacheHitRate         float64 `json:"cacheHitRate"`
	Period               string  `json:"period"`
}
