package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status            string `json:"status"`
	Service           string `json:"service"`
	Collector         string `json:"collector"` // "running" | "stopped"
	ActiveConnections int    `json:"active_connections"`
	AlertCount        int    `json:"alert_count"`
}

// OverviewResponse is the payload for GET /api/v1/metrics/overview.
type OverviewResponse struct {
	RequestRate       float64 `json:"request_rate"`
	ErrorRate         float64 `json:"error_rate"`
	P50Latency        float64 `json:"p50_latency"`
	P95Latency        float64 `json:"p95_latency"`
	P99Latency        float64 `json:"p99_latency"`
	ActiveConnections float64 `json:"active_connections"`
	Timestamp         string  `json:"timestamp"` // RFC3339
}

// ServiceResponse is one entry in GET /api/v1/topology/services.
type ServiceResponse struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
