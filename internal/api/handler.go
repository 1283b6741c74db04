package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/meshwatch/meshwatch/internal/alerts"
	"github.com/meshwatch/meshwatch/internal/certs"
	"github.com/meshwatch/meshwatch/internal/collector"
	"github.com/meshwatch/meshwatch/internal/history"
	"github.com/meshwatch/meshwatch/internal/promql"
	"github.com/meshwatch/meshwatch/internal/topology"
	"github.com/meshwatch/meshwatch/internal/ws"
)

// Handler is the HTTP handler for all /api/v1/* endpoints plus the /health
// and /ready probes. It reads from the query client, the topology service,
// the certificate monitor, the alert engine, and the push registry, and
// returns JSON responses.
type Handler struct {
	metrics *promql.Client
	topo    *topology.Service
	certs   *certs.Monitor
	alerts  *alerts.Engine
	reg     *ws.Registry
	coll    *collector.Collector
	hist    *history.Buffer
	mux     *http.ServeMux
}

// New creates a Handler wired to the given collaborators and registers all
// routes.
func New(metrics *promql.Client, topo *topology.Service, cm *certs.Monitor,
	ae *alerts.Engine, reg *ws.Registry, coll *collector.Collector,
	hist *history.Buffer) http.Handler {

	h := &Handler{
		metrics: metrics,
		topo:    topo,
		certs:   cm,
		alerts:  ae,
		reg:     reg,
		coll:    coll,
		hist:    hist,
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("/health", h.health)
	h.mux.HandleFunc("/ready", h.ready)
	h.mux.HandleFunc("/api/v1/health", h.apiHealth)
	h.mux.HandleFunc("/api/v1/metrics/overview", h.metricsOverview)
	h.mux.HandleFunc("/api/v1/metrics/history", h.metricsHistory)
	h.mux.HandleFunc("/api/v1/topology", h.topologyGraph)
	h.mux.HandleFunc("/api/v1/topology/services", h.topologyServices)
	h.mux.HandleFunc("/api/v1/certs", h.listCerts)
	h.mux.HandleFunc("/api/v1/certs/expiring", h.expiringCerts)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/ws/stats", h.wsStats)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /health — liveness probe, always healthy while serving.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "meshwatch",
	})
}

// ready returns GET /ready — readiness probe. Not ready until the collector
// loop is running.
func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	if !h.coll.Running() {
		jsonResp(w, http.StatusServiceUnavailable, map[string]string{
			"status":    "not_ready",
			"collector": "stopped",
		})
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{
		"status":    "ready",
		"collector": "running",
	})
}

// apiHealth returns GET /api/v1/health — service status summary.
func (h *Handler) apiHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	collState := "stopped"
	if h.coll.Running() {
		collState = "running"
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:            "healthy",
		Service:           "meshwatch",
		Collector:         collState,
		ActiveConnections: h.reg.Count(),
		AlertCount:        len(h.alerts.Active()),
	})
}

// metricsOverview returns GET /api/v1/metrics/overview — the current mesh
// traffic summary.
func (h *Handler) metricsOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	o, err := h.metrics.MeshOverview(r.Context())
	if err != nil {
		jsonErr(w, http.StatusBadGateway, "metrics query failed")
		return
	}
	jsonResp(w, http.StatusOK, OverviewResponse{
		RequestRate:       o.RequestRate,
		ErrorRate:         o.ErrorRate,
		P50Latency:        o.P50Latency,
		P95Latency:        o.P95Latency,
		P99Latency:        o.P99Latency,
		ActiveConnections: o.ActiveConnections,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	})
}

// metricsHistory returns GET /api/v1/metrics/history — recently collected
// snapshots, oldest first.
func (h *Handler) metricsHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.hist.List())
}

// topologyGraph returns GET /api/v1/topology — the current mesh graph.
func (h *Handler) topologyGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	g, err := h.topo.Graph(r.Context())
	if err != nil {
		jsonErr(w, http.StatusBadGateway, "topology query failed")
		return
	}
	jsonResp(w, http.StatusOK, g)
}

// topologyServices returns GET /api/v1/topology/services — the flat workload
// list derived from the graph.
func (h *Handler) topologyServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	g, err := h.topo.Graph(r.Context())
	if err != nil {
		jsonErr(w, http.StatusBadGateway, "topology query failed")
		return
	}
	out := make([]ServiceResponse, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		out = append(out, ServiceResponse{Name: n.Name, Namespace: n.Namespace})
	}
	jsonResp(w, http.StatusOK, out)
}

// listCerts returns GET /api/v1/certs — the full certificate inventory.
func (h *Handler) listCerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.certs.Inventory())
}

// expiringCerts returns GET /api/v1/certs/expiring?days=N — certificates
// expiring within N days (default 30).
func (h *Handler) expiringCerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		days = n
	}
	jsonResp(w, http.StatusOK, h.certs.Expiring(days))
}

// listAlerts returns GET /api/v1/alerts — firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// wsStats returns GET /api/v1/ws/stats — push channel statistics.
func (h *Handler) wsStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.reg.Stats())
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
