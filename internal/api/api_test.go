package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meshwatch/meshwatch/internal/alerts"
	"github.com/meshwatch/meshwatch/internal/api"
	"github.com/meshwatch/meshwatch/internal/certs"
	"github.com/meshwatch/meshwatch/internal/collector"
	"github.com/meshwatch/meshwatch/internal/config"
	"github.com/meshwatch/meshwatch/internal/history"
	"github.com/meshwatch/meshwatch/internal/promql"
	"github.com/meshwatch/meshwatch/internal/topology"
	"github.com/meshwatch/meshwatch/internal/ws"
)

// fakeProm serves a Prometheus query API answering every query with one
// 42-valued sample carrying Istio workload labels (usable by both the
// overview and topology paths).
func fakeProm(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"status": "success",
			"data": {
				"resultType": "vector",
				"result": [{
					"metric": {
						"source_workload": "frontend",
						"source_workload_namespace": "default",
						"destination_workload": "backend",
						"destination_workload_namespace": "default"
					},
					"value": [1700000000.0, "42"]
				}]
			}
		}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newTestServer assembles the full API surface over fake collaborators.
func newTestServer(t *testing.T) (*httptest.Server, *collector.Collector, *history.Buffer) {
	t.Helper()

	prom := promql.New(fakeProm(t).URL)
	reg := ws.NewRegistry()
	engine := alerts.New(config.AlertsConfig{}, reg)
	monitor := certs.NewMonitor(config.CertsConfig{CheckInterval: time.Hour, WarnDays: 30}, reg)
	coll := collector.New(prom, reg, time.Hour)
	topo := topology.NewService(prom)
	hist := history.New(time.Hour, 100)

	h := api.New(prom, topo, monitor, engine, reg, coll, hist)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, coll, hist
}

// getJSON fetches path and decodes the response body into v.
func getJSON(t *testing.T, srv *httptest.Server, path string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

// --- tests ------------------------------------------------------------------

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var m map[string]string
	if code := getJSON(t, srv, "/health", &m); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if m["status"] != "healthy" || m["service"] != "meshwatch" {
		t.Errorf("body: got %v", m)
	}
}

func TestReady_TracksCollectorLifecycle(t *testing.T) {
	srv, coll, _ := newTestServer(t)

	if code := getJSON(t, srv, "/ready", nil); code != http.StatusServiceUnavailable {
		t.Errorf("before start: got %d, want 503", code)
	}

	coll.Start()
	defer coll.Stop()

	var m map[string]string
	if code := getJSON(t, srv, "/ready", &m); code != http.StatusOK {
		t.Errorf("after start: got %d, want 200", code)
	}
	if m["collector"] != "running" {
		t.Errorf("collector: got %q", m["collector"])
	}
}

func TestAPIHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var h api.HealthResponse
	if code := getJSON(t, srv, "/api/v1/health", &h); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if h.Collector != "stopped" {
		t.Errorf("collector: got %q, want stopped", h.Collector)
	}
	if h.ActiveConnections != 0 || h.AlertCount != 0 {
		t.Errorf("counts: got %+v", h)
	}
}

func TestMetricsOverview(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var o api.OverviewResponse
	if code := getJSON(t, srv, "/api/v1/metrics/overview", &o); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if o.RequestRate != 42 {
		t.Errorf("request_rate: got %v, want 42", o.RequestRate)
	}
	if _, err := time.Parse(time.RFC3339, o.Timestamp); err != nil {
		t.Errorf("timestamp: %v", err)
	}
}

func TestMetricsHistory(t *testing.T) {
	srv, _, hist := newTestServer(t)

	hist.Append(map[string]any{"request_rate": 12.5})
	hist.Append(map[string]any{"request_rate": 13.0})

	var out []history.Sample
	if code := getJSON(t, srv, "/api/v1/metrics/history", &out); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if len(out) != 2 {
		t.Fatalf("samples: got %d, want 2", len(out))
	}
	if out[0].Data["request_rate"] != 12.5 {
		t.Errorf("oldest first: got %v", out[0].Data)
	}
}

func TestMetricsOverview_UpstreamDown(t *testing.T) {
	reg := ws.NewRegistry()
	prom := promql.New("http://127.0.0.1:1") // nothing listens here
	h := api.New(prom, topology.NewService(prom),
		certs.NewMonitor(config.CertsConfig{CheckInterval: time.Hour}, reg),
		alerts.New(config.AlertsConfig{}, reg), reg,
		collector.New(prom, reg, time.Hour),
		history.New(time.Hour, 100))
	srv := httptest.NewServer(h)
	defer srv.Close()

	if code := getJSON(t, srv, "/api/v1/metrics/overview", nil); code != http.StatusBadGateway {
		t.Errorf("status: got %d, want 502", code)
	}
}

func TestTopology(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var g topology.Graph
	if code := getJSON(t, srv, "/api/v1/topology", &g); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Errorf("graph: %d nodes, %d edges", len(g.Nodes), len(g.Edges))
	}
	if g.Edges[0].RequestRate != 42 {
		t.Errorf("edge rate: got %v", g.Edges[0].RequestRate)
	}
}

func TestTopologyServices(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var out []api.ServiceResponse
	if code := getJSON(t, srv, "/api/v1/topology/services", &out); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if len(out) != 2 {
		t.Fatalf("services: got %d, want 2", len(out))
	}
	if out[0].Name != "backend" || out[0].Namespace != "default" {
		t.Errorf("first service: got %+v", out[0])
	}
}

func TestCerts_EmptyInventory(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var out []certs.Status
	if code := getJSON(t, srv, "/api/v1/certs", &out); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if len(out) != 0 {
		t.Errorf("inventory: got %d entries", len(out))
	}
}

func TestCertsExpiring_BadDaysParam(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if code := getJSON(t, srv, "/api/v1/certs/expiring?days=soon", nil); code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", code)
	}
}

func TestAlerts_Empty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var out []alerts.Alert
	if code := getJSON(t, srv, "/api/v1/alerts", &out); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if len(out) != 0 {
		t.Errorf("alerts: got %d", len(out))
	}
}

func TestWSStats(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var s ws.Stats
	if code := getJSON(t, srv, "/api/v1/ws/stats", &s); code != http.StatusOK {
		t.Fatalf("status: got %d", code)
	}
	if s.ActiveConnections != 0 || s.TotalMessagesSent != 0 {
		t.Errorf("stats: got %+v", s)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/alerts", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}

// --- APIKey middleware ------------------------------------------------------

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKey_Enforced(t *testing.T) {
	srv := httptest.NewServer(api.APIKey("apikey", "x-api-key", "s3cret", okHandler()))
	defer srv.Close()

	resp, _ := http.Get(srv.URL)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no key: got %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("x-api-key", "wrong")
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong key: got %d, want 401", resp.StatusCode)
	}

	req.Header.Set("x-api-key", "s3cret")
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("right key: got %d, want 200", resp.StatusCode)
	}
}

func TestAPIKey_DisabledModes(t *testing.T) {
	for _, tc := range []struct{ mode, key string }{
		{"none", "s3cret"},
		{"", "s3cret"},
		{"apikey", ""}, // unconfigured key — pass-through
	} {
		srv := httptest.NewServer(api.APIKey(tc.mode, "x-api-key", tc.key, okHandler()))
		resp, _ := http.Get(srv.URL)
		resp.Body.Close()
		srv.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("mode=%q key=%q: got %d, want 200", tc.mode, tc.key, resp.StatusCode)
		}
	}
}
