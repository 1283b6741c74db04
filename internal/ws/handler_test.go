package ws_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"github.com/meshwatch/meshwatch/internal/ws"
)

// Every writePump and readLoop goroutine must be gone once its client is
// closed or CloseAll has run.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// startEndpoint starts a test HTTP server exposing the push endpoint.
func startEndpoint(t *testing.T) (wsURL string, reg *ws.Registry) {
	t.Helper()

	reg = ws.NewRegistry()
	srv := httptest.NewServer(ws.NewHandler(reg))
	t.Cleanup(func() {
		reg.CloseAll()
		srv.Close()
	})

	return "ws" + strings.TrimPrefix(srv.URL, "http"), reg
}

// dial connects a WebSocket client and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelope reads one text message from conn with a short deadline.
func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

// waitForCount polls until reg reports n live connections.
func waitForCount(t *testing.T, reg *ws.Registry, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reg.Count() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Count: got %d, want %d", reg.Count(), n)
}

// --- tests ------------------------------------------------------------------

func TestHandler_Connect_Registers(t *testing.T) {
	wsURL, reg := startEndpoint(t)

	dial(t, wsURL)
	waitForCount(t, reg, 1)
}

func TestHandler_MultipleClients(t *testing.T) {
	wsURL, reg := startEndpoint(t)

	for i := 0; i < 3; i++ {
		dial(t, wsURL)
	}
	waitForCount(t, reg, 3)
}

func TestHandler_Disconnect_Unregisters(t *testing.T) {
	wsURL, reg := startEndpoint(t)

	conn := dial(t, wsURL)
	waitForCount(t, reg, 1)

	conn.Close()
	waitForCount(t, reg, 0)
}

func TestHandler_ClientMessage_GetsAck(t *testing.T) {
	wsURL, reg := startEndpoint(t)

	conn := dial(t, wsURL)
	waitForCount(t, reg, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}

	m := readEnvelope(t, conn)
	if m["type"] != "ack" {
		t.Errorf("type: got %v, want ack", m["type"])
	}
	data, ok := m["data"].(map[string]interface{})
	if !ok {
		t.Fatal("data: missing or wrong type")
	}
	if data["message"] != "received" {
		t.Errorf("message: got %v, want received", data["message"])
	}
}

func TestHandler_BroadcastReachesAllClients(t *testing.T) {
	wsURL, reg := startEndpoint(t)

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
	}
	waitForCount(t, reg, 3)

	reg.Broadcast(ws.MetricsUpdate(map[string]any{"request_rate": 42.0}))

	for i, conn := range conns {
		m := readEnvelope(t, conn)
		if m["type"] != "metrics_update" {
			t.Errorf("client %d: type: got %v", i, m["type"])
			continue
		}
		data := m["data"].(map[string]interface{})
		if data["request_rate"] != 42.0 {
			t.Errorf("client %d: request_rate: got %v, want 42", i, data["request_rate"])
		}
	}
}

func TestHandler_StatsCountDeliveries(t *testing.T) {
	wsURL, reg := startEndpoint(t)

	conn := dial(t, wsURL)
	waitForCount(t, reg, 1)

	reg.Broadcast(ws.MetricsUpdate(nil))
	readEnvelope(t, conn)

	s := reg.Stats()
	if s.ActiveConnections != 1 {
		t.Errorf("active: got %d, want 1", s.ActiveConnections)
	}
	if s.TotalMessagesSent != 1 {
		t.Errorf("total messages: got %d, want 1", s.TotalMessagesSent)
	}
}

func TestHandler_NonWebSocketRequest_Returns400(t *testing.T) {
	reg := ws.NewRegistry()
	srv := httptest.NewServer(ws.NewHandler(reg))
	defer srv.Close()

	client := &http.Client{}
	defer client.CloseIdleConnections()

	// Plain HTTP GET without WebSocket upgrade headers → 400
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
	if reg.Count() != 0 {
		t.Errorf("failed handshake must not register: Count = %d", reg.Count())
	}
}

func TestHandler_CloseAllDropsClients(t *testing.T) {
	wsURL, reg := startEndpoint(t)

	dial(t, wsURL)
	waitForCount(t, reg, 1)

	reg.CloseAll()
	if got := reg.Count(); got != 0 {
		t.Errorf("Count after CloseAll: got %d, want 0", got)
	}
}
