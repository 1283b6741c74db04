package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory Conn that records deliveries.
type fakeConn struct {
	mu     sync.Mutex
	msgs   [][]byte
	fail   bool
	closed int
}

func (c *fakeConn) WriteEnvelope(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("write failed")
	}
	c.msgs = append(c.msgs, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) lastMessage(t *testing.T) map[string]interface{} {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.msgs) == 0 {
		t.Fatal("no messages received")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(c.msgs[len(c.msgs)-1], &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

// --- tests ------------------------------------------------------------------

func TestRegistry_RegisterUnregister_Stats(t *testing.T) {
	r := NewRegistry()
	conns := []*fakeConn{{}, {}, {}}
	for _, c := range conns {
		r.Register(c)
	}

	if got := r.Stats().ActiveConnections; got != 3 {
		t.Errorf("active after register: got %d, want 3", got)
	}

	r.Unregister(conns[0])
	if got := r.Stats().ActiveConnections; got != 2 {
		t.Errorf("active after unregister: got %d, want 2", got)
	}
	if got := conns[0].closeCount(); got != 1 {
		t.Errorf("close count: got %d, want 1", got)
	}
}

func TestRegistry_RegisterTwice_SingleEntry(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{}
	r.Register(c)
	r.Register(c)

	if got := r.Count(); got != 1 {
		t.Errorf("Count: got %d, want 1", got)
	}
}

func TestRegistry_Unregister_Idempotent(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{}
	r.Register(c)

	r.Unregister(c)
	r.Unregister(c) // must not panic, must not change stats

	if got := r.Stats().ActiveConnections; got != 0 {
		t.Errorf("active: got %d, want 0", got)
	}
	if got := c.closeCount(); got != 1 {
		t.Errorf("close count: got %d, want 1", got)
	}
}

func TestRegistry_Unregister_Unknown(t *testing.T) {
	r := NewRegistry()
	r.Unregister(&fakeConn{}) // never registered — no-op

	if got := r.Count(); got != 0 {
		t.Errorf("Count: got %d, want 0", got)
	}
}

func TestRegistry_Broadcast_AllReceive(t *testing.T) {
	r := NewRegistry()
	conns := []*fakeConn{{}, {}, {}}
	for _, c := range conns {
		r.Register(c)
	}

	r.Broadcast(MetricsUpdate(map[string]any{"request_rate": 42.0}))

	for i, c := range conns {
		if got := c.received(); got != 1 {
			t.Errorf("conn %d: got %d messages, want 1", i, got)
			continue
		}
		m := c.lastMessage(t)
		if m["type"] != "metrics_update" {
			t.Errorf("conn %d: type: got %v", i, m["type"])
		}
		data := m["data"].(map[string]interface{})
		if data["request_rate"] != 42.0 {
			t.Errorf("conn %d: request_rate: got %v, want 42", i, data["request_rate"])
		}
		if _, err := time.Parse(time.RFC3339, m["timestamp"].(string)); err != nil {
			t.Errorf("conn %d: timestamp not RFC3339: %v", i, err)
		}
	}
}

func TestRegistry_Broadcast_FailingConnUnregistered(t *testing.T) {
	r := NewRegistry()
	good := []*fakeConn{{}, {}}
	bad := &fakeConn{fail: true}
	r.Register(good[0])
	r.Register(bad)
	r.Register(good[1])

	r.Broadcast(MetricsUpdate(map[string]any{"request_rate": 1.0}))

	for i, c := range good {
		if got := c.received(); got != 1 {
			t.Errorf("good conn %d: got %d messages, want 1", i, got)
		}
	}
	if got := r.Stats().ActiveConnections; got != 2 {
		t.Errorf("active after broadcast: got %d, want 2", got)
	}
	if got := bad.closeCount(); got != 1 {
		t.Errorf("bad conn close count: got %d, want 1", got)
	}

	// A second broadcast must not touch the removed connection.
	r.Broadcast(MetricsUpdate(nil))
	if got := bad.received(); got != 0 {
		t.Errorf("bad conn received %d messages, want 0", got)
	}
}

func TestRegistry_Send_FailureUnregisters(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{fail: true}
	r.Register(c)

	r.Send(c, Ack(map[string]string{"message": "received"}))

	if got := r.Count(); got != 0 {
		t.Errorf("Count after failed send: got %d, want 0", got)
	}
	if got := c.closeCount(); got != 1 {
		t.Errorf("close count: got %d, want 1", got)
	}
}

func TestRegistry_Stats_TotalMessagesSent(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	r.Register(a)
	r.Register(b)

	r.Broadcast(MetricsUpdate(nil))
	r.Broadcast(MetricsUpdate(nil))
	r.Send(a, Ack(nil))

	s := r.Stats()
	if s.ActiveConnections != 2 {
		t.Errorf("active: got %d, want 2", s.ActiveConnections)
	}
	if s.TotalMessagesSent != 5 {
		t.Errorf("total messages: got %d, want 5", s.TotalMessagesSent)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	conns := []*fakeConn{{}, {}}
	for _, c := range conns {
		r.Register(c)
	}

	r.CloseAll()

	if got := r.Count(); got != 0 {
		t.Errorf("Count after CloseAll: got %d, want 0", got)
	}
	for i, c := range conns {
		if got := c.closeCount(); got != 1 {
			t.Errorf("conn %d close count: got %d, want 1", i, got)
		}
	}
}

func TestRegistry_ConcurrentRegisterBroadcast(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c := &fakeConn{}
				r.Register(c)
				r.Broadcast(MetricsUpdate(nil))
				r.Unregister(c)
			}
		}()
	}
	wg.Wait()

	if got := r.Stats().ActiveConnections; got != 0 {
		t.Errorf("active after churn: got %d, want 0", got)
	}
}

func TestEnvelope_AlertSeverity(t *testing.T) {
	env := Alert("", map[string]string{"msg": "x"})
	if env.Severity != "info" {
		t.Errorf("default severity: got %q, want info", env.Severity)
	}

	env = Alert("critical", nil)
	data, err := env.encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var m map[string]interface{}
	json.Unmarshal(data, &m) //nolint:errcheck
	if m["severity"] != "critical" {
		t.Errorf("severity: got %v", m["severity"])
	}
}

func TestEnvelope_OmitsSeverityForNonAlerts(t *testing.T) {
	data, err := MetricsUpdate(map[string]any{"request_rate": 1.0}).encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var m map[string]interface{}
	json.Unmarshal(data, &m) //nolint:errcheck
	if _, ok := m["severity"]; ok {
		t.Error("severity key present on metrics_update")
	}
}
