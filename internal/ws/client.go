package ws

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// maxInboundBytes caps a single inbound client frame.
	maxInboundBytes = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins — callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

var (
	errSendBufferFull = errors.New("send buffer full")
	errClientClosed   = errors.New("client closed")
)

// client is the gorilla-backed Conn implementation. Writes go through a
// buffered channel drained by writePump, so a stalled peer fails its own
// WriteEnvelope instead of blocking the registry's fan-out.
type client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
}

// WriteEnvelope queues data for the write pump. It fails fast when the
// buffer is full or the client is already closed.
func (c *client) WriteEnvelope(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close shuts the send channel, which makes the write pump send a close
// frame and drop the underlying connection. Idempotent.
func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return nil
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (shutdown or unregistration).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler upgrades HTTP requests to WebSocket and attaches the resulting
// connections to a Registry. It is the transport endpoint: it owns the accept
// handshake and the per-connection read loop, nothing else.
type Handler struct {
	reg *Registry
}

// NewHandler creates a Handler feeding reg.
func NewHandler(reg *Registry) *Handler {
	return &Handler{reg: reg}
}

// ServeHTTP upgrades the connection, registers it, and serves it until the
// peer disconnects. Inbound client text frames are acknowledged with an "ack"
// envelope. Blocks until the connection closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		slog.Warn("ws: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newClient(conn)
	h.reg.Register(c)
	defer h.reg.Unregister(c)

	go c.writePump()
	h.readLoop(c) // blocks until connection closes
}

// readLoop reads frames from the connection to process control messages
// (pong, close), detect disconnects, and echo acknowledgements for inbound
// client messages.
func (h *Handler) readLoop(c *client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxInboundBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		slog.Debug("ws: client message received", "bytes", len(msg))
		h.reg.Send(c, Ack(map[string]string{"message": "received"}))
	}
}
