// Package bridge connects the server to the browser pages over websocket.
// The oldest connected page is the primary device: it hosts the media element
// and the YouTube iframe and receives the media commands. Every page receives
// state, rotation and notice updates.
package bridge

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"
)

// Errors
var (
	ErrNoDevice      = errors.New("no device connected")
	ErrUnknownClient = errors.New("unknown client")
	ErrHubClosed     = errors.New("hub closed")
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 16
	sendBuffer     = 64
)

// Handler receives what the pages report.
type Handler interface {
	// ClientConnected is called once a page is registered.
	ClientConnected(clientID string)
	// HandleMessage is called for every decoded frame.
	HandleMessage(clientID string, msg Message)
	// PrimaryLost is called when the primary device disconnects.
	PrimaryLost(clientID string)
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks the connected pages in connection order.
type Hub struct {
	mu       sync.Mutex
	clients  []*client
	handler  Handler
	closed   bool
	upgrader websocket.Upgrader
}

// NewHub creates a new hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// SetHandler sets the handler. It must be called before serving.
func (h *Hub) SetHandler(handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

// ServeHTTP upgrades the request and runs the page's pumps until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Debug().Msgf("bridge: upgrade failed: %v", err)
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if err := h.register(c); err != nil {
		_ = conn.Close()
		return
	}

	go c.writePump()
	h.readPump(c)
}

// Send delivers msg to the primary device.
func (h *Hub) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	if len(h.clients) == 0 {
		return errors.Wrapf(ErrNoDevice, "send %s", msg.Type)
	}
	h.enqueueLocked(h.clients[0], data)
	return nil
}

// SendTo delivers msg to one page.
func (h *Hub) SendTo(clientID string, msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		if c.id == clientID {
			h.enqueueLocked(c, data)
			return nil
		}
	}
	return errors.Wrapf(ErrUnknownClient, "client %s", clientID)
}

// Broadcast delivers msg to every page.
func (h *Hub) Broadcast(msg Message) {
	data, err := Encode(msg)
	if err != nil {
		zlog.Error().Msgf("bridge: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.enqueueLocked(c, data)
	}
}

// Primary returns the ID of the primary device.
func (h *Hub) Primary() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return "", false
	}
	return h.clients[0].id, true
}

// ClientCount returns the number of connected pages.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every page and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, c := range h.clients {
		close(c.send)
	}
	h.clients = nil
}

func (h *Hub) register(c *client) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.clients = append(h.clients, c)
	role := RoleMirror
	if len(h.clients) == 1 {
		role = RolePrimary
	}
	if data, err := Encode(Message{Type: TypeRole, Data: role}); err == nil {
		h.enqueueLocked(c, data)
	}
	handler := h.handler
	count := len(h.clients)
	h.mu.Unlock()

	zlog.Info().Msgf("bridge: client connected: id=%s role=%s clients=%d", c.id, role, count)
	if handler != nil {
		handler.ClientConnected(c.id)
	}
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	wasPrimary := h.removeLocked(c)
	var promoted *client
	if wasPrimary && len(h.clients) > 0 {
		promoted = h.clients[0]
		if data, err := Encode(Message{Type: TypeRole, Data: RolePrimary}); err == nil {
			h.enqueueLocked(promoted, data)
		}
	}
	handler := h.handler
	count := len(h.clients)
	h.mu.Unlock()

	zlog.Info().Msgf("bridge: client disconnected: id=%s primary=%t clients=%d", c.id, wasPrimary, count)
	if promoted != nil {
		zlog.Info().Msgf("bridge: promoted primary device: id=%s", promoted.id)
	}
	if wasPrimary && handler != nil {
		handler.PrimaryLost(c.id)
	}
}

// removeLocked removes c and reports whether it was the primary device.
// Removing an absent client is a no-op.
func (h *Hub) removeLocked(c *client) bool {
	for i, cc := range h.clients {
		if cc == c {
			h.clients = append(h.clients[:i:i], h.clients[i+1:]...)
			close(c.send)
			return i == 0
		}
	}
	return false
}

// enqueueLocked queues data without blocking. The connection of a page that
// cannot keep up is closed and its read pump unregisters it.
func (h *Hub) enqueueLocked(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		zlog.Warn().Msgf("bridge: send buffer full, dropping client: id=%s", c.id)
		_ = c.conn.Close()
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zlog.Debug().Msgf("bridge: read failed: id=%s err=%v", c.id, err)
			}
			return
		}

		msg, err := Decode(data)
		if err != nil {
			zlog.Debug().Msgf("bridge: ignoring malformed frame: id=%s err=%v", c.id, err)
			continue
		}

		h.mu.Lock()
		handler := h.handler
		h.mu.Unlock()
		if handler != nil {
			handler.HandleMessage(c.id, msg)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
