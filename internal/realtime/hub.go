// Package realtime maps logical users to live websocket connections and
// fans events out to them. The registry is in-memory and per-process: it is
// rebuilt from empty on restart and does not coordinate across instances.
// Horizontal scaling would need a shared broker keyed by user id.
package realtime

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event is the frame pushed to clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Server → client event types for the connection protocol. Domain events
// (new_message, new_notification) are named by their producers.
const (
	EventJoined = "joined"
	EventPong   = "pong"
)

// Hub maintains at most one live connection per user id. A new connection
// for an already-registered user evicts the previous one (last connect
// wins); there is no multi-device fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register maps userID to client, evicting and closing any previous
// connection registered under the same id.
func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[userID]; ok && old != client {
		delete(h.clients, userID)
		close(old.send)
		h.logger.Info("evicted previous connection",
			zap.String("user_id", userID),
			zap.String("client_id", old.id))
	}

	// A connection re-joining under a new id gives up its old mapping.
	if client.userID != "" && client.userID != userID {
		if current, ok := h.clients[client.userID]; ok && current == client {
			delete(h.clients, client.userID)
		}
	}

	client.userID = userID
	h.clients[userID] = client

	h.logger.Info("user joined",
		zap.String("user_id", userID),
		zap.String("client_id", client.id),
		zap.Int("connected", len(h.clients)))
}

// Unregister removes the mapping only if client is still the one registered
// for its user. A disconnect firing after the user already reconnected on a
// newer connection must not delete the newer entry.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.clients[client.userID]
	if !ok || current != client {
		return
	}

	delete(h.clients, client.userID)
	close(client.send)

	h.logger.Info("user disconnected",
		zap.String("user_id", client.userID),
		zap.String("client_id", client.id),
		zap.Int("connected", len(h.clients)))
}

// Push delivers an event to the user's current connection. Returns false
// when the user is offline or the connection's send buffer is full; the
// event is dropped in both cases.
func (h *Hub) Push(userID string, event string, data any) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[userID]
	if !ok {
		return false
	}

	select {
	case client.send <- Event{Type: event, Data: data}:
		return true
	default:
		h.logger.Warn("send buffer full, dropping event",
			zap.String("user_id", userID),
			zap.String("event", event))
		return false
	}
}

// Lookup returns the user's current connection, if any.
func (h *Hub) Lookup(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[userID]
	return client, ok
}

// OnlineUsers returns the ids of all users with a live connection.
func (h *Hub) OnlineUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		users = append(users, userID)
	}
	return users
}

// ConnectedCount returns the number of live connections.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, implement proper origin checking
		return true
	},
}

// ServeWS upgrades the request and starts the connection's pumps. Identity
// is claimed later through the join event and is not verified.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h, conn)

	go client.writePump()
	go client.readPump()
}
