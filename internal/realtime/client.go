package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// Client → server event types.
const (
	clientEventJoin = "join"
	clientEventPing = "ping"
)

// ClientEvent represents incoming events from clients.
type ClientEvent struct {
	Type   string `json:"type"`
	UserID string `json:"user_id,omitempty"`
}

// Client is one websocket connection. It carries no identity until the peer
// sends a join event.
type Client struct {
	id     string
	userID string // set by Hub.Register, guarded by the hub mutex
	hub    *Hub
	conn   *websocket.Conn
	send   chan Event
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan Event, 256),
	}
}

// readPump pumps events from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket error",
					zap.String("client_id", c.id),
					zap.Error(err))
			}
			break
		}

		var event ClientEvent
		if err := json.Unmarshal(data, &event); err != nil {
			c.hub.logger.Warn("failed to unmarshal client event",
				zap.String("client_id", c.id),
				zap.Error(err))
			continue
		}

		c.handleEvent(event)
	}
}

// writePump pumps events from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleEvent processes incoming events from the client.
func (c *Client) handleEvent(event ClientEvent) {
	switch event.Type {
	case clientEventJoin:
		// The claimed user id is not verified; any caller may register
		// as any user.
		if event.UserID == "" {
			c.hub.logger.Warn("join without user id",
				zap.String("client_id", c.id))
			return
		}

		c.hub.Register(event.UserID, c)

		c.reply(Event{
			Type: EventJoined,
			Data: map[string]any{
				"user_id":   event.UserID,
				"client_id": c.id,
			},
		})

	case clientEventPing:
		c.reply(Event{
			Type: EventPong,
			Data: map[string]any{
				"timestamp": time.Now().Unix(),
			},
		})

	default:
		c.hub.logger.Warn("unknown client event type",
			zap.String("client_id", c.id),
			zap.String("type", event.Type))
	}
}

// reply queues a protocol event for this connection. The send channel is
// closed under the hub lock when the client is evicted, so the registration
// check and the send must happen under the same lock.
func (c *Client) reply(event Event) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	if c.userID != "" && c.hub.clients[c.userID] != c {
		return // evicted; send channel is closed
	}

	select {
	case c.send <- event:
	default:
	}
}
