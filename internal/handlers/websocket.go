package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops/internal/realtime"
)

type WebSocketHandler struct {
	hub *realtime.Hub
}

func NewWebSocketHandler(hub *realtime.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket upgrades the HTTP connection; the client claims its
// identity afterwards via the join event.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	h.hub.ServeWS(c)
}

// GetConnectedUsers is a debug endpoint listing users with a live connection.
func (h *WebSocketHandler) GetConnectedUsers(c *gin.Context) {
	users := h.hub.OnlineUsers()

	c.JSON(http.StatusOK, gin.H{
		"connected_users":   users,
		"total_connections": len(users),
	})
}
