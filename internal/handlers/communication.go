package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"fieldops/internal/comm"
	"fieldops/internal/database"
	"fieldops/internal/models"
)

type CommunicationHandler struct {
	store      *database.CommStore
	dispatcher *comm.Dispatcher
	validator  *validator.Validate
}

func NewCommunicationHandler(store *database.CommStore, dispatcher *comm.Dispatcher) *CommunicationHandler {
	return &CommunicationHandler{
		store:      store,
		dispatcher: dispatcher,
		validator:  validator.New(),
	}
}

// SendMessage persists a message and dispatches it to the receiver's live
// connection when present.
func (h *CommunicationHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.dispatcher.SendMessage(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "Message sent successfully",
		"message_id": message.ID,
		"data":       message,
	})
}

// GetMessages returns the user's inbox: sent, received and broadcast
// messages, newest first.
func (h *CommunicationHandler) GetMessages(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	messages, err := h.store.Inbox(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query messages"})
		return
	}

	c.JSON(http.StatusOK, messages)
}

// GetConversation returns the ordered thread between two users.
func (h *CommunicationHandler) GetConversation(c *gin.Context) {
	user1, err := strconv.Atoi(c.Param("user1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	user2, err := strconv.Atoi(c.Param("user2"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	messages, err := h.store.Conversation(c.Request.Context(), user1, user2)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query conversation"})
		return
	}

	c.JSON(http.StatusOK, messages)
}

// GetProjectMessages returns a project's message thread.
func (h *CommunicationHandler) GetProjectMessages(c *gin.Context) {
	projectID, err := strconv.Atoi(c.Param("projectId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
		return
	}

	messages, err := h.store.ProjectMessages(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query project messages"})
		return
	}

	c.JSON(http.StatusOK, messages)
}

// MarkMessageRead flips the read flag; only the receiver may do so.
func (h *CommunicationHandler) MarkMessageRead(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("messageId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	var req models.MarkMessageReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.dispatcher.MarkMessageRead(c.Request.Context(), messageID, req.UserID)
	if err != nil {
		if errors.Is(err, comm.ErrNotReceiver) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Message not found or you are not the receiver"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark message as read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Message marked as read",
		"message_id": messageID,
	})
}

// MarkConversationRead bulk-flips all unread messages from the other user.
func (h *CommunicationHandler) MarkConversationRead(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	otherUserID, err := strconv.Atoi(c.Param("otherUserId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	count, err := h.dispatcher.MarkConversationRead(c.Request.Context(), userID, otherUserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark conversation as read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "Conversation marked as read",
		"messages_updated": count,
	})
}

// CreateNotification persists a notification and pushes it to the recipient
// when connected.
func (h *CommunicationHandler) CreateNotification(c *gin.Context) {
	var req models.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notification, err := h.dispatcher.CreateNotification(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create notification"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":         "Notification created successfully",
		"notification_id": notification.ID,
	})
}

// GetNotifications lists a user's notifications, newest first.
func (h *CommunicationHandler) GetNotifications(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	notifications, err := h.store.Notifications(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query notifications"})
		return
	}

	c.JSON(http.StatusOK, notifications)
}

// MarkNotificationRead flips a notification's read flag.
func (h *CommunicationHandler) MarkNotificationRead(c *gin.Context) {
	notificationID, err := strconv.Atoi(c.Param("notificationId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	ok, err := h.store.MarkNotificationRead(c.Request.Context(), notificationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notification as read"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// GetUnreadCount returns unread message and notification counts.
func (h *CommunicationHandler) GetUnreadCount(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	counts, err := h.dispatcher.UnreadCounts(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get unread counts"})
		return
	}

	c.JSON(http.StatusOK, counts)
}

// GetUnreadBySender returns per-sender unread message counts.
func (h *CommunicationHandler) GetUnreadBySender(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	counts, err := h.store.UnreadBySender(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get unread counts"})
		return
	}

	c.JSON(http.StatusOK, counts)
}

// GetChatUsers returns the user directory for the chat UI.
func (h *CommunicationHandler) GetChatUsers(c *gin.Context) {
	users, err := h.store.ChatUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query users"})
		return
	}

	c.JSON(http.StatusOK, users)
}
