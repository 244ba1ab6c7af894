package comm

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"fieldops/internal/models"
)

// Server → client event names.
const (
	EventNewMessage      = "new_message"
	EventNewNotification = "new_notification"
)

// previewLimit bounds the message body prefix embedded in the companion
// notification.
const previewLimit = 50

// Dispatcher persists messages and notifications and then attempts
// best-effort live delivery to the recipient's connection. Push failures are
// logged and swallowed: the durable copy is the source of truth and offline
// recipients pick records up later through the HTTP API.
type Dispatcher struct {
	store  Store
	pusher Pusher
	logger *zap.Logger
}

func NewDispatcher(store Store, pusher Pusher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		pusher: pusher,
		logger: logger,
	}
}

// SendMessage persists the message, persists a companion notification for a
// named receiver, and pushes both to the receiver if connected.
func (d *Dispatcher) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	if req.MessageType == "" {
		req.MessageType = models.MessageTypeDirect
	}

	msg := &models.Message{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		ProjectID:  req.ProjectID,
		Body:       req.Message,
		Type:       req.MessageType,
	}
	if err := d.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	// The message row is durable from here on. Anything that fails below
	// is logged, never surfaced to the sender.
	senderName, err := d.store.Username(ctx, req.SenderID)
	if err != nil {
		d.logger.Warn("failed to resolve sender name",
			zap.Int("sender_id", req.SenderID),
			zap.Error(err))
		senderName = "Unknown"
	}
	msg.SenderName = senderName

	if req.ReceiverID != nil {
		receiverID := *req.ReceiverID
		relatedType := "message"
		notification := &models.Notification{
			UserID:      receiverID,
			Title:       "New message from " + senderName,
			Message:     previewBody(req.Message),
			Type:        "message",
			RelatedID:   &msg.ID,
			RelatedType: &relatedType,
		}

		if err := d.store.InsertNotification(ctx, notification); err != nil {
			d.logger.Error("failed to persist message notification",
				zap.Int("receiver_id", receiverID),
				zap.Int("message_id", msg.ID),
				zap.Error(err))
		} else {
			d.push(receiverID, EventNewNotification, notification)
		}

		d.push(receiverID, EventNewMessage, msg)
	}

	return msg, nil
}

// CreateNotification persists a notification and pushes it to the recipient
// if connected.
func (d *Dispatcher) CreateNotification(ctx context.Context, req models.CreateNotificationRequest) (*models.Notification, error) {
	if req.Type == "" {
		req.Type = "info"
	}

	notification := &models.Notification{
		UserID:      req.UserID,
		Title:       req.Title,
		Message:     req.Message,
		Type:        req.Type,
		RelatedID:   req.RelatedID,
		RelatedType: req.RelatedType,
	}
	if err := d.store.InsertNotification(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	d.push(req.UserID, EventNewNotification, notification)
	return notification, nil
}

// MarkMessageRead flips the read flag if userID is the receiver of the
// message; otherwise ErrNotReceiver.
func (d *Dispatcher) MarkMessageRead(ctx context.Context, messageID, userID int) error {
	ok, err := d.store.MarkMessageRead(ctx, messageID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	if !ok {
		return ErrNotReceiver
	}
	return nil
}

// MarkConversationRead flips all unread messages from otherUserID to userID
// and returns the number affected.
func (d *Dispatcher) MarkConversationRead(ctx context.Context, userID, otherUserID int) (int64, error) {
	count, err := d.store.MarkConversationRead(ctx, userID, otherUserID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return count, nil
}

// UnreadCounts reports unread message and notification counts from durable
// state.
func (d *Dispatcher) UnreadCounts(ctx context.Context, userID int) (models.UnreadCounts, error) {
	counts, err := d.store.UnreadCounts(ctx, userID)
	if err != nil {
		return models.UnreadCounts{}, fmt.Errorf("failed to get unread counts: %w", err)
	}
	return counts, nil
}

func (d *Dispatcher) push(userID int, event string, data any) {
	if d.pusher.Push(strconv.Itoa(userID), event, data) {
		d.logger.Debug("pushed event",
			zap.String("event", event),
			zap.Int("user_id", userID))
		return
	}
	d.logger.Debug("recipient not connected, skipping push",
		zap.String("event", event),
		zap.Int("user_id", userID))
}

// previewBody truncates body to previewLimit runes, appending an ellipsis
// marker when truncated.
func previewBody(body string) string {
	runes := []rune(body)
	if len(runes) <= previewLimit {
		return body
	}
	return string(runes[:previewLimit]) + "..."
}
