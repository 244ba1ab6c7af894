package comm

import (
	"context"
	"errors"

	"fieldops/internal/models"
)

// ErrNotReceiver is returned when a read flip is requested by a user who is
// not the message's receiver (or the message does not exist; the two cases
// are deliberately indistinguishable to the caller).
var ErrNotReceiver = errors.New("message not found or user is not the receiver")

// Store is the durable side of the dispatcher. Persistence here is the
// durability boundary: once a write succeeds, the operation succeeded,
// whatever happens to the live push afterwards.
type Store interface {
	// InsertMessage persists m and fills in its assigned ID, read flag and
	// creation timestamp.
	InsertMessage(ctx context.Context, m *models.Message) error

	// InsertNotification persists n and fills in its assigned ID and
	// creation timestamp.
	InsertNotification(ctx context.Context, n *models.Notification) error

	// Username resolves a user's display name.
	Username(ctx context.Context, userID int) (string, error)

	// MarkMessageRead flips the read flag only when userID is the
	// message's receiver. Returns false when no row matched.
	MarkMessageRead(ctx context.Context, messageID, userID int) (bool, error)

	// MarkConversationRead flips every unread message sent by
	// otherUserID to userID and returns the number of rows affected.
	MarkConversationRead(ctx context.Context, userID, otherUserID int) (int64, error)

	// UnreadCounts returns the user's unread message and notification
	// counts from durable state.
	UnreadCounts(ctx context.Context, userID int) (models.UnreadCounts, error)
}

// Pusher delivers a live event to the user's current connection, if any.
// Returns false when the user is offline or the event was dropped.
type Pusher interface {
	Push(userID string, event string, data any) bool
}
