package models

import "time"

// Message types
const (
	MessageTypeDirect    = "direct"
	MessageTypeBroadcast = "broadcast"
	MessageTypeProject   = "project"
)

type Message struct {
	ID         int       `json:"id" db:"id"`
	SenderID   int       `json:"sender_id" db:"sender_id"`
	ReceiverID *int      `json:"receiver_id" db:"receiver_id"`
	ProjectID  *int      `json:"project_id" db:"project_id"`
	Body       string    `json:"message" db:"message"`
	Type       string    `json:"message_type" db:"message_type"`
	IsRead     bool      `json:"is_read" db:"is_read"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`

	// Joined fields (not always populated)
	SenderName   string `json:"sender_name,omitempty"`
	ReceiverName string `json:"receiver_name,omitempty"`
	ProjectName  string `json:"project_name,omitempty"`
}

type Notification struct {
	ID          int       `json:"id" db:"id"`
	UserID      int       `json:"user_id" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	Message     string    `json:"message" db:"message"`
	Type        string    `json:"type" db:"type"`
	RelatedID   *int      `json:"related_id,omitempty" db:"related_id"`
	RelatedType *string   `json:"related_type,omitempty" db:"related_type"`
	IsRead      bool      `json:"is_read" db:"is_read"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type SendMessageRequest struct {
	SenderID    int    `json:"sender_id" validate:"required"`
	ReceiverID  *int   `json:"receiver_id"`
	ProjectID   *int   `json:"project_id"`
	Message     string `json:"message" validate:"required"`
	MessageType string `json:"message_type" validate:"omitempty,oneof=direct broadcast project"`
}

type CreateNotificationRequest struct {
	UserID      int     `json:"user_id" validate:"required"`
	Title       string  `json:"title" validate:"required"`
	Message     string  `json:"message" validate:"required"`
	Type        string  `json:"type"`
	RelatedID   *int    `json:"related_id"`
	RelatedType *string `json:"related_type"`
}

type MarkMessageReadRequest struct {
	UserID int `json:"user_id" validate:"required"`
}

type UnreadCounts struct {
	UnreadMessages      int `json:"unread_messages"`
	UnreadNotifications int `json:"unread_notifications"`
}

// ChatUser is the directory entry returned to the chat UI.
type ChatUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
