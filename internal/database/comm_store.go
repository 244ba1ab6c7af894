package database

import (
	"context"
	"fmt"

	"fieldops/internal/models"
)

// CommStore is the pgx-backed store for messages, notifications and the
// user directory. It implements comm.Store.
type CommStore struct {
	db *DB
}

func NewCommStore(db *DB) *CommStore {
	return &CommStore{db: db}
}

func (s *CommStore) InsertMessage(ctx context.Context, m *models.Message) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO messages (sender_id, receiver_id, project_id, message, message_type)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, is_read, created_at`,
		m.SenderID, m.ReceiverID, m.ProjectID, m.Body, m.Type).Scan(
		&m.ID, &m.IsRead, &m.CreatedAt)
}

func (s *CommStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO notifications (user_id, title, message, type, related_id, related_type)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, is_read, created_at`,
		n.UserID, n.Title, n.Message, n.Type, n.RelatedID, n.RelatedType).Scan(
		&n.ID, &n.IsRead, &n.CreatedAt)
}

func (s *CommStore) Username(ctx context.Context, userID int) (string, error) {
	var username string
	err := s.db.QueryRow(ctx,
		"SELECT username FROM users WHERE id = $1", userID).Scan(&username)
	if err != nil {
		return "", fmt.Errorf("failed to look up user %d: %w", userID, err)
	}
	return username, nil
}

func (s *CommStore) MarkMessageRead(ctx context.Context, messageID, userID int) (bool, error) {
	result, err := s.db.Exec(ctx,
		"UPDATE messages SET is_read = TRUE WHERE id = $1 AND receiver_id = $2",
		messageID, userID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (s *CommStore) MarkConversationRead(ctx context.Context, userID, otherUserID int) (int64, error) {
	result, err := s.db.Exec(ctx,
		`UPDATE messages
		 SET is_read = TRUE
		 WHERE receiver_id = $1 AND sender_id = $2 AND is_read = FALSE`,
		userID, otherUserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (s *CommStore) UnreadCounts(ctx context.Context, userID int) (models.UnreadCounts, error) {
	var counts models.UnreadCounts

	err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND is_read = FALSE",
		userID).Scan(&counts.UnreadMessages)
	if err != nil {
		return counts, err
	}

	err = s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE",
		userID).Scan(&counts.UnreadNotifications)
	if err != nil {
		return counts, err
	}

	return counts, nil
}

// Inbox returns every message touching the user plus broadcasts, newest
// first, with display names joined in.
func (s *CommStore) Inbox(ctx context.Context, userID int) ([]models.Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT m.id, m.sender_id, m.receiver_id, m.project_id, m.message, m.message_type,
		        m.is_read, m.created_at, u1.username, u2.username, p.name
		 FROM messages m
		 LEFT JOIN users u1 ON m.sender_id = u1.id
		 LEFT JOIN users u2 ON m.receiver_id = u2.id
		 LEFT JOIN projects p ON m.project_id = p.id
		 WHERE m.receiver_id = $1 OR m.sender_id = $1 OR m.message_type = 'broadcast'
		 ORDER BY m.created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var senderName, receiverName, projectName *string
		err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.ProjectID, &m.Body, &m.Type,
			&m.IsRead, &m.CreatedAt, &senderName, &receiverName, &projectName)
		if err != nil {
			return nil, err
		}
		if senderName != nil {
			m.SenderName = *senderName
		}
		if receiverName != nil {
			m.ReceiverName = *receiverName
		}
		if projectName != nil {
			m.ProjectName = *projectName
		}
		messages = append(messages, m)
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, rows.Err()
}

// Conversation returns the two-way thread between two users in chronological
// order.
func (s *CommStore) Conversation(ctx context.Context, user1, user2 int) ([]models.Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT m.id, m.sender_id, m.receiver_id, m.project_id, m.message, m.message_type,
		        m.is_read, m.created_at, u.username
		 FROM messages m
		 JOIN users u ON m.sender_id = u.id
		 WHERE (m.sender_id = $1 AND m.receiver_id = $2) OR (m.sender_id = $2 AND m.receiver_id = $1)
		 ORDER BY m.created_at ASC`,
		user1, user2)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanThread(rows)
}

// ProjectMessages returns a project's thread, newest first.
func (s *CommStore) ProjectMessages(ctx context.Context, projectID int) ([]models.Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT m.id, m.sender_id, m.receiver_id, m.project_id, m.message, m.message_type,
		        m.is_read, m.created_at, u.username
		 FROM messages m
		 JOIN users u ON m.sender_id = u.id
		 WHERE m.project_id = $1
		 ORDER BY m.created_at DESC`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanThread(rows)
}

func (s *CommStore) Notifications(ctx context.Context, userID int) ([]models.Notification, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, title, message, type, related_id, related_type, is_read, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type,
			&n.RelatedID, &n.RelatedType, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, rows.Err()
}

func (s *CommStore) MarkNotificationRead(ctx context.Context, notificationID int) (bool, error) {
	result, err := s.db.Exec(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE id = $1", notificationID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// UnreadBySender returns per-sender unread message counts for the user.
func (s *CommStore) UnreadBySender(ctx context.Context, userID int) (map[int]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT sender_id, COUNT(*)
		 FROM messages
		 WHERE receiver_id = $1 AND is_read = FALSE
		 GROUP BY sender_id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var senderID, count int
		if err := rows.Scan(&senderID, &count); err != nil {
			return nil, err
		}
		counts[senderID] = count
	}
	return counts, rows.Err()
}

func (s *CommStore) ChatUsers(ctx context.Context) ([]models.ChatUser, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, username, role FROM users ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.ChatUser
	for rows.Next() {
		var u models.ChatUser
		if err := rows.Scan(&u.ID, &u.Username, &u.Role); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if users == nil {
		users = []models.ChatUser{}
	}
	return users, rows.Err()
}

type messageRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanThread(rows messageRows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var m models.Message
		err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.ProjectID, &m.Body, &m.Type,
			&m.IsRead, &m.CreatedAt, &m.SenderName)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, rows.Err()
}
