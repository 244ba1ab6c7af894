package comm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fieldops/internal/models"
)

type fakeStore struct {
	messages      []*models.Message
	notifications []*models.Notification
	users         map[int]string

	failNotifications bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[int]string{}}
}

func (s *fakeStore) InsertMessage(_ context.Context, m *models.Message) error {
	m.ID = len(s.messages) + 1
	m.CreatedAt = time.Now()
	stored := *m
	s.messages = append(s.messages, &stored)
	return nil
}

func (s *fakeStore) InsertNotification(_ context.Context, n *models.Notification) error {
	if s.failNotifications {
		return assert.AnError
	}
	n.ID = len(s.notifications) + 1
	n.CreatedAt = time.Now()
	stored := *n
	s.notifications = append(s.notifications, &stored)
	return nil
}

func (s *fakeStore) Username(_ context.Context, userID int) (string, error) {
	name, ok := s.users[userID]
	if !ok {
		return "", assert.AnError
	}
	return name, nil
}

func (s *fakeStore) MarkMessageRead(_ context.Context, messageID, userID int) (bool, error) {
	for _, m := range s.messages {
		if m.ID == messageID && m.ReceiverID != nil && *m.ReceiverID == userID {
			m.IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) MarkConversationRead(_ context.Context, userID, otherUserID int) (int64, error) {
	var count int64
	for _, m := range s.messages {
		if m.ReceiverID != nil && *m.ReceiverID == userID && m.SenderID == otherUserID && !m.IsRead {
			m.IsRead = true
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) UnreadCounts(_ context.Context, userID int) (models.UnreadCounts, error) {
	var counts models.UnreadCounts
	for _, m := range s.messages {
		if m.ReceiverID != nil && *m.ReceiverID == userID && !m.IsRead {
			counts.UnreadMessages++
		}
	}
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			counts.UnreadNotifications++
		}
	}
	return counts, nil
}

type pushedEvent struct {
	userID string
	event  string
	data   any
}

type fakePusher struct {
	online map[string]bool
	events []pushedEvent
}

func (p *fakePusher) Push(userID string, event string, data any) bool {
	if !p.online[userID] {
		return false
	}
	p.events = append(p.events, pushedEvent{userID: userID, event: event, data: data})
	return true
}

func newDispatcherForTest(store Store, pusher Pusher) *Dispatcher {
	return NewDispatcher(store, pusher, zap.NewNop())
}

func intPtr(v int) *int { return &v }

func TestSendMessageSucceedsWithOfflineReceiver(t *testing.T) {
	store := newFakeStore()
	store.users[1] = "alice"
	pusher := &fakePusher{online: map[string]bool{}}
	d := newDispatcherForTest(store, pusher)

	msg, err := d.SendMessage(context.Background(), models.SendMessageRequest{
		SenderID:   1,
		ReceiverID: intPtr(2),
		Message:    "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, msg.ID)
	assert.False(t, msg.IsRead)

	// Durable copies exist even though nothing was delivered live.
	require.Len(t, store.messages, 1)
	require.Len(t, store.notifications, 1)
	assert.Empty(t, pusher.events)
}

func TestSendMessagePushesToConnectedReceiver(t *testing.T) {
	store := newFakeStore()
	store.users[1] = "alice"
	pusher := &fakePusher{online: map[string]bool{"2": true}}
	d := newDispatcherForTest(store, pusher)

	msg, err := d.SendMessage(context.Background(), models.SendMessageRequest{
		SenderID:   1,
		ReceiverID: intPtr(2),
		Message:    "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.SenderName)
	assert.Equal(t, models.MessageTypeDirect, msg.Type)

	require.Len(t, pusher.events, 2)
	assert.Equal(t, EventNewNotification, pusher.events[0].event)
	assert.Equal(t, EventNewMessage, pusher.events[1].event)
	assert.Equal(t, "2", pusher.events[0].userID)

	notification := pusher.events[0].data.(*models.Notification)
	assert.Equal(t, "New message from alice", notification.Title)
}

func TestSendMessageBroadcastSkipsNotification(t *testing.T) {
	store := newFakeStore()
	store.users[1] = "alice"
	pusher := &fakePusher{online: map[string]bool{"2": true}}
	d := newDispatcherForTest(store, pusher)

	_, err := d.SendMessage(context.Background(), models.SendMessageRequest{
		SenderID:    1,
		Message:     "all hands",
		MessageType: models.MessageTypeBroadcast,
	})
	require.NoError(t, err)

	assert.Len(t, store.messages, 1)
	assert.Empty(t, store.notifications)
	assert.Empty(t, pusher.events)
}

func TestSendMessageSucceedsWhenSenderLookupFails(t *testing.T) {
	store := newFakeStore() // no users registered
	pusher := &fakePusher{online: map[string]bool{"2": true}}
	d := newDispatcherForTest(store, pusher)

	msg, err := d.SendMessage(context.Background(), models.SendMessageRequest{
		SenderID:   1,
		ReceiverID: intPtr(2),
		Message:    "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "Unknown", msg.SenderName)

	notification := pusher.events[0].data.(*models.Notification)
	assert.Equal(t, "New message from Unknown", notification.Title)
}

func TestSendMessageSucceedsWhenNotificationPersistFails(t *testing.T) {
	store := newFakeStore()
	store.users[1] = "alice"
	store.failNotifications = true
	pusher := &fakePusher{online: map[string]bool{"2": true}}
	d := newDispatcherForTest(store, pusher)

	_, err := d.SendMessage(context.Background(), models.SendMessageRequest{
		SenderID:   1,
		ReceiverID: intPtr(2),
		Message:    "hello",
	})
	require.NoError(t, err)

	// The message push still happens; only the notification is skipped.
	require.Len(t, pusher.events, 1)
	assert.Equal(t, EventNewMessage, pusher.events[0].event)
}

func TestNotificationPreviewTruncation(t *testing.T) {
	store := newFakeStore()
	store.users[1] = "alice"
	pusher := &fakePusher{online: map[string]bool{}}
	d := newDispatcherForTest(store, pusher)

	body := strings.Repeat("x", 120)
	_, err := d.SendMessage(context.Background(), models.SendMessageRequest{
		SenderID:   1,
		ReceiverID: intPtr(2),
		Message:    body,
	})
	require.NoError(t, err)

	require.Len(t, store.notifications, 1)
	preview := store.notifications[0].Message
	assert.Equal(t, strings.Repeat("x", 50)+"...", preview)
}

func TestNotificationPreviewShortBodyUntouched(t *testing.T) {
	assert.Equal(t, "hello", previewBody("hello"))
	assert.Equal(t, strings.Repeat("y", 50), previewBody(strings.Repeat("y", 50)))
}

func TestMarkMessageReadOnlyByReceiver(t *testing.T) {
	store := newFakeStore()
	store.users[1] = "alice"
	pusher := &fakePusher{online: map[string]bool{}}
	d := newDispatcherForTest(store, pusher)

	msg, err := d.SendMessage(context.Background(), models.SendMessageRequest{
		SenderID:   1,
		ReceiverID: intPtr(2),
		Message:    "hello",
	})
	require.NoError(t, err)

	// Neither the sender nor a third party may flip the flag.
	err = d.MarkMessageRead(context.Background(), msg.ID, 1)
	assert.ErrorIs(t, err, ErrNotReceiver)
	err = d.MarkMessageRead(context.Background(), msg.ID, 99)
	assert.ErrorIs(t, err, ErrNotReceiver)
	assert.False(t, store.messages[0].IsRead)

	require.NoError(t, d.MarkMessageRead(context.Background(), msg.ID, 2))
	assert.True(t, store.messages[0].IsRead)
}

func TestMarkConversationRead(t *testing.T) {
	store := newFakeStore()
	store.users[1] = "alice"
	pusher := &fakePusher{online: map[string]bool{}}
	d := newDispatcherForTest(store, pusher)

	for i := 0; i < 3; i++ {
		_, err := d.SendMessage(context.Background(), models.SendMessageRequest{
			SenderID:   1,
			ReceiverID: intPtr(2),
			Message:    "hello",
		})
		require.NoError(t, err)
	}

	count, err := d.MarkConversationRead(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Second pass finds nothing unread.
	count, err = d.MarkConversationRead(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestUnreadCounts(t *testing.T) {
	store := newFakeStore()
	store.users[1] = "alice"
	pusher := &fakePusher{online: map[string]bool{}}
	d := newDispatcherForTest(store, pusher)

	_, err := d.SendMessage(context.Background(), models.SendMessageRequest{
		SenderID:   1,
		ReceiverID: intPtr(2),
		Message:    "hello",
	})
	require.NoError(t, err)

	_, err = d.CreateNotification(context.Background(), models.CreateNotificationRequest{
		UserID:  2,
		Title:   "Task assigned",
		Message: "You have been assigned a task",
	})
	require.NoError(t, err)

	counts, err := d.UnreadCounts(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.UnreadMessages)
	// One notification from the message, one created directly.
	assert.Equal(t, 2, counts.UnreadNotifications)
}

func TestCreateNotificationDefaultsTypeAndPushes(t *testing.T) {
	store := newFakeStore()
	pusher := &fakePusher{online: map[string]bool{"5": true}}
	d := newDispatcherForTest(store, pusher)

	n, err := d.CreateNotification(context.Background(), models.CreateNotificationRequest{
		UserID:  5,
		Title:   "Safety check due",
		Message: "Monthly harness inspection",
	})
	require.NoError(t, err)
	assert.Equal(t, "info", n.Type)

	require.Len(t, pusher.events, 1)
	assert.Equal(t, EventNewNotification, pusher.events[0].event)
	assert.Equal(t, "5", pusher.events[0].userID)
}
