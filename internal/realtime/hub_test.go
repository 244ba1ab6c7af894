package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(h *Hub, id string) *Client {
	return &Client{
		id:   id,
		hub:  h,
		send: make(chan Event, 8),
	}
}

func TestRegisterLastConnectWins(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := newTestClient(h, "conn-a")
	b := newTestClient(h, "conn-b")

	h.Register("7", a)
	h.Register("7", b)

	current, ok := h.Lookup("7")
	require.True(t, ok)
	assert.Same(t, b, current)

	// The evicted connection's send channel is closed.
	_, open := <-a.send
	assert.False(t, open)
}

func TestUnregisterStaleConnectionIsNoOp(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := newTestClient(h, "conn-a")
	b := newTestClient(h, "conn-b")

	h.Register("7", a)
	h.Register("7", b)

	// Delayed teardown of the superseded connection must not remove the
	// newer mapping.
	h.Unregister(a)

	current, ok := h.Lookup("7")
	require.True(t, ok)
	assert.Same(t, b, current)
}

func TestUnregisterRemovesCurrentConnection(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := newTestClient(h, "conn-a")

	h.Register("7", a)
	h.Unregister(a)

	_, ok := h.Lookup("7")
	assert.False(t, ok)
	assert.Equal(t, 0, h.ConnectedCount())
}

func TestPushDeliversToConnectedUser(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := newTestClient(h, "conn-a")
	h.Register("42", a)

	delivered := h.Push("42", "new_message", map[string]any{"id": 1})
	require.True(t, delivered)

	event := <-a.send
	assert.Equal(t, "new_message", event.Type)
}

func TestPushToOfflineUserReturnsFalse(t *testing.T) {
	h := NewHub(zap.NewNop())

	assert.False(t, h.Push("42", "new_message", nil))
}

func TestPushDropsWhenBufferFull(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := &Client{id: "conn-a", hub: h, send: make(chan Event)}
	h.Register("42", a)

	// Nobody is draining the unbuffered channel.
	assert.False(t, h.Push("42", "new_message", nil))
}

func TestOnlineUsers(t *testing.T) {
	h := NewHub(zap.NewNop())
	h.Register("1", newTestClient(h, "conn-a"))
	h.Register("2", newTestClient(h, "conn-b"))

	assert.ElementsMatch(t, []string{"1", "2"}, h.OnlineUsers())
	assert.Equal(t, 2, h.ConnectedCount())
}

func TestRejoinUnderNewIDDropsOldMapping(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := newTestClient(h, "conn-a")

	h.Register("7", a)
	h.Register("8", a)

	_, ok := h.Lookup("7")
	assert.False(t, ok)

	current, ok := h.Lookup("8")
	require.True(t, ok)
	assert.Same(t, a, current)
}
