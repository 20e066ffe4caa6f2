package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvFrame(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "send queue closed")
		return string(msg)
	case <-time.After(testEventuallyTimeout):
		t.Fatalf("no message for %s", c.UserID)
		return ""
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected message for %s: %s", c.UserID, msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoomHub_LocalBroadcastAndIsolation(t *testing.T) {
	hub := NewRoomHub(nil)
	defer func() { _ = hub.Shutdown(context.Background()) }()

	learner, err := hub.Join("b1", "learner", "student", nil)
	require.NoError(t, err)
	teacher, err := hub.Join("b1", "teacher", "mentor", nil)
	require.NoError(t, err)
	outsider, err := hub.Join("b2", "someone", "student", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"learner", "teacher"}, hub.Members("b1"))
	assert.Equal(t, 2, hub.RoomCount())

	ctx := context.Background()
	hub.Broadcast(ctx, "b1", []byte(`{"event":"chat-message"}`), nil)
	assert.Equal(t, `{"event":"chat-message"}`, recvFrame(t, learner))
	assert.Equal(t, `{"event":"chat-message"}`, recvFrame(t, teacher))
	assertSilent(t, outsider)

	hub.Broadcast(ctx, "b1", []byte(`{"event":"typing"}`), learner)
	assert.Equal(t, `{"event":"typing"}`, recvFrame(t, teacher))
	assertSilent(t, learner)
}

func TestRoomHub_LeaveReleasesRoom(t *testing.T) {
	hub := NewRoomHub(nil)
	defer func() { _ = hub.Shutdown(context.Background()) }()

	c, err := hub.Join("b1", "u1", "student", nil)
	require.NoError(t, err)

	assert.True(t, hub.Leave(c))
	assert.False(t, hub.Leave(c), "second leave is a no-op")
	assert.Empty(t, hub.Members("b1"))
	assert.Zero(t, hub.RoomCount())

	_, ok := <-c.Send
	assert.False(t, ok, "send queue is closed on leave")
}

func TestRoomHub_JoinAfterShutdown(t *testing.T) {
	hub := NewRoomHub(nil)
	require.NoError(t, hub.Shutdown(context.Background()))

	_, err := hub.Join("b1", "u1", "student", nil)
	assert.ErrorIs(t, err, ErrRoomHubClosed)
}

func TestRoomHub_RedisFanOutAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	rdbA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rdbB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdbA.Close(); _ = rdbB.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instanceA := NewRoomHub(rdbA)
	instanceB := NewRoomHub(rdbB)
	defer func() {
		_ = instanceA.Shutdown(context.Background())
		_ = instanceB.Shutdown(context.Background())
	}()
	require.NoError(t, instanceA.StartWiring(ctx))
	require.NoError(t, instanceB.StartWiring(ctx))

	sender, err := instanceA.Join("b1", "learner", "student", nil)
	require.NoError(t, err)
	receiver, err := instanceB.Join("b1", "teacher", "mentor", nil)
	require.NoError(t, err)
	elsewhere, err := instanceB.Join("b9", "other", "student", nil)
	require.NoError(t, err)

	instanceA.Broadcast(ctx, "b1", []byte(`{"event":"chat-message","data":{"content":"hi"}}`), nil)
	assert.JSONEq(t, `{"event":"chat-message","data":{"content":"hi"}}`, recvFrame(t, sender))
	assert.JSONEq(t, `{"event":"chat-message","data":{"content":"hi"}}`, recvFrame(t, receiver))

	instanceA.Broadcast(ctx, "b1", []byte(`{"event":"typing","data":{"userId":"learner","isTyping":true}}`), sender)
	assert.JSONEq(t, `{"event":"typing","data":{"userId":"learner","isTyping":true}}`, recvFrame(t, receiver))
	assertSilent(t, sender)
	assertSilent(t, elsewhere)
}
