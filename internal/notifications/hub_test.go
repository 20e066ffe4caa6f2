package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_StartWiringDeliversUserChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := NewNotifier(rdb)
	assert.NoError(t, hub.StartWiring(ctx, n))

	target, err := hub.Register("alice", nil)
	assert.NoError(t, err)
	other, err := hub.Register("bob", nil)
	assert.NoError(t, err)

	assert.NoError(t, n.PublishUser(ctx, "alice", `{"event":"notification"}`))
	select {
	case msg := <-target.Send:
		assert.JSONEq(t, `{"event":"notification"}`, string(msg))
	case <-time.After(testEventuallyTimeout):
		t.Fatal("expected notification for alice")
	}
	assert.Empty(t, other.Send)
}
