package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type presenceEvents struct {
	mu      sync.Mutex
	online  []string
	offline []string
}

func (e *presenceEvents) onOnline(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.online = append(e.online, id)
}

func (e *presenceEvents) onOffline(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.offline = append(e.offline, id)
}

func (e *presenceEvents) offlineCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.offline)
}

func newTestPresence(t *testing.T, rdb *redis.Client, grace time.Duration) (*Presence, *presenceEvents) {
	t.Helper()
	ev := &presenceEvents{}
	p := NewPresence(rdb, PresenceConfig{
		Key:          "presence:test",
		TTL:          time.Minute,
		OfflineGrace: grace,
		ReapInterval: time.Hour,
		OnOnline:     ev.onOnline,
		OnOffline:    ev.onOffline,
	})
	t.Cleanup(p.Stop)
	return p, ev
}

func TestPresence_RapidReconnectStaysOnline(t *testing.T) {
	p, ev := newTestPresence(t, nil, 40*time.Millisecond)
	ctx := context.Background()

	p.Connect(ctx, "u10")
	p.Disconnect("u10")
	p.Connect(ctx, "u10")

	assert.Never(t, func() bool { return ev.offlineCount() > 0 }, 20*testPollInterval, testPollInterval)
	assert.True(t, p.IsOnline(ctx, "u10"))
	assert.Equal(t, []string{"u10"}, ev.online, "online fires once")
}

func TestPresence_LastDisconnectGoesOfflineOnce(t *testing.T) {
	p, ev := newTestPresence(t, nil, 30*time.Millisecond)
	ctx := context.Background()

	p.Connect(ctx, "u15")
	p.Connect(ctx, "u15")

	p.Disconnect("u15")
	assert.Never(t, func() bool { return ev.offlineCount() > 0 }, 10*testPollInterval, testPollInterval)
	assert.True(t, p.IsOnline(ctx, "u15"))

	p.Disconnect("u15")
	assert.Eventually(t, func() bool { return ev.offlineCount() == 1 }, testEventuallyTimeout, testPollInterval)
	assert.False(t, p.IsOnline(ctx, "u15"))
}

func TestPresence_HeartbeatsVisibleAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()
	ctx := context.Background()

	a, _ := newTestPresence(t, rdb, 20*time.Millisecond)
	b, _ := newTestPresence(t, rdb, 20*time.Millisecond)

	a.Connect(ctx, "mentor-1")
	assert.True(t, b.IsOnline(ctx, "mentor-1"))
	assert.ElementsMatch(t, []string{"mentor-1"}, b.Online(ctx))

	a.Disconnect("mentor-1")
	assert.Eventually(t, func() bool { return !b.IsOnline(ctx, "mentor-1") }, testEventuallyTimeout, testPollInterval)
}

func TestPresence_ReapExpiresStaleHeartbeats(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()
	ctx := context.Background()

	p, ev := newTestPresence(t, rdb, time.Second)

	stale := float64(time.Now().Add(-2 * time.Minute).Unix())
	require.NoError(t, rdb.ZAdd(ctx, "presence:test", redis.Z{Score: stale, Member: "gone"}).Err())
	p.Connect(ctx, "here")
	assert.False(t, p.IsOnline(ctx, "gone"))

	p.reap(ctx)

	members, err := rdb.ZRange(ctx, "presence:test", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"here"}, members)
	assert.Equal(t, []string{"gone"}, ev.offline)
}

func TestPresence_ReapKeepsIdleLocalSocketsFresh(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()
	ctx := context.Background()

	a, evA := newTestPresence(t, rdb, time.Second)
	b, _ := newTestPresence(t, rdb, time.Second)

	a.Connect(ctx, "idle")
	// The socket stays open but sends nothing: its last heartbeat ages past TTL.
	stale := float64(time.Now().Add(-2 * time.Minute).Unix())
	require.NoError(t, rdb.ZAdd(ctx, "presence:test", redis.Z{Score: stale, Member: "idle"}).Err())
	assert.False(t, b.IsOnline(ctx, "idle"))

	a.reap(ctx)

	assert.True(t, b.IsOnline(ctx, "idle"))
	assert.Contains(t, b.Online(ctx), "idle")
	assert.Empty(t, evA.offline)
}

func TestPresence_IdleSocketSurvivesReapLoop(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()
	ctx := context.Background()

	cfg := PresenceConfig{Key: "presence:loop", TTL: time.Second, ReapInterval: 200 * time.Millisecond}
	a := NewPresence(rdb, cfg)
	defer a.Stop()
	b := NewPresence(rdb, cfg)
	defer b.Stop()

	a.Connect(ctx, "u1")
	time.Sleep(3 * time.Second)

	assert.True(t, b.IsOnline(ctx, "u1"), "idle socket must stay visible past TTL")
}

func TestNewPresence_ReapIntervalFitsInsideTTL(t *testing.T) {
	p := NewPresence(nil, PresenceConfig{TTL: 30 * time.Second, ReapInterval: time.Minute})
	defer p.Stop()
	assert.Equal(t, 10*time.Second, p.cfg.ReapInterval)
}

func TestHub_PresenceFollowsSockets(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()
	hub.presence.cfg.OfflineGrace = 20 * time.Millisecond

	offline := make(chan string, 1)
	hub.SetPresenceCallbacks(nil, func(id string) { offline <- id })

	client, err := hub.Register("u1", nil)
	require.NoError(t, err)
	assert.True(t, hub.IsOnline("u1"))
	assert.Equal(t, []string{"u1"}, hub.OnlineUsers(context.Background()))

	hub.UnregisterClient(client)
	select {
	case id := <-offline:
		assert.Equal(t, "u1", id)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("expected offline callback")
	}
	assert.False(t, hub.IsOnline("u1"))
}
