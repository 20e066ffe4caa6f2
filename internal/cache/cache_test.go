package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		_ = client.Close()
		client = nil
	})
	return mr
}

type payload struct {
	Name string `json:"name"`
}

func TestAside_FetchesOnceThenServesFromCache(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *payload) func() error {
		return func() error {
			calls++
			dest.Name = "ada"
			return nil
		}
	}

	var first payload
	require.NoError(t, Aside(ctx, UserKey("u1"), &first, UserTTL, fetch(&first)))
	assert.Equal(t, "ada", first.Name)
	assert.True(t, mr.Exists("user:u1"))

	var second payload
	require.NoError(t, Aside(ctx, UserKey("u1"), &second, UserTTL, fetch(&second)))
	assert.Equal(t, "ada", second.Name)
	assert.Equal(t, 1, calls)

	mr.FastForward(UserTTL + time.Second)
	var third payload
	require.NoError(t, Aside(ctx, UserKey("u1"), &third, UserTTL, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := setupMiniredis(t)
	boom := errors.New("boom")

	var dest payload
	err := Aside(context.Background(), SkillKey("s1"), &dest, SkillTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("skill:s1"))
}

func TestAside_WithoutRedisCallsFetch(t *testing.T) {
	client = nil
	var dest payload
	err := Aside(context.Background(), "k", &dest, time.Minute, func() error {
		dest.Name = "direct"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", dest.Name)
}

func TestInvalidateChatHistory(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, ChatHistoryKey("b1"), []payload{{Name: "x"}}, ChatHistoryTTL))
	assert.True(t, mr.Exists("chat:history:b1"))

	InvalidateChatHistory(ctx, "b1")
	assert.False(t, mr.Exists("chat:history:b1"))

	var out []payload
	found, err := GetJSON(ctx, ChatHistoryKey("b1"), &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInitRedis_InvalidURLLeavesClientNil(t *testing.T) {
	InitRedis("redis://%zz")
	assert.Nil(t, GetClient())
}

func TestOptions(t *testing.T) {
	opts, err := Options("localhost:6380")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, clientName, opts.ClientName)
	assert.Equal(t, 3*time.Second, opts.DialTimeout)

	opts, err = Options("redis://:secret@cache:6379/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = Options("redis://%zz")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := Open(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	assert.NoError(t, c.Set(context.Background(), UserKey("u1"), "x", time.Minute).Err())
	require.NoError(t, c.Close())

	addr := mr.Addr()
	mr.Close()
	_, err = Open(context.Background(), addr)
	assert.Error(t, err)
}

func TestKeyspace(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		cmd  redis.Cmder
		want string
	}{
		{redis.NewStringCmd(ctx, "get", UserKey("u1")), "user"},
		{redis.NewStringCmd(ctx, "get", ChatHistoryKey("b1")), "chat:history"},
		{redis.NewIntCmd(ctx, "publish", "chat:booking:b1", "{}"), "chat:booking"},
		{redis.NewStringCmd(ctx, "getdel", WSTicketKey("t")), "ws_ticket"},
		{redis.NewIntCmd(ctx, "zadd", "presence:notifications", 1, "u1"), "presence"},
		{redis.NewIntCmd(ctx, "incr", "ratelimit:send_chat:user:u1"), "ratelimit"},
		{redis.NewStringCmd(ctx, "get", "unrelated"), "other"},
		{redis.NewStatusCmd(ctx, "ping"), "none"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keyspace(tt.cmd), tt.cmd.Name())
	}
}
