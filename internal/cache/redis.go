// Package cache holds the shared redis client, the key inventory and
// cache-aside helpers.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"skillswap/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const clientName = "skillswap-api"

var client *redis.Client

// keyspaces are the key and channel families the service writes. Errors are
// counted per family so a failing history cache is told apart from failing
// ws tickets.
var keyspaces = []string{
	"user:", "skill:", "chat:history:", "chat:booking:", "ws_ticket:",
	"blacklist:", "presence:", "ratelimit:", "notifications:",
}

func keyspace(cmd redis.Cmder) string {
	args := cmd.Args()
	if len(args) < 2 {
		return "none"
	}
	key, ok := args[1].(string)
	if !ok {
		return "other"
	}
	for _, prefix := range keyspaces {
		if strings.HasPrefix(key, prefix) {
			return strings.TrimSuffix(prefix, ":")
		}
	}
	return "other"
}

type metricsHook struct{}

func (metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			middleware.RedisErrors.WithLabelValues(cmd.Name(), keyspace(cmd)).Inc()
		}
		return err
	}
}

func (metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			space := "none"
			if len(cmds) > 0 {
				space = keyspace(cmds[len(cmds)-1])
			}
			middleware.RedisErrors.WithLabelValues("pipeline", space).Inc()
		}
		return err
	}
}

// Options turns REDIS_URL into client options. A bare host:port is accepted.
func Options(rawURL string) (*redis.Options, error) {
	var opts *redis.Options
	if strings.Contains(rawURL, "://") {
		parsed, err := redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: rawURL}
	}
	opts.ClientName = clientName
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 3 * time.Second
	}
	return opts, nil
}

// Open connects and pings. The client carries the metrics hook.
func Open(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := Options(rawURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opts)
	c.AddHook(metricsHook{})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// InitRedis sets the shared client. When redis is unreachable the client
// stays nil and the service runs without cache, pub/sub fan-out or tickets.
func InitRedis(rawURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Open(ctx, rawURL)
	if err != nil {
		middleware.Logger.Warn("redis unavailable, continuing without cache and realtime fan-out",
			slog.String("error", err.Error()))
		client = nil
		return
	}
	middleware.Logger.Info("redis connected", slog.String("addr", c.Options().Addr))
	client = c
}

// SetClient replaces the shared client. Tests use it to point the cache at miniredis.
func SetClient(c *redis.Client) {
	client = c
	if c != nil {
		c.AddHook(metricsHook{})
	}
}

// GetClient returns the shared client, nil when redis is not configured.
func GetClient() *redis.Client {
	return client
}
