// Package middleware provides the HTTP middleware stack: logging, auth tokens, rate limits, metrics and tracing.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Limit is a fixed-window quota on one action.
type Limit struct {
	Action string
	Max    int
	Window time.Duration
	// FailClosed answers 503 when redis cannot count; otherwise the action is allowed.
	FailClosed bool
}

var (
	RegisterLimit      = Limit{Action: "register", Max: 3, Window: 10 * time.Minute, FailClosed: true}
	LoginLimit         = Limit{Action: "login", Max: 10, Window: 5 * time.Minute, FailClosed: true}
	BookingCreateLimit = Limit{Action: "create_booking", Max: 20, Window: time.Hour}
	WSTicketLimit      = Limit{Action: "ws_ticket", Max: 30, Window: time.Minute}
	ChatSendLimit      = Limit{Action: "send_chat", Max: 15, Window: time.Minute}
)

var errNoLimiterStore = errors.New("rate limit store unavailable")

// Limiter counts actions per caller in redis under ratelimit:<action>:<subject>.
type Limiter struct {
	rdb     *redis.Client
	enabled bool
}

// NewLimiter returns a Limiter for env. Development, test and stress
// environments get a disabled limiter so local and load runs are not throttled.
func NewLimiter(rdb *redis.Client, env string) *Limiter {
	switch env {
	case "", "test", "development", "stress":
		return &Limiter{rdb: rdb}
	}
	return &Limiter{rdb: rdb, enabled: true}
}

func limitKey(action, subject string) string {
	return fmt.Sprintf("ratelimit:%s:%s", action, subject)
}

// Allow counts one action by subject and reports whether it is within the
// limit. When blocked, retryAfter is the time left in the window.
func (l *Limiter) Allow(ctx context.Context, limit Limit, subject string) (allowed bool, retryAfter time.Duration, err error) {
	if l == nil || !l.enabled {
		return true, 0, nil
	}
	if l.rdb == nil {
		return false, 0, errNoLimiterStore
	}

	key := limitKey(limit.Action, subject)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, limit.Window)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	if incr.Val() <= int64(limit.Max) {
		return true, 0, nil
	}

	RateLimitRejections.WithLabelValues(limit.Action).Inc()
	retryAfter = ttl.Val()
	if retryAfter <= 0 {
		retryAfter = limit.Window
	}
	return false, retryAfter, nil
}

// Handler enforces limit on a route. The authenticated user is the subject
// when AuthRequired ran first; otherwise the client IP.
func (l *Limiter) Handler(limit Limit) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		subject := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(string); ok && uid != "" {
			subject = "user:" + uid
		}

		allowed, retryAfter, err := l.Allow(ctx, limit, subject)
		if err != nil {
			if !limit.FailClosed {
				return c.Next()
			}
			Logger.WarnContext(ctx, "rate limit store unavailable, rejecting",
				slog.String("action", limit.Action),
				slog.String("error", err.Error()))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Service temporarily unavailable",
			})
		}
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many " + limit.Action + " attempts, try again later",
			})
		}
		return c.Next()
	}
}
