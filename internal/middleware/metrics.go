package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSockets is the number of open realtime connections on this instance.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skillswap_active_websockets",
		Help: "Number of currently open WebSocket connections",
	})

	// RedisErrors counts failed Redis commands by command and key family.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_redis_errors_total",
		Help: "Total number of failed Redis commands",
	}, []string{"command", "keyspace"})

	// RateLimitRejections counts requests refused by a Limiter, by action.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_rate_limit_rejections_total",
		Help: "Total number of actions rejected by rate limits",
	}, []string{"action"})

	promOnce sync.Once
	promMW   *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the process-wide HTTP metrics collector.
// The collector registers with the default registry exactly once.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promMW = fiberprometheus.New(serviceName)
	})
	return promMW
}

// MetricsMiddleware records request metrics, skipping WebSocket upgrades
// whose long-lived handlers would skew latency histograms.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderUpgrade) == "websocket" {
			return c.Next()
		}
		return p.Middleware(c)
	}
}
