package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"skillswap/internal/middleware"
	"skillswap/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPresenceKey   = "presence:notifications"
	defaultPresenceTTL   = 90 * time.Second
	defaultOfflineGrace  = 5 * time.Second
	defaultReapInterval  = time.Minute
	presenceMetricsLabel = "notifications"
)

// PresenceConfig tunes a Presence. Zero values take the defaults.
type PresenceConfig struct {
	// Key is the redis sorted set of user id -> last seen unix seconds.
	Key          string
	TTL          time.Duration
	OfflineGrace time.Duration
	ReapInterval time.Duration
	OnOnline     func(userID string)
	OnOffline    func(userID string)
}

// Presence tracks which users have a live socket. Local connection counts are
// authoritative for this instance; the redis sorted set lets other instances
// see the user through heartbeats. Going offline waits OfflineGrace so a quick
// reconnect never reports the user as gone.
type Presence struct {
	rdb *redis.Client
	cfg PresenceConfig

	mu      sync.Mutex
	local   map[string]int
	pending map[string]*time.Timer
	online  map[string]bool

	stopOnce sync.Once
	stop     chan struct{}
}

// NewPresence returns a Presence. With a redis client it also starts a reaper
// that expires users whose heartbeat is older than TTL.
func NewPresence(rdb *redis.Client, cfg PresenceConfig) *Presence {
	if cfg.Key == "" {
		cfg.Key = defaultPresenceKey
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultPresenceTTL
	}
	if cfg.OfflineGrace <= 0 {
		cfg.OfflineGrace = defaultOfflineGrace
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = defaultReapInterval
	}
	// Local users are refreshed on each tick, so a tick must land inside TTL.
	if cfg.ReapInterval >= cfg.TTL {
		cfg.ReapInterval = cfg.TTL / 3
	}

	p := &Presence{
		rdb:     rdb,
		cfg:     cfg,
		local:   make(map[string]int),
		pending: make(map[string]*time.Timer),
		online:  make(map[string]bool),
		stop:    make(chan struct{}),
	}
	if rdb != nil {
		go p.reapLoop()
	}
	return p
}

// SetCallbacks replaces the online/offline callbacks.
func (p *Presence) SetCallbacks(onOnline, onOffline func(userID string)) {
	p.mu.Lock()
	p.cfg.OnOnline, p.cfg.OnOffline = onOnline, onOffline
	p.mu.Unlock()
}

// Connect records one more socket for userID.
func (p *Presence) Connect(ctx context.Context, userID string) {
	p.mu.Lock()
	if t, ok := p.pending[userID]; ok {
		t.Stop()
		delete(p.pending, userID)
	}
	p.local[userID]++
	p.mu.Unlock()

	p.Touch(ctx, userID)
	p.markOnline(userID)
}

// Disconnect releases one socket. The last one starts the offline grace timer.
func (p *Presence) Disconnect(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.local[userID] > 1 {
		p.local[userID]--
		return
	}
	delete(p.local, userID)

	if t, ok := p.pending[userID]; ok {
		t.Stop()
	}
	p.pending[userID] = time.AfterFunc(p.cfg.OfflineGrace, func() {
		p.settleOffline(context.Background(), userID)
	})
}

// Touch refreshes userID's heartbeat.
func (p *Presence) Touch(ctx context.Context, userID string) {
	if p.rdb == nil {
		return
	}
	score := float64(time.Now().Unix())
	if err := p.rdb.ZAdd(ctx, p.cfg.Key, redis.Z{Score: score, Member: userID}).Err(); err != nil {
		middleware.Logger.Warn("presence heartbeat failed", slog.String("user_id", userID), slog.String("error", err.Error()))
	}
}

// IsOnline reports a local socket or a heartbeat fresher than TTL.
func (p *Presence) IsOnline(ctx context.Context, userID string) bool {
	p.mu.Lock()
	local := p.local[userID] > 0
	p.mu.Unlock()
	if local || p.rdb == nil {
		return local
	}

	score, err := p.rdb.ZScore(ctx, p.cfg.Key, userID).Result()
	if err != nil {
		return false
	}
	return score >= p.cutoff()
}

// Online returns every user online here or with a fresh heartbeat.
func (p *Presence) Online(ctx context.Context) []string {
	seen := make(map[string]struct{})
	p.mu.Lock()
	for id := range p.local {
		seen[id] = struct{}{}
	}
	p.mu.Unlock()

	if p.rdb != nil {
		fresh, err := p.rdb.ZRangeByScore(ctx, p.cfg.Key, &redis.ZRangeBy{
			Min: strconv.FormatFloat(p.cutoff(), 'f', 0, 64),
			Max: "+inf",
		}).Result()
		if err == nil {
			for _, id := range fresh {
				seen[id] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// Stop halts the reaper and drops pending offline timers.
func (p *Presence) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.mu.Lock()
		for id, t := range p.pending {
			t.Stop()
			delete(p.pending, id)
		}
		p.mu.Unlock()
	})
}

func (p *Presence) cutoff() float64 {
	return float64(time.Now().Add(-p.cfg.TTL).Unix())
}

func (p *Presence) settleOffline(ctx context.Context, userID string) {
	p.mu.Lock()
	delete(p.pending, userID)
	reconnected := p.local[userID] > 0
	p.mu.Unlock()
	if reconnected {
		return
	}

	if p.rdb != nil {
		_ = p.rdb.ZRem(ctx, p.cfg.Key, userID).Err()
	}
	p.markOffline(userID)
}

// reap refreshes every locally connected user, then drops heartbeats older
// than TTL and reports those users offline. An idle socket sends no frames, so
// this tick is what keeps it visible to other instances.
func (p *Presence) reap(ctx context.Context) {
	p.refreshLocal(ctx)

	stale := "(" + strconv.FormatFloat(p.cutoff(), 'f', 0, 64)
	expired, err := p.rdb.ZRangeByScore(ctx, p.cfg.Key, &redis.ZRangeBy{Min: "-inf", Max: stale}).Result()
	if err != nil || len(expired) == 0 {
		return
	}
	_ = p.rdb.ZRemRangeByScore(ctx, p.cfg.Key, "-inf", stale).Err()

	for _, id := range expired {
		p.mu.Lock()
		local := p.local[id] > 0
		p.mu.Unlock()
		if !local {
			p.markOffline(id)
		}
	}
}

func (p *Presence) refreshLocal(ctx context.Context) {
	p.mu.Lock()
	members := make([]redis.Z, 0, len(p.local))
	score := float64(time.Now().Unix())
	for id := range p.local {
		members = append(members, redis.Z{Score: score, Member: id})
	}
	p.mu.Unlock()
	if len(members) == 0 {
		return
	}
	if err := p.rdb.ZAdd(ctx, p.cfg.Key, members...).Err(); err != nil {
		middleware.Logger.Warn("presence refresh failed", slog.Int("users", len(members)), slog.String("error", err.Error()))
	}
}

func (p *Presence) reapLoop() {
	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.reap(context.Background())
		}
	}
}

func (p *Presence) markOnline(userID string) {
	p.mu.Lock()
	if p.online[userID] {
		p.mu.Unlock()
		return
	}
	p.online[userID] = true
	cb := p.cfg.OnOnline
	p.mu.Unlock()

	observability.OnlineUsers.WithLabelValues(presenceMetricsLabel).Inc()
	if cb != nil {
		cb(userID)
	}
}

func (p *Presence) markOffline(userID string) {
	p.mu.Lock()
	wasOnline := p.online[userID]
	delete(p.online, userID)
	cb := p.cfg.OnOffline
	p.mu.Unlock()

	if wasOnline {
		observability.OnlineUsers.WithLabelValues(presenceMetricsLabel).Dec()
	}
	if cb != nil {
		cb(userID)
	}
}
