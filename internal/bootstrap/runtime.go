// Package bootstrap wires the long-lived resources shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"skillswap/internal/cache"
	"skillswap/internal/config"
	"skillswap/internal/database"
	"skillswap/internal/middleware"
	"skillswap/internal/repository"
	"skillswap/internal/seed"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemoAccounts creates the demo mentor and student if they are missing.
	SeedDemoAccounts bool
}

// Runtime holds the connected stores.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
	// MessageLog is the chat store selected by CHAT_STORE.
	MessageLog repository.MessageLog

	mongo *mongo.Client
}

// InitRuntime connects to the database, Redis and the chat store and optionally
// ensures the demo accounts exist.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	rt := &Runtime{DB: db, Redis: cache.GetClient()}

	if err := rt.openMessageLog(ctx, cfg); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	if opts.SeedDemoAccounts {
		if _, err := seed.EnsureDemoAccounts(db, seed.Options{}); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("failed to seed demo accounts: %w", err)
		}
	}

	return rt, nil
}

func (rt *Runtime) openMessageLog(ctx context.Context, cfg *config.Config) error {
	switch cfg.ChatStore {
	case "mongo":
		client, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			return err
		}
		log, err := repository.NewMongoMessageLog(ctx, client.Database(cfg.MongoDatabase))
		if err != nil {
			_ = client.Disconnect(ctx)
			return fmt.Errorf("failed to prepare mongo message log: %w", err)
		}
		rt.mongo = client
		rt.MessageLog = log
	default:
		rt.MessageLog = repository.NewMessageLog(rt.DB)
	}
	middleware.Logger.Info("chat store selected", slog.String("store", storeName(cfg.ChatStore)))
	return nil
}

func storeName(s string) string {
	if s == "" {
		return "sql"
	}
	return s
}

// Close releases the Mongo client. The SQL and Redis handles belong to whoever
// runs on them (the server closes both on shutdown).
func (rt *Runtime) Close(ctx context.Context) error {
	if rt.mongo == nil {
		return nil
	}
	return rt.mongo.Disconnect(ctx)
}
