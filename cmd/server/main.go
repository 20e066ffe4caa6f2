// Command main is the entry point for the SkillSwap backend server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skillswap/internal/bootstrap"
	"skillswap/internal/config"
	"skillswap/internal/observability"
	"skillswap/internal/server"
)

// @title SkillSwap API
// @version 1.0
// @description Peer tutoring marketplace: skills, bookings, notifications and booking chat
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@skillswap.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:3001
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	if cfg.TracingEnabled {
		shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    "skillswap-api",
			ServiceVersion: "1.0.0",
			Environment:    cfg.Env,
			Enabled:        true,
			Exporter:       cfg.TracingExporter,
			OTLPEndpoint:   cfg.OTLPEndpoint,
			SamplerRatio:   cfg.TracingSamplerRatio,
		})
		if err != nil {
			log.Fatalf("Failed to init tracing: %v", err)
		}
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SeedDemoAccounts: cfg.SeedOnStart})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	// Create server with dependency injection
	srv, err := server.NewServerWithDeps(cfg, server.Deps{
		DB:         rt.DB,
		Redis:      rt.Redis,
		MessageLog: rt.MessageLog,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Shutdown server resources
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server resource shutdown error: %v", err)
		}
		if err := rt.Close(ctx); err != nil {
			log.Printf("Chat store shutdown error: %v", err)
		}
	}()

	// Start server
	if err := srv.Start(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
