// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "skillswap/docs" // swagger docs
	"skillswap/internal/cache"
	"skillswap/internal/config"
	"skillswap/internal/database"
	"skillswap/internal/featureflags"
	"skillswap/internal/middleware"
	"skillswap/internal/models"
	"skillswap/internal/notifications"
	"skillswap/internal/repository"
	"skillswap/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the already-initialized resources a Server runs on.
type Deps struct {
	DB    *gorm.DB
	Redis *redis.Client
	// MessageLog stores chat history. Nil selects the SQL log on DB.
	MessageLog repository.MessageLog
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo         repository.UserRepository
	skillRepo        repository.SkillRepository
	bookingRepo      repository.BookingRepository
	notificationRepo repository.NotificationRepository
	messageLog       repository.MessageLog

	notifier     *notifications.Notifier
	hub          *notifications.Hub
	roomHub      *notifications.RoomHub
	featureFlags *featureflags.Manager
	rateLimiter  *middleware.Limiter

	userService         *service.UserService
	skillService        *service.SkillService
	bookingService      *service.BookingService
	notificationService *service.NotificationService
	chatService         *service.ChatService
}

// NewServer connects to the database and Redis and creates a server on the SQL message log.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, Deps{DB: db, Redis: cache.GetClient()})
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	messageLog := deps.MessageLog
	if messageLog == nil {
		messageLog = repository.NewMessageLog(deps.DB)
	}

	s := &Server{
		config:           cfg,
		db:               deps.DB,
		redis:            deps.Redis,
		promMiddleware:   middleware.InitMetrics("skillswap-api"),
		userRepo:         repository.NewUserRepository(deps.DB),
		skillRepo:        repository.NewSkillRepository(deps.DB),
		bookingRepo:      repository.NewBookingRepository(deps.DB),
		notificationRepo: repository.NewNotificationRepository(deps.DB),
		messageLog:       messageLog,
		featureFlags:     featureflags.NewManager(cfg.FeatureFlags),
		rateLimiter:      middleware.NewLimiter(deps.Redis, cfg.Env),
	}

	s.notifier = notifications.NewNotifier(deps.Redis)
	s.hub = notifications.NewHub(deps.Redis)
	s.roomHub = notifications.NewRoomHub(deps.Redis)
	s.watchPresence()

	s.userService = service.NewUserService(s.userRepo)
	s.skillService = service.NewSkillService(s.skillRepo, s.userRepo)
	s.bookingService = service.NewBookingService(s.bookingRepo, s.skillRepo)
	s.notificationService = service.NewNotificationService(s.notificationRepo, notifications.NewUserPusher(s.notifier, s.hub))
	s.chatService = service.NewChatService(s.messageLog, s.bookingRepo, s.featureFlags)

	s.bookingService.Subscribe(s.notificationService)

	return s, nil
}

// NewApp builds the Fiber app with the shared error handler.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:      "SkillSwap API",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: ErrorHandler,
	})
}

// ErrorHandler answers errors that escaped a handler with the standard error body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so error responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "SkillSwap Backend Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/register", s.rateLimiter.Handler(middleware.RegisterLimit), s.Register)
	auth.Post("/login", s.rateLimiter.Handler(middleware.LoginLimit), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Public skill catalog
	skills := api.Group("/skills")
	skills.Get("/", s.ListSkills)
	skills.Get("/categories", s.GetSkillCategories)
	skills.Get("/:id", s.GetSkill)

	// History endpoint used by the chat client. Participants only.
	app.Get("/messages/:bookingId", s.AuthRequired(), s.GetBookingMessages)

	protected := api.Group("", s.AuthRequired())

	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Get("/mentors", s.ListMentors)
	users.Get("/:id/skills", s.GetUserSkills)
	users.Get("/:id", s.GetUserProfile)

	mySkills := protected.Group("/skills")
	mySkills.Post("/", s.CreateSkill)
	mySkills.Put("/:id", s.UpdateSkill)
	mySkills.Delete("/:id", s.DeleteSkill)

	bookings := protected.Group("/bookings")
	bookings.Post("/", s.rateLimiter.Handler(middleware.BookingCreateLimit), s.CreateBooking)
	bookings.Get("/", s.ListBookings)
	// Specific /:id/:action routes before generic /:id
	bookings.Get("/:id/messages", s.GetBookingMessages)
	bookings.Post("/:id/transition", s.TransitionBooking)
	bookings.Post("/:id/confirm", s.transitionTo(models.BookingConfirmed))
	bookings.Post("/:id/cancel", s.transitionTo(models.BookingCancelled))
	bookings.Post("/:id/start", s.transitionTo(models.BookingOngoing))
	bookings.Post("/:id/complete", s.transitionTo(models.BookingCompleted))
	bookings.Get("/:id", s.GetBooking)

	notes := protected.Group("/notifications")
	notes.Get("/", s.ListNotifications)
	notes.Get("/unread-count", s.GetUnreadCount)
	notes.Post("/:id/read", s.MarkNotificationRead)
	notes.Delete("/", s.ClearNotifications)

	protected.Get("/feature-flags", s.GetFeatureFlags)

	api.Post("/ws/ticket", s.AuthRequired(), s.rateLimiter.Handler(middleware.WSTicketLimit), s.IssueWSTicket)

	ws := api.Group("/ws", s.AuthRequired())
	ws.Get("/chat", s.WebSocketChatHandler())
	ws.Get("/notifications", s.WebSocketNotificationsHandler())
}

// LivenessCheck handles liveness checks
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness checks
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: without it realtime fan-out stays on this instance.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// StartWiring connects both hubs to Redis pub/sub. It is a no-op without Redis.
func (s *Server) StartWiring(ctx context.Context) {
	if !s.notifier.Enabled() {
		return
	}
	if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
		middleware.Logger.Error("failed to start hub wiring", slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
	}
	if err := s.roomHub.StartWiring(ctx); err != nil {
		middleware.Logger.Error("failed to start hub wiring", slog.String("hub", s.roomHub.Name()), slog.String("error", err.Error()))
	}
}

// Start builds the app, wires the hubs and listens on the configured port.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := NewApp()
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.StartWiring(s.shutdownCtx)

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
	}
	if err := s.roomHub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("hub", s.roomHub.Name()), slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
