// Package http exposes the rewards engine over a REST API built on fiber.
// Handlers are thin adapters over the application commands and queries.
package http

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/carboniq/carboniq-rewards/internal/application/command"
	"github.com/carboniq/carboniq-rewards/internal/application/query"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// BodyLimit caps request bodies in bytes.
	BodyLimit int

	// AdminToken guards /admin routes. Empty disables them.
	AdminToken string

	// CORSOrigins is a comma-separated origin list for browser dashboards.
	CORSOrigins string

	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		BodyLimit:    1 << 20,
		CORSOrigins:  "*",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains the handlers the routes delegate to.
type Dependencies struct {
	// Commands
	ProcessReport    *command.ProcessReportHandler
	SyncUserStats    *command.SyncUserStatsHandler
	RecalculateRanks *command.RecalculateRanksHandler

	// Queries
	UserStats           *query.GetUserStatsHandler
	Profile             *query.GetProfileHandler
	AchievementProgress *query.GetAchievementProgressHandler
	RewardHistory       *query.GetRewardHistoryHandler
	PointsBreakdown     *query.GetPointsBreakdownHandler
	UserRank            *query.GetUserRankHandler
	Leaderboard         *query.GetLeaderboardHandler
	CompleteLeaderboard *query.GetCompleteLeaderboardHandler
	InstitutionRankings *query.GetInstitutionRankingsHandler
	RecentAchievements  *query.GetRecentAchievementsHandler
	BadgeCatalog        *query.GetBadgeCatalogHandler

	// AfterRankRecalculation runs after a successful admin recalculation,
	// typically to drop cached leaderboards. Optional.
	AfterRankRecalculation func(ctx context.Context) error

	Health HealthChecker
	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config Config
	deps   Dependencies
	app    *fiber.App
	logger *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Health == nil {
		deps.Health = NewCompositeHealthChecker(config.Version)
	}

	s := &Server{
		config: config,
		deps:   deps,
		logger: deps.Logger.With(logger.Component("http")),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "carboniq-rewards",
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		IdleTimeout:           config.IdleTimeout,
		BodyLimit:             config.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: config.CORSOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Admin-Token,X-Request-ID",
	}))
	s.app.Use(s.loggingMiddleware())

	s.setupRoutes()
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)

	api := s.app.Group("/api/v1/rewards")

	// ─────────────────────────────────────────────────────────────────────────
	// Report-created hook
	// ─────────────────────────────────────────────────────────────────────────
	api.Post("/reports", s.handleProcessReport)

	// ─────────────────────────────────────────────────────────────────────────
	// Per-user views
	// ─────────────────────────────────────────────────────────────────────────
	users := api.Group("/users/:id")
	users.Get("/stats", s.handleUserStats)
	users.Get("/profile", s.handleProfile)
	users.Get("/achievements", s.handleAchievements)
	users.Get("/history", s.handleHistory)
	users.Get("/breakdown", s.handleBreakdown)
	users.Get("/rank", s.handleUserRank)
	users.Get("/leaderboard", s.handleCompleteLeaderboard)
	users.Post("/sync", s.handleSyncUser)

	// ─────────────────────────────────────────────────────────────────────────
	// Catalog and rankings
	// ─────────────────────────────────────────────────────────────────────────
	api.Get("/badges", s.handleBadgeCatalog)
	api.Get("/leaderboard/global", s.handleGlobalLeaderboard)
	api.Get("/leaderboard/institution/:id", s.handleInstitutionLeaderboard)
	api.Get("/leaderboard/category/:category", s.handleCategoryLeaderboard)
	api.Get("/leaderboard/institutions", s.handleInstitutionRankings)
	api.Get("/recent-achievements", s.handleRecentAchievements)

	// ─────────────────────────────────────────────────────────────────────────
	// Admin
	// ─────────────────────────────────────────────────────────────────────────
	if s.config.AdminToken != "" {
		admin := api.Group("/admin", s.adminAuth())
		admin.Post("/recalculate-ranks", s.handleRecalculateRanks)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// App returns the fiber application, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	if err := s.app.Listen(s.config.Address()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
