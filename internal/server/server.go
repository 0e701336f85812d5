// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware and
// routes, and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// cmd/server creates:
//   config, logger, metrics, store → passed to New
//   New creates: TokenService → AuthService/ProfileService/CatalogService →
//   handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes) rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/tour-tracker/internal/auth"
	"github.com/sakif/tour-tracker/internal/config"
	"github.com/sakif/tour-tracker/internal/handler"
	"github.com/sakif/tour-tracker/internal/ingest"
	"github.com/sakif/tour-tracker/internal/metrics"
	"github.com/sakif/tour-tracker/internal/middleware"
	"github.com/sakif/tour-tracker/internal/repository"
	"github.com/sakif/tour-tracker/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store and the rate limiter. Start closes both after
// the listener has drained.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	store   repository.Store

	tokens    *auth.TokenService
	passwords *auth.PasswordService
	limiter   middleware.Limiter
	processor handler.EventProcessor
	closers   []io.Closer
}

// Option customises a Server before its routes are built.
type Option func(*Server)

// WithLimiter replaces the limiter chosen from the config.
func WithLimiter(l middleware.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithProcessor replaces the Ticketmaster-backed event processor.
func WithProcessor(p handler.EventProcessor) Option {
	return func(s *Server) { s.processor = p }
}

// WithPasswordService replaces the bcrypt cost. Tests use the minimum cost.
func WithPasswordService(p *auth.PasswordService) Option {
	return func(s *Server) { s.passwords = p }
}

// New creates a Server. m may be nil, which disables /metrics and request
// metrics.
//
// Each layer only receives what it needs:
// - Services get repository interfaces (not the concrete store)
// - Handlers get services (not the repository)
func New(cfg *config.Config, store repository.Store, logger *slog.Logger, m *metrics.Metrics, opts ...Option) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		metrics:   m,
		store:     store,
		tokens:    tokens,
		passwords: auth.NewPasswordService(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.limiter == nil {
		s.limiter = s.newLimiter()
	}

	s.setupRoutes()
	return s, nil
}

// newLimiter picks the shared Redis window when Redis is configured and a
// per-process token bucket otherwise.
func (s *Server) newLimiter() middleware.Limiter {
	rl := s.config.RateLimit
	if s.config.Redis.Addr == "" {
		l := middleware.NewLocalLimiter(rl.Requests, rl.Window)
		s.closers = append(s.closers, l)
		return l
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     s.config.Redis.Addr,
		Password: s.config.Redis.Password,
		DB:       s.config.Redis.DB,
	})
	s.closers = append(s.closers, rdb)
	s.logger.Info("rate limiting through redis", slog.String("addr", s.config.Redis.Addr))
	return middleware.NewRedisLimiter(rdb, rl.Requests, rl.Window)
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /                        → API banner
// GET    /health                  → Liveness probe (text)
// GET    /ready                   → Readiness probe (pings the store)
// GET    /metrics                 → Prometheus scrape endpoint
// POST   /api/auth/register       → Create account
// POST   /api/auth/login          → Issue token
// GET    /api/auth/verify         → Resolve token
// GET    /api/profile             → Own profile             [auth]
// PUT    /api/profile             → Replace own profile     [auth]
// GET    /api/cities              → Lookup by name+country
// POST   /api/cities              → Create city
// POST   /api/venues/check        → Venue exists?
// POST   /api/venues              → Create venue
// GET    /api/tours               → List tours
// POST   /api/tours/check         → Tour exists?
// GET    /api/tours/{id}          → Get tour
// POST   /api/tours               → Create tour
// GET    /api/concerts            → List concerts
// POST   /api/concerts/exists     → Concert exists?
// GET    /api/concerts/{id}       → Get concert
// POST   /api/concerts            → Create concert
// POST   /api/events/process      → Ticketmaster ingestion  [auth]
// GET    /api/events/verify       → Ingestion status
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID, RealIP: tag the request and resolve the client address
// 2. Recoverer: turn panics into 500s
// 3. Logger, Metrics: observe every request, including rejected ones
// 4. SecureHeaders, CORS, BodyLimit: apply to every response
// 5. RateLimit: /api only, so probes are never throttled
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(middleware.SecureHeaders)
	s.router.Use(middleware.CORS)
	s.router.Use(middleware.BodyLimit(s.config.BodyLimit))

	s.router.NotFound(handler.HandleNotFound)
	s.router.MethodNotAllowed(handler.HandleMethodNotAllowed)

	s.router.Get("/", handler.HandleRoot)
	s.router.Get("/health", handler.HandleHealth)
	s.router.Get("/ready", handler.HandleReady(s.store, s.logger))
	if s.metrics != nil && s.config.Metrics.Enabled {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	// === Services ===
	authService := service.NewAuthService(s.store, s.tokens, s.passwords, s.metrics, s.logger)
	profileService := service.NewProfileService(s.store, s.logger)
	catalogService := service.NewCatalogService(s.store, s.metrics, s.logger)

	processor := s.processor
	if processor == nil && s.config.Ticketmaster.Key != "" {
		client := ingest.NewClient(s.config.Ticketmaster.Key, s.config.Ticketmaster.BaseURL, s.config.Ticketmaster.Timeout)
		processor = ingest.NewProcessor(client, catalogService, s.metrics, s.logger)
	}
	if processor == nil {
		s.logger.Warn("TM_API_KEY not set, /api/events/process is disabled")
	}

	// === Handlers ===
	resp := handler.NewResponder(s.logger, s.config.IsDevelopment())
	authHandler := handler.NewAuthHandler(authService, resp)
	profileHandler := handler.NewProfileHandler(profileService, resp)
	catalogHandler := handler.NewCatalogHandler(catalogService, resp)
	eventsHandler := handler.NewEventsHandler(processor, catalogService, resp)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.limiter, s.logger, s.metrics))

		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Get("/auth/verify", authHandler.HandleVerify)

		// Protected routes: RequireAuth stores the user id in the context.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.tokens))
			r.Get("/profile", profileHandler.HandleGet)
			r.Put("/profile", profileHandler.HandleUpdate)
			r.Post("/events/process", eventsHandler.HandleProcess)
		})

		r.Get("/cities", catalogHandler.HandleGetCity)
		r.Post("/cities", catalogHandler.HandleCreateCity)

		r.Post("/venues/check", catalogHandler.HandleCheckVenue)
		r.Post("/venues", catalogHandler.HandleCreateVenue)

		r.Get("/tours", catalogHandler.HandleListTours)
		r.Post("/tours/check", catalogHandler.HandleCheckTour)
		r.Get("/tours/{id}", catalogHandler.HandleGetTour)
		r.Post("/tours", catalogHandler.HandleCreateTour)

		r.Get("/concerts", catalogHandler.HandleListConcerts)
		r.Post("/concerts/exists", catalogHandler.HandleConcertExists)
		r.Get("/concerts/{id}", catalogHandler.HandleGetConcert)
		r.Post("/concerts", catalogHandler.HandleCreateConcert)

		r.Get("/events/verify", eventsHandler.HandleVerify)
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the limiter and the store
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.String("database", s.config.DB.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases the limiter and the store. Start calls it on return.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	return errors.Join(errs...)
}
