package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/foliohq/folio/internal/handler"
	"github.com/foliohq/folio/internal/relay"
	"github.com/foliohq/folio/internal/server/middleware"
	"github.com/foliohq/folio/internal/service"
	"github.com/foliohq/folio/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host              string
	Port              int
	ShutdownTimeout   time.Duration
	CORSOrigins       []string
	ContactRatePerMin int
	ContactMinFill    time.Duration
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		ShutdownTimeout:   30 * time.Second,
		CORSOrigins:       []string{"*"},
		ContactRatePerMin: 5,
		ContactMinFill:    3 * time.Second,
	}
}

// Server is the top-level HTTP server for Folio. It owns the Chi router,
// the content store, the auth service, and the contact relay.
type Server struct {
	cfg        Config
	router     chi.Router
	store      store.Store
	authSvc    *service.AuthService
	relay      *relay.Relay
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, st store.Store, authSvc *service.AuthService, rl *relay.Relay, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		authSvc: authSvc,
		relay:   rl,
		logger:  logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	authHandler := handler.NewAuthHandler(s.store, s.authSvc, s.logger)
	projectHandler := handler.NewProjectHandler(s.store, s.logger)
	customizationHandler := handler.NewCustomizationHandler(s.store, s.logger)
	contactHandler := handler.NewContactHandler(s.relay, s.cfg.ContactMinFill, s.logger)

	// --- Health check (no auth required) ---
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {

		// Authentication
		r.Post("/auth/login", authHandler.Login)

		// Contact relay: rate-limited per client IP, no auth
		r.With(middleware.RateLimit(s.cfg.ContactRatePerMin)).
			Post("/contact", contactHandler.Submit)

		// Public read-only mirrors
		r.Get("/public/projects", projectHandler.PublicList)
		r.Get("/public/customizations", customizationHandler.PublicList)

		// Everything else requires a valid session token
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.authSvc))

			r.Get("/auth/profile", authHandler.Profile)
			r.Patch("/auth/password", authHandler.ChangePassword)

			r.Get("/projects", projectHandler.List)
			r.Post("/projects", projectHandler.Create)
			r.Post("/projects/order", projectHandler.Reorder)
			r.Put("/projects/{id}", projectHandler.Update)
			r.Delete("/projects/{id}", projectHandler.Delete)

			r.Get("/customizations", customizationHandler.List)
			r.Get("/customizations/key/{key}", customizationHandler.GetByKey)
			r.Put("/customizations/key/{key}", customizationHandler.UpsertByKey)
			r.Get("/customizations/projects/{projectId}", customizationHandler.GetProjectSettings)
			r.Put("/customizations/projects/{projectId}", customizationHandler.UpsertProjectSettings)
		})
	})

	s.router = r
}

// handleHealth is a liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","timestamp":%q}`, time.Now().UTC().Format(time.RFC3339))
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests and pending webhook deliveries before closing the store.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.relay.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Warn("store close failed", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
