// Package server exposes the spread and mapping API over HTTP and relays
// pass reports to websocket clients.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/skewscan/internal/domain"
	"github.com/alanyoungcy/skewscan/internal/server/handler"
	"github.com/alanyoungcy/skewscan/internal/server/middleware"
	"github.com/alanyoungcy/skewscan/internal/server/ws"
)

// Config holds the HTTP server settings.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // empty disables authentication
	RateLimit       int    // run requests per client per window; 0 disables
	RateLimitWindow time.Duration
}

// Handlers aggregates the route handlers.
type Handlers struct {
	Health   *handler.HealthHandler
	Status   *handler.StatusHandler
	Spreads  *handler.SpreadHandler
	Mappings *handler.MappingHandler
	Runs     *handler.RunsHandler
	Markets  *handler.MarketHandler
}

// Server is the skewscan HTTP + websocket API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers routes and builds the middleware chain. limiter and
// hub may be nil.
func NewServer(cfg Config, h Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, h, hub, limiter, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

// NewHandler returns the routed, wrapped handler without binding a port.
func NewHandler(cfg Config, h Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	limit := middleware.RateLimit(limiter, "run", cfg.RateLimit, cfg.RateLimitWindow, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", h.Status.GetStatus)

	mux.HandleFunc("GET /api/spreads", h.Spreads.ListActive)
	mux.Handle("POST /api/spreads/run", limit(http.HandlerFunc(h.Spreads.Run)))

	mux.HandleFunc("GET /api/mappings", h.Mappings.List)
	mux.HandleFunc("POST /api/mappings/verify", h.Mappings.Verify)
	mux.Handle("POST /api/mappings/run", limit(http.HandlerFunc(h.Mappings.Run)))

	mux.HandleFunc("GET /api/runs/{kind}/latest", h.Runs.Latest)
	mux.HandleFunc("GET /api/runs/{id}/spreads", h.Runs.Spreads)
	mux.HandleFunc("GET /api/runs/events", h.Runs.Events)
	mux.HandleFunc("GET /api/audit", h.Runs.Audit)

	mux.HandleFunc("GET /api/markets/{id}", h.Markets.Get)

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var wrapped http.Handler = mux
	wrapped = middleware.Auth(cfg.APIKey, "/api/health")(wrapped)
	wrapped = middleware.Logging(logger)(wrapped)
	wrapped = middleware.CORS(cfg.CORSOrigins)(wrapped)
	return wrapped
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
