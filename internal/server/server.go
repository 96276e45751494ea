// Package server exposes the read-only status API and the live decision
// WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/auctionbot/internal/server/handler"
	"github.com/alanyoungcy/auctionbot/internal/server/middleware"
	"github.com/alanyoungcy/auctionbot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates the HTTP handlers the server registers. Auctions and
// Outcomes may be nil when their backend is not configured.
type Handlers struct {
	Health   *handler.HealthHandler
	Status   *handler.StatusHandler
	Auctions *handler.AuctionHandler
	Outcomes *handler.OutcomeHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and wraps them in the middleware chain.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, handlers, wsHub, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed and wrapped handler without a listener.
func NewHandler(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	if handlers.Auctions != nil {
		mux.HandleFunc("GET /api/auctions", handlers.Auctions.ListAuctions)
		mux.HandleFunc("GET /api/auctions/{id}", handlers.Auctions.GetAuction)
		mux.HandleFunc("GET /api/audit", handlers.Auctions.ListAudit)
	}

	if handlers.Outcomes != nil {
		mux.HandleFunc("GET /api/outcomes", handlers.Outcomes.ListOutcomes)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests within the ctx deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
