// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/token-pulse/internal/ingest"
	"github.com/token-pulse/internal/logging"
	"github.com/token-pulse/internal/storage"
	"github.com/token-pulse/internal/types"
)

// IngestServiceInterface defines the interface for message ingestion
type IngestServiceInterface interface {
	IngestMessage(ctx context.Context, msg *types.Message, chainHint types.Chain) (*types.IngestResult, error)
}

// SweepRunner runs one market sweep. Optional: without one the sweep
// trigger endpoint reports the capability unavailable.
type SweepRunner interface {
	Run(ctx context.Context) (*types.SweepReport, error)
}

// Server represents the HTTP API server.
type Server struct {
	router        *mux.Router
	httpServer    *http.Server
	ingestService IngestServiceInterface
	store         storage.Store
	sweeper       SweepRunner
	sweeping      atomic.Bool
	config        *ServerConfig
	logger        *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns production server defaults
func DefaultServerConfig(host, port string) *ServerConfig {
	return &ServerConfig{
		Host:            host,
		Port:            port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, ingestService *ingest.Service, store storage.Store, logger *logging.Logger) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		ingestService: ingestService,
		store:         store,
		config:        config,
		logger:        logger.WithComponent("api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Middleware order matters: request id first so everything downstream
	// logs with it
	s.router.Use(RequestIDMiddleware(s.logger))
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	v1 := api.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/messages", s.handleIngestMessage).Methods("POST")
	v1.HandleFunc("/channels", s.handleUpsertChannel).Methods("POST")
	v1.HandleFunc("/tokens", s.handleListTokens).Methods("GET")
	v1.HandleFunc("/tokens/{chain}/{contract}", s.handleGetToken).Methods("GET")
	v1.HandleFunc("/tokens/{chain}/{contract}/mentions", s.handleListMentions).Methods("GET")
	v1.HandleFunc("/sweeps", s.handleTriggerSweep).Methods("POST")
}

// SetSweepRunner enables the manual sweep trigger endpoint
func (s *Server) SetSweepRunner(runner SweepRunner) {
	s.sweeper = runner
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("api server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("api server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the router for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
