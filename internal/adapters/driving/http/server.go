package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	// Registers the swagger document served at /swagger/doc.json
	_ "github.com/custodia-labs/askmydocs/docs"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
	"github.com/custodia-labs/askmydocs/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	maxUpload  int64
	logger     *slog.Logger

	// Services
	questions driving.QuestionService
	ingestion driving.IngestionService
	runtime   *domain.RuntimeConfig

	// Infrastructure checked by /ready, keyed by name
	checks map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	CORSOrigins    []string
	MaxUploadBytes int64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8000,
		Version:        "dev",
		CORSOrigins:    []string{"*"},
		MaxUploadBytes: 25 << 20,
	}
}

// Deps are the services the handlers call
type Deps struct {
	Questions driving.QuestionService
	Ingestion driving.IngestionService
	Runtime   *domain.RuntimeConfig // Optional: capability flags reported by /ready
	Checks    map[string]Pinger     // Optional: queue, registry, lock backends
	Logger    *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}

	s := &Server{
		router:    http.NewServeMux(),
		version:   cfg.Version,
		maxUpload: cfg.MaxUploadBytes,
		logger:    logger.With("component", "http"),
		questions: deps.Questions,
		ingestion: deps.Ingestion,
		runtime:   deps.Runtime,
		checks:    deps.Checks,
	}
	s.setupRoutes()

	s.handler = NewRecoveryMiddleware(s.logger).Handler(
		NewLoggingMiddleware(s.logger).Handler(
			NewCORSMiddleware(cfg.CORSOrigins).Handler(s.router)))

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		// Answers wait on the language model, including its retries
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /{$}", s.handleRoot)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwagger)

	// Question answering
	s.router.HandleFunc("POST /api/v1/query", s.handleQuery)

	// Documents
	s.router.HandleFunc("POST /api/v1/upload", s.handleUpload)
	s.router.HandleFunc("GET /api/v1/documents", s.handleListDocuments)
	s.router.HandleFunc("GET /api/v1/documents/{id}", s.handleGetDocument)

	// Settings
	s.router.HandleFunc("GET /api/v1/settings/system-prompt", s.handleGetSystemPrompt)
	s.router.HandleFunc("PUT /api/v1/settings/system-prompt", s.handleSetSystemPrompt)
}

// Handler returns the router wrapped in middleware
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
