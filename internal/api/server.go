package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrelsec/kestrel/internal/catalog"
	"github.com/kestrelsec/kestrel/internal/domain"
	"github.com/kestrelsec/kestrel/internal/engine"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg *domain.Config, repo domain.Repository, cache domain.Cache, bus domain.EventBus, registry *catalog.Registry, eng *engine.Engine, compiler *engine.Compiler, version string) *Server {
	handler := NewHandler(repo, cache, bus, registry, eng, compiler, version, cfg.Gateway)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(NewCORSMiddleware(cfg.Gateway.CORSAllowOrigins))
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression
	if cfg.Gateway.RateLimit > 0 {
		router.Use(NewRateLimitMiddleware(cfg.Gateway.RateLimit, cfg.Gateway.RateBurst))
	}

	// Health and introspection
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Get("/model-info", handler.ModelInfo)
	router.Handle("/metrics", promhttp.Handler())

	// URL phishing analysis
	router.Post("/url/analyze", handler.AnalyzeURL)
	router.Post("/url/batch-analyze", handler.BatchAnalyzeURL)

	// Certificate grading
	router.Post("/cert/analyze", handler.AnalyzeCert)

	// Network flow classification
	router.Post("/flow/classify", handler.ClassifyFlow)
	router.Post("/flow/batch-classify", handler.BatchClassifyFlow)

	// Audit log anomaly detection
	router.Post("/audit/detect", handler.AuditDetect)

	// IAM policy analysis
	router.Post("/policy/validate", handler.PolicyValidate)
	router.Post("/policy/conflicts", handler.PolicyConflicts)

	// Evaluation traces and persisted verdicts
	router.Get("/explain/{id}", handler.Explain)
	router.Get("/verdicts/{id}", handler.GetVerdict)

	// Catalogue introspection
	router.Get("/catalogues", handler.ListCatalogues)
	router.Get("/catalogues/{id}", handler.GetCatalogue)

	// Custom signature management
	router.Post("/signatures", handler.CreateSignature)
	router.Post("/signatures/reload", handler.ReloadSignatures)
	router.Get("/signatures/{id}", handler.GetSignature)
	router.Delete("/signatures/{id}", handler.DeleteSignature)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg.Server,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
