package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/kotae/internal/agent"
	"github.com/ashita-ai/kotae/internal/analytics"
	"github.com/ashita-ai/kotae/internal/docstore"
	"github.com/ashita-ai/kotae/internal/ratelimit"
	"github.com/ashita-ai/kotae/internal/storage"
)

// Server is the Kotae HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): DB, Broker, Limiter, MCPServer.
type ServerConfig struct {
	// Required dependencies.
	Engine  *agent.Engine
	Store   *docstore.Store
	Metrics *analytics.Aggregator
	Logger  *slog.Logger

	// Optional dependencies (nil = disabled).
	DB        *storage.DB
	Broker    *Broker
	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	HistoryLimit        int

	// Optional embedded assets.
	OpenAPISpec []byte
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Engine:       cfg.Engine,
		Store:        cfg.Store,
		Metrics:      cfg.Metrics,
		DB:           cfg.DB,
		Broker:       cfg.Broker,
		Logger:       cfg.Logger,
		Version:      cfg.Version,
		HistoryLimit: cfg.HistoryLimit,
	})

	// Request ID extractor for rate limit error responses.
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}

	// Query and upload endpoints share one per-IP limiter. Read-only
	// endpoints are cheap and stay unlimited.
	rl := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Document management (rate limited: uploads mutate shared state).
	mux.Handle("POST /v1/documents", rl(http.HandlerFunc(h.HandleUploadDocument)))
	mux.Handle("POST /v1/documents/file", rl(http.HandlerFunc(h.HandleUploadDocumentFile)))
	mux.HandleFunc("GET /v1/documents", h.HandleListDocuments)

	// Query endpoints (rate limited: each one may cost an LLM call).
	mux.Handle("POST /v1/query", rl(http.HandlerFunc(h.HandleQuery)))
	mux.Handle("GET /v1/query/stream", rl(http.HandlerFunc(h.HandleQueryStream)))

	// History and agent state (read-only).
	mux.HandleFunc("GET /v1/queries/history", h.HandleQueryHistory)
	mux.HandleFunc("GET /v1/agent/state", h.HandleAgentState)

	// Analytics (read-only).
	mux.HandleFunc("GET /v1/metrics", h.HandleMetrics)
	mux.HandleFunc("GET /v1/metrics/trends", h.HandleMetricsTrends)
	mux.HandleFunc("GET /v1/metrics/top", h.HandleMetricsTop)
	mux.HandleFunc("GET /v1/metrics/slowest", h.HandleMetricsSlowest)
	mux.HandleFunc("GET /v1/metrics/export", h.HandleMetricsExport)

	// Server-wide event feed (no rate limit, long-lived connection).
	mux.HandleFunc("GET /v1/events", h.HandleEvents)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", mcpHTTP)
	}

	// OpenAPI spec (no rate limit).
	if len(cfg.OpenAPISpec) > 0 {
		spec := cfg.OpenAPISpec
		mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(spec)
		})
	}

	// Health (no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID, security headers, CORS, tracing, logging, body limit,
	// recovery, handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = bodyLimitMiddleware(cfg.MaxRequestBodyBytes, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = corsMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// bodyLimitMiddleware caps request body size so one oversized upload cannot
// exhaust memory. A non-positive limit disables the cap.
func bodyLimitMiddleware(limit int64, next http.Handler) http.Handler {
	if limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

// Handlers returns the underlying Handlers for access to SeedHistory etc.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
