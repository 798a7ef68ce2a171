// Package kotae is the public API for embedding the Kotae question-answering
// server.
//
// Consumers import this package to construct and extend the server without
// forking it:
//
//	app, err := kotae.New(
//	    kotae.WithVersion(version),
//	    kotae.WithLogger(logger),
//	    kotae.WithCompleter(myLLMBackend{}),
//	    kotae.WithDocument("Runbook", runbookText),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: kotae (root) imports
// internal/*, but internal/* never imports kotae (root). Public types
// (Message, Document, Tool) are standalone structs with no internal imports;
// the adapters live here because this is the only file that sees both sides
// of the boundary.
package kotae

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/kotae/api"
	"github.com/ashita-ai/kotae/internal/agent"
	"github.com/ashita-ai/kotae/internal/analytics"
	"github.com/ashita-ai/kotae/internal/cache"
	"github.com/ashita-ai/kotae/internal/config"
	"github.com/ashita-ai/kotae/internal/docstore"
	"github.com/ashita-ai/kotae/internal/llm"
	"github.com/ashita-ai/kotae/internal/mcp"
	"github.com/ashita-ai/kotae/internal/ratelimit"
	"github.com/ashita-ai/kotae/internal/server"
	"github.com/ashita-ai/kotae/internal/storage"
	"github.com/ashita-ai/kotae/internal/telemetry"
	"github.com/ashita-ai/kotae/internal/tools"
)

// App is the Kotae server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	store        *docstore.Store
	engine       *agent.Engine
	resultCache  *cache.ResultCache
	db           *storage.DB // nil when persistence is disabled
	srv          *server.Server
	limiter      ratelimit.Limiter
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the Kotae server. It opens the database, loads the
// persisted knowledge base, wires all subsystems, and returns a ready-to-run
// App. It does NOT start any goroutines or accept HTTP connections — call
// Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databasePath != nil {
		cfg.DatabasePath = *o.databasePath
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("kotae starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, true)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Open SQLite and load the persisted knowledge base.
	store := docstore.New()
	var db *storage.DB
	if cfg.DatabasePath != "" {
		db, err = storage.Open(cfg.DatabasePath)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("storage: %w", err)
		}
		docs, err := db.LoadDocuments(context.Background())
		if err != nil {
			_ = db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("load documents: %w", err)
		}
		for _, d := range docs {
			store.Put(d.Title, d.Content)
		}
		logger.Info("knowledge base loaded", "path", cfg.DatabasePath, "documents", len(docs))
	} else {
		logger.Info("persistence disabled (empty KOTAE_DB_PATH), running in-memory")
	}

	// Seed documents from options (written through to SQLite like uploads).
	for _, d := range o.documents {
		store.Put(d.Title, d.Content)
		if db != nil {
			if err := db.SaveDocument(context.Background(), d.Title, d.Content); err != nil {
				logger.Warn("persist seeded document", "title", d.Title, "error", err)
			}
		}
	}

	// LLM backend — external override takes priority over auto-detect.
	var completer llm.Completer
	if o.completer != nil {
		completer = &completerAdapter{c: o.completer}
		logger.Info("llm backend: external", "name", o.completer.Name())
	} else {
		completer = newCompleter(cfg, logger)
	}

	// Tool registry: built-ins plus option-registered tools.
	registry := tools.NewDefaultRegistry(store)
	for _, t := range o.tools {
		registry.Register(tools.Tool{Name: t.Name, Description: t.Description, Execute: t.Execute})
	}

	resultCache := cache.New(cfg.CacheTTL)
	metrics := analytics.New()

	engine := agent.New(agent.Config{
		Completer:     completer,
		Store:         store,
		Registry:      registry,
		Cache:         resultCache,
		Metrics:       metrics,
		Logger:        logger,
		MaxIterations: cfg.MaxIterations,
	})

	// Rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"per_minute", cfg.RateLimitPerMinute, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	broker := server.NewBroker(logger, cfg.EventBufferSize)
	mcpSrv := mcp.New(engine, store, logger, version)

	srv := server.New(server.ServerConfig{
		Engine:              engine,
		Store:               store,
		Metrics:             metrics,
		Logger:              logger,
		DB:                  db,
		Broker:              broker,
		Limiter:             limiter,
		MCPServer:           mcpSrv.MCPServer(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		HistoryLimit:        cfg.HistoryLimit,
		OpenAPISpec:         api.OpenAPISpec,
	})

	// Seed the history endpoint with persisted records.
	if db != nil {
		records, err := db.QueryHistory(context.Background(), cfg.HistoryLimit)
		if err != nil {
			logger.Warn("load query history", "error", err)
		} else if len(records) > 0 {
			srv.Handlers().SeedHistory(records)
			logger.Info("query history loaded", "records", len(records))
		}
	}

	return &App{
		cfg:          cfg,
		store:        store,
		engine:       engine,
		resultCache:  resultCache,
		db:           db,
		srv:          srv,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or a fatal
// server error occurs. On return, Shutdown has already been called — callers
// should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return a.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown drains in-flight HTTP requests, then closes the cache sweeper,
// rate limiter, database, and OTEL provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("kotae shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	cancel()

	a.resultCache.Close()
	_ = a.limiter.Close()
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.otelShutdown(context.Background())

	a.logger.Info("kotae stopped")
	return nil
}

// noBackendReply is served by the static fallback when no LLM is reachable.
// The agent loops still run end to end, so uploads, retrieval, and the API
// surface stay usable for local development.
const noBackendReply = "No LLM backend is configured. Set OPENAI_API_KEY or OLLAMA_URL to enable answer generation."

// newCompleter creates an LLM backend based on configuration.
// Provider selection: "ollama", "openai", "static", or "auto" (default).
// Auto mode tries Ollama if reachable, then OpenAI if a key is present, else
// static. Ollama is preferred: generation stays on-premises with no API costs.
func newCompleter(cfg config.Config, logger *slog.Logger) llm.Completer {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Error("OPENAI_API_KEY required when KOTAE_LLM_PROVIDER=openai")
			return llm.NewStaticCompleter(noBackendReply)
		}
		logger.Info("llm backend: openai", "model", cfg.LLMModel)
		return llm.NewOpenAICompleter(cfg.OpenAIURL, cfg.OpenAIAPIKey, cfg.LLMModel)

	case "ollama":
		logger.Info("llm backend: ollama", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		return llm.NewOllamaCompleter(cfg.OllamaURL, cfg.OllamaModel)

	case "static":
		logger.Info("llm backend: static (answer generation disabled)")
		return llm.NewStaticCompleter(noBackendReply)

	case "auto":
		fallthrough
	default:
		if cfg.OllamaURL != "" && ollamaReachable(cfg.OllamaURL) {
			logger.Info("llm backend: ollama (auto-detected)", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
			return llm.NewOllamaCompleter(cfg.OllamaURL, cfg.OllamaModel)
		}
		if cfg.OpenAIAPIKey != "" {
			logger.Info("llm backend: openai (auto-detected)", "model", cfg.LLMModel)
			return llm.NewOpenAICompleter(cfg.OpenAIURL, cfg.OpenAIAPIKey, cfg.LLMModel)
		}
		logger.Warn("no llm backend available, using static fallback")
		return llm.NewStaticCompleter(noBackendReply)
	}
}

// ollamaReachable checks if an Ollama server is responding.
func ollamaReachable(baseURL string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// completerAdapter wraps a public kotae.Completer to satisfy llm.Completer.
// It converts message types at the boundary.
type completerAdapter struct {
	c Completer
}

func (a *completerAdapter) Name() string { return a.c.Name() }

func (a *completerAdapter) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	converted := make([]Message, len(messages))
	for i, m := range messages {
		converted[i] = Message{Role: Role(m.Role), Content: m.Content}
	}
	return a.c.Complete(ctx, converted)
}
