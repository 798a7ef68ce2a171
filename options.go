package kotae

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port         int
	databasePath *string
	logger       *slog.Logger
	version      string
	completer    Completer
	tools        []Tool
	documents    []Document
}

// WithPort overrides the TCP port from config (KOTAE_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabasePath overrides the SQLite path from config (KOTAE_DB_PATH env
// var). An empty string disables persistence entirely.
func WithDatabasePath(path string) Option {
	return func(o *resolvedOptions) { o.databasePath = &path }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithCompleter replaces the auto-detected LLM backend (Ollama/OpenAI).
func WithCompleter(c Completer) Option {
	return func(o *resolvedOptions) { o.completer = c }
}

// WithTool registers an additional agent tool alongside the built-in set.
// Registering a tool with a built-in name replaces the built-in.
func WithTool(t Tool) Option {
	return func(o *resolvedOptions) { o.tools = append(o.tools, t) }
}

// WithDocument seeds the knowledge base with a document at startup.
// Seeded documents are written through to SQLite like uploaded ones.
func WithDocument(title, content string) Option {
	return func(o *resolvedOptions) {
		o.documents = append(o.documents, Document{Title: title, Content: content})
	}
}
