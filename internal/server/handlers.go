package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ashita-ai/kotae/internal/agent"
	"github.com/ashita-ai/kotae/internal/analytics"
	"github.com/ashita-ai/kotae/internal/docstore"
	"github.com/ashita-ai/kotae/internal/model"
	"github.com/ashita-ai/kotae/internal/storage"
)

// documentPreviewLen bounds the content preview in document listings.
const documentPreviewLen = 200

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	engine  *agent.Engine
	store   *docstore.Store
	metrics *analytics.Aggregator
	db      *storage.DB // nil disables persistence
	broker  *Broker     // nil disables /v1/events
	logger  *slog.Logger

	startedAt    time.Time
	version      string
	historyLimit int

	historyMu sync.Mutex
	history   []model.QueryRecord
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): DB, Broker.
type HandlersDeps struct {
	Engine  *agent.Engine
	Store   *docstore.Store
	Metrics *analytics.Aggregator
	DB      *storage.DB
	Broker  *Broker
	Logger  *slog.Logger

	Version      string
	HistoryLimit int
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	if d.HistoryLimit <= 0 {
		d.HistoryLimit = storage.DefaultHistoryLimit
	}
	return &Handlers{
		engine:       d.Engine,
		store:        d.Store,
		metrics:      d.Metrics,
		db:           d.DB,
		broker:       d.Broker,
		logger:       d.Logger,
		startedAt:    time.Now(),
		version:      d.Version,
		historyLimit: d.HistoryLimit,
	}
}

// SeedHistory preloads persisted query records into the in-memory history.
// Called once at startup, before the server accepts traffic.
func (h *Handlers) SeedHistory(records []model.QueryRecord) {
	h.historyMu.Lock()
	defer h.historyMu.Unlock()
	h.history = append(h.history, records...)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Documents:     h.store.Len(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleUploadDocument handles POST /v1/documents.
func (h *Handlers) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	var req model.DocumentUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "title is required")
		return
	}
	if len(req.Title) > model.MaxDocumentTitleLen {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "title too long")
		return
	}
	if len(req.Content) > model.MaxDocumentContentLen {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "content too large")
		return
	}

	h.storeDocument(w, r, req.Title, req.Content)
}

// HandleUploadDocumentFile handles POST /v1/documents/file (multipart).
// The uploaded file's name becomes the document title.
func (h *Handlers) HandleUploadDocumentFile(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "missing file field")
		return
	}
	defer file.Close()

	content, err := readTextFile(file, int64(model.MaxDocumentContentLen))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	title := header.Filename
	if title == "" {
		title = "Document_" + strconv.Itoa(h.store.Len()+1)
	}

	h.storeDocument(w, r, title, content)
}

func (h *Handlers) storeDocument(w http.ResponseWriter, r *http.Request, title, content string) {
	pos, created := h.store.Put(title, content)

	if h.db != nil {
		if err := h.db.SaveDocument(r.Context(), title, content); err != nil {
			// Best-effort persistence: the in-memory store already accepted
			// the document, so the request still succeeds.
			h.logger.Warn("persist document", "title", title, "error", err)
		}
	}
	if h.broker != nil {
		h.broker.Publish("document", map[string]any{"title": title, "created": created})
	}
	h.logger.Info("document uploaded", "title", title, "size", len(content), "created", created)

	writeJSON(w, http.StatusOK, model.DocumentUploadResponse{
		Success:    true,
		Message:    "Document '" + title + "' uploaded successfully",
		DocumentID: pos,
	})
}

// readTextFile reads an uploaded file as text. UTF-8 passes through; other
// byte streams are decoded as Latin-1 so plain ASCII-ish files never fail.
func readTextFile(file multipart.File, limit int64) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return "", errors.New("unable to read file")
	}
	if int64(len(raw)) > limit {
		return "", errors.New("file too large")
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

// HandleListDocuments handles GET /v1/documents.
func (h *Handlers) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	docs := make([]model.DocumentInfo, len(snap))
	for i, d := range snap {
		preview := d.Content
		if len([]rune(preview)) > documentPreviewLen {
			preview = string([]rune(preview)[:documentPreviewLen]) + "..."
		}
		docs[i] = model.DocumentInfo{
			Title:          d.Title,
			ContentPreview: preview,
			Size:           len(d.Content),
		}
	}
	writeJSON(w, http.StatusOK, model.DocumentListResponse{
		Success:   true,
		Documents: docs,
		Count:     len(docs),
	})
}

// HandleQuery handles POST /v1/query.
func (h *Handlers) HandleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeQueryRequest(w, r)
	if !ok {
		return
	}

	out, err := h.engine.Process(r.Context(), req.Query, req.Mode, useCache(req), nil)
	if err != nil {
		// Client went away mid-run; nothing to write.
		return
	}

	h.recordHistory(req.Query, out)

	writeJSON(w, http.StatusOK, model.QueryResponse{
		Success:    true,
		Result:     out.Result,
		Steps:      out.Steps,
		FromCache:  out.FromCache,
		TimeMS:     out.TimeMS,
		Iterations: out.Iterations,
		Error:      out.ErrText,
	})
}

// HandleQueryStream handles GET /v1/query/stream. It runs the query and
// streams each step as an SSE "step" event the moment it is emitted,
// followed by a "result" event and a terminal "complete" event.
func (h *Handlers) HandleQueryStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "query parameter is required")
		return
	}
	if len(query) > model.MaxQueryLen {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "query too long")
		return
	}
	mode := model.QueryMode(r.URL.Query().Get("mode"))
	if !validMode(mode) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "mode must be rag or react")
		return
	}
	cache := r.URL.Query().Get("use_cache") != "false"

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Disable the server's WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	sink := func(step model.AgentStep) {
		payload := map[string]any{
			"type":      step.Kind,
			"content":   step.Content,
			"timestamp": step.Timestamp,
		}
		h.writeSSE(w, flusher, "step", payload)
	}

	out, err := h.engine.Process(r.Context(), query, mode, cache, sink)
	if err != nil {
		// Disconnected mid-run; the run was discarded.
		return
	}

	h.recordHistory(query, out)

	h.writeSSE(w, flusher, "result", map[string]any{"content": out.Result})
	h.writeSSE(w, flusher, "complete", map[string]any{})
}

func (h *Handlers) writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if _, err := w.Write(formatSSE(event, string(data))); err != nil {
		return
	}
	flusher.Flush()
}

func (h *Handlers) decodeQueryRequest(w http.ResponseWriter, r *http.Request) (model.QueryRequest, bool) {
	var req model.QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return req, false
	}
	if req.Query == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "query is required")
		return req, false
	}
	if len(req.Query) > model.MaxQueryLen {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "query too long")
		return req, false
	}
	if !validMode(req.Mode) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "mode must be rag or react")
		return req, false
	}
	return req, true
}

func validMode(mode model.QueryMode) bool {
	switch mode {
	case "", model.ModeRAG, model.ModeReAct:
		return true
	}
	return false
}

func useCache(req model.QueryRequest) bool {
	if req.UseCache == nil {
		return true
	}
	return *req.UseCache
}

// recordHistory appends a completed query to the in-memory history and,
// when persistence is configured, to SQLite. Cache hits are recorded too:
// history reflects what callers asked, not what the engine computed.
func (h *Handlers) recordHistory(query string, out agent.Outcome) {
	rec := model.QueryRecord{
		ID:        uuid.New().String(),
		Query:     query,
		Result:    out.Result,
		Steps:     out.Steps,
		CreatedAt: time.Now().UTC(),
	}

	h.historyMu.Lock()
	h.history = append(h.history, rec)
	if len(h.history) > h.historyLimit {
		h.history = h.history[len(h.history)-h.historyLimit:]
	}
	h.historyMu.Unlock()

	if h.db != nil {
		// Not tied to the request context: the response may already be
		// written by the time this runs.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.db.SaveQueryRecord(ctx, rec); err != nil {
			h.logger.Warn("persist query record", "error", err)
		}
	}
	if h.broker != nil {
		h.broker.Publish("query", map[string]any{
			"query":      query,
			"from_cache": out.FromCache,
			"time_ms":    out.TimeMS,
		})
	}
}

// HandleQueryHistory handles GET /v1/queries/history. An optional ?limit=
// keeps only the most recent records (still returned oldest first).
func (h *Handlers) HandleQueryHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)

	h.historyMu.Lock()
	recent := h.history
	if limit > 0 && len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	queries := make([]model.QueryRecord, len(recent))
	copy(queries, recent)
	h.historyMu.Unlock()

	writeJSON(w, http.StatusOK, model.HistoryResponse{
		Success: true,
		Queries: queries,
		Count:   len(queries),
	})
}

// HandleAgentState handles GET /v1/agent/state.
func (h *Handlers) HandleAgentState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.AgentStateResponse{
		Success: true,
		State:   h.engine.State(),
	})
}

// HandleMetrics handles GET /v1/metrics.
func (h *Handlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

// HandleMetricsTrends handles GET /v1/metrics/trends.
func (h *Handlers) HandleMetricsTrends(w http.ResponseWriter, r *http.Request) {
	window := queryInt(r, "window_minutes", analytics.DefaultTrendsWindowMinutes)
	writeJSON(w, http.StatusOK, h.metrics.Trends(window))
}

// HandleMetricsTop handles GET /v1/metrics/top.
func (h *Handlers) HandleMetricsTop(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", analytics.DefaultReportLimit)
	top := h.metrics.TopQueries(limit)
	if top == nil {
		top = []model.QueryCount{}
	}
	writeJSON(w, http.StatusOK, top)
}

// HandleMetricsSlowest handles GET /v1/metrics/slowest.
func (h *Handlers) HandleMetricsSlowest(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", analytics.DefaultReportLimit)
	slowest := h.metrics.Slowest(limit)
	if slowest == nil {
		slowest = []model.SlowQuery{}
	}
	writeJSON(w, http.StatusOK, slowest)
}

// HandleMetricsExport handles GET /v1/metrics/export.
func (h *Handlers) HandleMetricsExport(w http.ResponseWriter, r *http.Request) {
	raw, err := h.metrics.ExportJSON()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="kotae-metrics.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// HandleEvents handles GET /v1/events, the server-wide SSE feed.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError, "event stream not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
