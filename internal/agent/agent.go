// Package agent implements the reason/act/observe loops that answer queries
// over the document store.
//
// Two loops exist. The baseline loop does one fixed retrieval and one LLM
// round-trip. The tool-composition loop lets the model invoke registered
// tools across a bounded number of iterations. Both produce an ordered step
// trace and always terminate with exactly one result step; no failure inside
// a loop propagates to the caller as an error. The only error Process
// returns is context cancellation, and a cancelled run leaves no record in
// the cache or the metrics history.
package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/kotae/internal/analytics"
	"github.com/ashita-ai/kotae/internal/cache"
	"github.com/ashita-ai/kotae/internal/docstore"
	"github.com/ashita-ai/kotae/internal/llm"
	"github.com/ashita-ai/kotae/internal/model"
	"github.com/ashita-ai/kotae/internal/retrieval"
	"github.com/ashita-ai/kotae/internal/tools"
)

// DefaultMaxIterations bounds the tool-composition loop.
const DefaultMaxIterations = 6

// CacheHitStepContent is the single synthetic step emitted on a cache hit.
const CacheHitStepContent = "Result retrieved from cache"

// StepSink receives each step the moment it is emitted. Streaming consumers
// forward steps immediately; batch consumers can ignore the sink and read
// the trace from the Outcome. A nil sink is allowed.
type StepSink func(model.AgentStep)

// Outcome is the completed result of one query run.
type Outcome struct {
	Result     string
	Steps      []model.AgentStep
	FromCache  bool
	TimeMS     float64
	Iterations int
	// ErrText is set when the loop terminated through its internal error
	// path. The run is still complete and well-formed; this only feeds the
	// metrics record and the transport's optional error field.
	ErrText string
}

// Config assembles an Engine. Completer and Store are required; the rest
// default to working in-memory instances.
type Config struct {
	Completer     llm.Completer
	Store         *docstore.Store
	Scorer        retrieval.Scorer
	Registry      *tools.Registry
	Cache         *cache.ResultCache
	Metrics       *analytics.Aggregator
	Logger        *slog.Logger
	MaxIterations int
}

// Engine runs agent loops and owns the shared per-instance state: the
// result cache, the metrics history, and the currently visible run.
type Engine struct {
	completer llm.Completer
	store     *docstore.Store
	scorer    retrieval.Scorer
	registry  *tools.Registry
	cache     *cache.ResultCache
	metrics   *analytics.Aggregator
	logger    *slog.Logger
	maxIter   int

	mu      sync.Mutex
	current model.AgentRun
}

// New creates an engine from cfg.
func New(cfg Config) *Engine {
	if cfg.Scorer == nil {
		cfg.Scorer = retrieval.KeywordScorer{}
	}
	if cfg.Registry == nil {
		cfg.Registry = tools.NewDefaultRegistry(cfg.Store)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Engine{
		completer: cfg.Completer,
		store:     cfg.Store,
		scorer:    cfg.Scorer,
		registry:  cfg.Registry,
		cache:     cfg.Cache,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		maxIter:   cfg.MaxIterations,
	}
}

// Process answers one query. The returned error is non-nil only when ctx is
// cancelled mid-run; every other failure mode completes the run with an
// error-describing result step.
func (e *Engine) Process(ctx context.Context, query string, mode model.QueryMode, useCache bool, sink StepSink) (Outcome, error) {
	start := time.Now()

	if useCache && e.cache != nil {
		if cached, ok := e.cache.Get(query); ok {
			step := model.NewStep(model.StepResult, CacheHitStepContent)
			if sink != nil {
				sink(step)
			}
			out := Outcome{
				Result:    cached,
				Steps:     []model.AgentStep{step},
				FromCache: true,
				TimeMS:    msSince(start),
			}
			e.record(query, out, true)
			e.logger.Debug("cache hit", "query_len", len(query))
			return out, nil
		}
	}

	run := &runState{engine: e, sink: sink}
	e.setCurrent(model.AgentRun{Query: query, IsProcessing: true})

	var (
		answer     string
		iterations int
		errText    string
		err        error
	)
	switch mode {
	case model.ModeReAct:
		answer, iterations, errText, err = e.runReAct(ctx, query, run)
	default:
		answer, errText, err = e.runBaseline(ctx, query, run)
	}
	if err != nil {
		// Cancelled. Discard the partial trace; nothing is cached or
		// recorded for an abandoned run.
		e.setCurrent(model.AgentRun{})
		return Outcome{}, err
	}

	e.finishCurrent(iterations)

	// Only clean answers are cached. A cached failure would be replayed for
	// the full TTL even after the backend recovers.
	if answer != "" && errText == "" && e.cache != nil {
		e.cache.Put(query, answer)
	}

	out := Outcome{
		Result:     answer,
		Steps:      run.steps,
		TimeMS:     msSince(start),
		Iterations: iterations,
		ErrText:    errText,
	}
	e.record(query, out, errText == "")

	e.logger.Info("query processed",
		"mode", string(modeOrDefault(mode)),
		"steps", len(out.Steps),
		"iterations", iterations,
		"duration_ms", out.TimeMS,
		"failed", errText != "",
	)
	return out, nil
}

// State returns a copy of the most recent run's visible state.
func (e *Engine) State() model.AgentRun {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.current
	out.Steps = make([]model.AgentStep, len(e.current.Steps))
	copy(out.Steps, e.current.Steps)
	return out
}

// Registry exposes the tool registry for transport-level listings.
func (e *Engine) Registry() *tools.Registry { return e.registry }

// runState accumulates one run's trace and mirrors it into the engine's
// current-run view as each step is emitted.
type runState struct {
	engine *Engine
	sink   StepSink
	steps  []model.AgentStep
}

func (r *runState) emit(kind model.StepKind, content string) {
	step := model.NewStep(kind, content)
	r.steps = append(r.steps, step)

	r.engine.mu.Lock()
	r.engine.current.Steps = append(r.engine.current.Steps, step)
	r.engine.mu.Unlock()

	if r.sink != nil {
		r.sink(step)
	}
}

func (e *Engine) setCurrent(run model.AgentRun) {
	e.mu.Lock()
	e.current = run
	e.mu.Unlock()
}

func (e *Engine) finishCurrent(iterations int) {
	e.mu.Lock()
	e.current.Iterations = iterations
	e.current.IsProcessing = false
	e.mu.Unlock()
}

func (e *Engine) record(query string, out Outcome, success bool) {
	if e.metrics == nil {
		return
	}
	rec := model.QueryMetricRecord{
		ID:         uuid.New().String(),
		Query:      query,
		DurationMS: out.TimeMS,
		StepCount:  len(out.Steps),
		Success:    success,
		FromCache:  out.FromCache,
	}
	if out.ErrText != "" {
		rec.Error = &out.ErrText
	}
	e.metrics.Record(rec)
}

func modeOrDefault(mode model.QueryMode) model.QueryMode {
	if mode == "" {
		return model.ModeRAG
	}
	return mode
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
