package agent

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kotae/internal/analytics"
	"github.com/ashita-ai/kotae/internal/cache"
	"github.com/ashita-ai/kotae/internal/docstore"
	"github.com/ashita-ai/kotae/internal/llm"
	"github.com/ashita-ai/kotae/internal/model"
)

func newTestEngine(t *testing.T, completer llm.Completer, docs map[string]string) *Engine {
	t.Helper()
	store := docstore.New()
	for title, content := range docs {
		store.Put(title, content)
	}
	c := cache.New(time.Hour)
	t.Cleanup(c.Close)
	return New(Config{
		Completer: completer,
		Store:     store,
		Cache:     c,
		Metrics:   analytics.New(),
	})
}

func kinds(steps []model.AgentStep) []model.StepKind {
	out := make([]model.StepKind, len(steps))
	for i, s := range steps {
		out[i] = s.Kind
	}
	return out
}

func TestBaselineStepOrderAndAnswer(t *testing.T) {
	completer := llm.Func(func(_ context.Context, messages []llm.Message) (string, error) {
		require.Len(t, messages, 2)
		assert.Equal(t, llm.RoleSystem, messages[0].Role)
		assert.Contains(t, messages[1].Content, "Python is a programming language")
		return "Python is a programming language created by Guido van Rossum.", nil
	})
	e := newTestEngine(t, completer, map[string]string{
		"Python": "Python is a programming language created by Guido van Rossum.",
	})

	out, err := e.Process(context.Background(), "What is Python?", model.ModeRAG, false, nil)
	require.NoError(t, err)

	assert.Equal(t, []model.StepKind{
		model.StepThought,
		model.StepAction,
		model.StepObservation,
		model.StepAction,
		model.StepThought,
		model.StepResult,
	}, kinds(out.Steps))
	assert.Contains(t, out.Steps[2].Content, "[Document: Python]")
	assert.Equal(t, "Python is a programming language created by Guido van Rossum.", out.Result)
	assert.False(t, out.FromCache)
	assert.Empty(t, out.ErrText)
}

func TestBaselineEmptyStore(t *testing.T) {
	completer := llm.Func(func(_ context.Context, messages []llm.Message) (string, error) {
		assert.Contains(t, messages[1].Content, "No relevant documents found.")
		return "The documents do not contain enough information to answer.", nil
	})
	e := newTestEngine(t, completer, nil)

	out, err := e.Process(context.Background(), "What is anything?", model.ModeRAG, false, nil)
	require.NoError(t, err)

	assert.Contains(t, out.Steps[2].Content, "No relevant documents found.")
	require.NotEmpty(t, out.Steps)
	assert.Equal(t, model.StepResult, out.Steps[len(out.Steps)-1].Kind)
}

func TestBaselineLLMFailure(t *testing.T) {
	e := newTestEngine(t, llm.NewFailingCompleter(errors.New("rate limited")), map[string]string{
		"Doc": "content",
	})

	out, err := e.Process(context.Background(), "query", model.ModeRAG, false, nil)
	require.NoError(t, err, "loop failures never surface as errors")

	last := out.Steps[len(out.Steps)-1]
	assert.Equal(t, model.StepResult, last.Kind)
	assert.Equal(t, "Error processing query: rate limited", out.Result)
	assert.Equal(t, "rate limited", out.ErrText)
}

func TestReActExplicitFinalAnswer(t *testing.T) {
	e := newTestEngine(t, llm.NewStaticCompleter("final answer: 42"), nil)

	out, err := e.Process(context.Background(), "meaning of life", model.ModeReAct, false, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Iterations)
	assert.Equal(t, "final answer: 42", out.Result)
	assert.Equal(t, model.StepResult, out.Steps[len(out.Steps)-1].Kind)
}

func TestReActIterationCap(t *testing.T) {
	var calls atomic.Int32
	completer := llm.Func(func(_ context.Context, _ []llm.Message) (string, error) {
		calls.Add(1)
		return "I should try keyword_search(go) next.", nil
	})
	e := newTestEngine(t, completer, map[string]string{"Go": "Go is a language."})

	out, err := e.Process(context.Background(), "tell me about go", model.ModeReAct, false, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxIterations, out.Iterations)
	assert.Equal(t, int32(DefaultMaxIterations), calls.Load())
	assert.Equal(t, "I should try keyword_search(go) next.", out.Result, "capped run emits the last output as the result")
}

func TestReActImplicitTermination(t *testing.T) {
	e := newTestEngine(t, llm.NewStaticCompleter("Plain prose naming no capability."), nil)

	out, err := e.Process(context.Background(), "q", model.ModeReAct, false, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Iterations, "a reply naming no tool is itself the answer")
	assert.Equal(t, "Plain prose naming no capability.", out.Result)
}

func TestReActToolInvocationFlow(t *testing.T) {
	var calls atomic.Int32
	completer := llm.Func(func(_ context.Context, messages []llm.Message) (string, error) {
		switch calls.Add(1) {
		case 1:
			return "Let me look it up: summarize(Go Basics)", nil
		default:
			// The observation must have been fed back into the conversation.
			last := messages[len(messages)-1]
			assert.Contains(t, last.Content, "Tool result:")
			assert.Contains(t, last.Content, "Summary of Go Basics:")
			return "final answer: Go is statically typed.", nil
		}
	})
	e := newTestEngine(t, completer, map[string]string{
		"Go Basics": "Go is a statically typed language designed at Google.",
	})

	out, err := e.Process(context.Background(), "what is go?", model.ModeReAct, false, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Iterations)
	assert.Equal(t, []model.StepKind{
		model.StepThought, // processing query
		model.StepThought, // first reply
		model.StepAction,  // using tool
		model.StepObservation,
		model.StepThought, // second reply
		model.StepResult,
	}, kinds(out.Steps))
	assert.Equal(t, "Using tool: summarize", out.Steps[2].Content)
}

func TestReActLLMFailureStillTerminatesWithResult(t *testing.T) {
	e := newTestEngine(t, llm.NewFailingCompleter(errors.New("boom")), nil)

	out, err := e.Process(context.Background(), "q", model.ModeReAct, false, nil)
	require.NoError(t, err)

	assert.Equal(t, noAnswerFallback, out.Result)
	assert.Equal(t, "boom", out.ErrText)
	last := out.Steps[len(out.Steps)-1]
	assert.Equal(t, model.StepResult, last.Kind)
}

func TestCacheHitShortCircuitsLoop(t *testing.T) {
	var calls atomic.Int32
	completer := llm.Func(func(_ context.Context, _ []llm.Message) (string, error) {
		calls.Add(1)
		return "final answer: cached eventually", nil
	})
	e := newTestEngine(t, completer, nil)

	first, err := e.Process(context.Background(), "q", model.ModeReAct, true, nil)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := e.Process(context.Background(), "q", model.ModeReAct, true, nil)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Result, second.Result)
	require.Len(t, second.Steps, 1)
	assert.Equal(t, model.StepResult, second.Steps[0].Kind)
	assert.Equal(t, CacheHitStepContent, second.Steps[0].Content)
	assert.Equal(t, int32(1), calls.Load(), "cache hit must not invoke the model")
}

func TestCacheBypass(t *testing.T) {
	var calls atomic.Int32
	completer := llm.Func(func(_ context.Context, _ []llm.Message) (string, error) {
		calls.Add(1)
		return "final answer: fresh", nil
	})
	e := newTestEngine(t, completer, nil)

	_, err := e.Process(context.Background(), "q", model.ModeReAct, true, nil)
	require.NoError(t, err)
	out, err := e.Process(context.Background(), "q", model.ModeReAct, false, nil)
	require.NoError(t, err)

	assert.False(t, out.FromCache)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFailedRunIsNotCached(t *testing.T) {
	var healthy atomic.Bool
	completer := llm.Func(func(_ context.Context, _ []llm.Message) (string, error) {
		if !healthy.Load() {
			return "", errors.New("rate limited")
		}
		return "final answer: recovered", nil
	})
	e := newTestEngine(t, completer, nil)

	first, err := e.Process(context.Background(), "q", model.ModeReAct, true, nil)
	require.NoError(t, err)
	assert.Equal(t, "rate limited", first.ErrText)

	_, ok := e.cache.Get("q")
	require.False(t, ok, "failure text must not enter the cache")

	// Once the backend recovers, the same query runs fresh.
	healthy.Store(true)
	second, err := e.Process(context.Background(), "q", model.ModeReAct, true, nil)
	require.NoError(t, err)
	assert.False(t, second.FromCache)
	assert.Equal(t, "final answer: recovered", second.Result)
	assert.Empty(t, second.ErrText)
}

func TestCancelledRunRecordsNothing(t *testing.T) {
	completer := llm.Func(func(ctx context.Context, _ []llm.Message) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	e := newTestEngine(t, completer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := e.Process(ctx, "q", model.ModeRAG, true, nil)
	require.ErrorIs(t, err, context.Canceled)

	snap := e.metrics.Snapshot()
	assert.Equal(t, 0, snap.TotalQueries, "cancelled runs leave no metric record")
	_, ok := e.cache.Get("q")
	assert.False(t, ok, "cancelled runs are not cached")
}

func TestStepSinkReceivesEveryStepInOrder(t *testing.T) {
	e := newTestEngine(t, llm.NewStaticCompleter("an answer"), map[string]string{
		"Doc": "an answer lives here",
	})

	var streamed []model.AgentStep
	out, err := e.Process(context.Background(), "an answer", model.ModeRAG, false, func(s model.AgentStep) {
		streamed = append(streamed, s)
	})
	require.NoError(t, err)

	assert.Equal(t, out.Steps, streamed)
}

func TestStateReflectsCompletedRun(t *testing.T) {
	e := newTestEngine(t, llm.NewStaticCompleter("final answer: ok"), nil)

	_, err := e.Process(context.Background(), "the query", model.ModeReAct, false, nil)
	require.NoError(t, err)

	state := e.State()
	assert.Equal(t, "the query", state.Query)
	assert.False(t, state.IsProcessing)
	assert.Equal(t, 1, state.Iterations)
	assert.NotEmpty(t, state.Steps)
}

func TestMetricsRecordedPerRun(t *testing.T) {
	e := newTestEngine(t, llm.NewStaticCompleter("final answer: ok"), nil)

	_, err := e.Process(context.Background(), "q1", model.ModeReAct, true, nil)
	require.NoError(t, err)
	_, err = e.Process(context.Background(), "q1", model.ModeReAct, true, nil) // cache hit
	require.NoError(t, err)

	snap := e.metrics.Snapshot()
	assert.Equal(t, 2, snap.TotalQueries)
	assert.Equal(t, 1, snap.CacheHits)
	assert.Equal(t, 2, snap.SuccessfulQueries)
}

func TestFinalAnswerPhraseCaseInsensitive(t *testing.T) {
	e := newTestEngine(t, llm.NewStaticCompleter("My FINAL ANSWER is forty-two."), nil)

	out, err := e.Process(context.Background(), "q", model.ModeReAct, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Iterations, "phrase detection is case-insensitive")
	assert.True(t, strings.Contains(out.Result, "forty-two"))
}
