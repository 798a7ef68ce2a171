package kotae

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c, err := NewClient(Config{BaseURL: ts.URL})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BaseURL")
}

func TestAsk(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/query", r.URL.Path)

		var req AskRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "What is Go?", req.Query)
		assert.Equal(t, ModeReAct, req.Mode)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"result": "Go is a compiled language.",
			"steps": [{"type": "thought", "content": "thinking", "timestamp": 1}],
			"from_cache": false,
			"time_ms": 42.5,
			"iterations": 2
		}`))
	})

	resp, err := c.Ask(context.Background(), AskRequest{Query: "What is Go?", Mode: ModeReAct})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Go is a compiled language.", resp.Result)
	assert.Equal(t, 2, resp.Iterations)
	require.Len(t, resp.Steps, 1)
	assert.Equal(t, "thought", resp.Steps[0].Kind)
}

func TestUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/documents", r.URL.Path)
		_, _ = w.Write([]byte(`{"success": true, "message": "Document 'Go' uploaded successfully", "document_id": 1}`))
	})

	resp, err := c.Upload(context.Background(), "Go", "Go is a language.")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.DocumentID)
}

func TestErrorEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success": false, "error": {"code": "INVALID_INPUT", "message": "query is required"}}`))
	})

	_, err := c.Ask(context.Background(), AskRequest{})
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "INVALID_INPUT", apiErr.Code)
	assert.Equal(t, "query is required", apiErr.Message)
}

func TestErrorNonEnvelopeBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	})

	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Too Many Requests", apiErr.Code)
	assert.Equal(t, "slow down", apiErr.Message)
}

func TestHealthAndMetrics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"status": "healthy", "version": "1.0.0", "documents": 3, "uptime_seconds": 60}`))
		case "/v1/metrics":
			_, _ = w.Write([]byte(`{"total_queries": 10, "success_rate": 0.9, "cache_hit_rate": 0.2, "uptime_seconds": 60}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 3, health.Documents)

	metrics, err := c.Metrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, metrics.TotalQueries)
	assert.InDelta(t, 0.9, metrics.SuccessRate, 1e-9)
}

func TestBaseURLTrailingSlash(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status": "healthy"}`))
	}))
	t.Cleanup(ts.Close)

	c, err := NewClient(Config{BaseURL: ts.URL + "/"})
	require.NoError(t, err)

	_, err = c.Health(context.Background())
	require.NoError(t, err)
}
