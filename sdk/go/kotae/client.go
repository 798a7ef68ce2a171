package kotae

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the Kotae server (e.g. "http://localhost:8000").
	BaseURL string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 120-second timeout is used. The generous default covers queries
	// that wait on a slow LLM backend.
	HTTPClient *http.Client

	// Timeout applies to individual API requests when HTTPClient is nil.
	Timeout time.Duration
}

// Client is an HTTP client for the Kotae question-answering API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("kotae: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
	}, nil
}

// Ask runs a query through the agent and returns the full step trace.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	var resp AskResponse
	if err := c.post(ctx, "/v1/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upload adds or replaces a document in the knowledge base.
func (c *Client) Upload(ctx context.Context, title, content string) (*UploadResponse, error) {
	body := map[string]string{"title": title, "content": content}
	var resp UploadResponse
	if err := c.post(ctx, "/v1/documents", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Documents lists the knowledge base contents.
func (c *Client) Documents(ctx context.Context) (*DocumentList, error) {
	var resp DocumentList
	if err := c.get(ctx, "/v1/documents", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns completed queries, oldest first.
func (c *Client) History(ctx context.Context) (*History, error) {
	var resp History
	if err := c.get(ctx, "/v1/queries/history", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// State returns the most recent agent run.
func (c *Client) State(ctx context.Context) (*AgentState, error) {
	var resp AgentState
	if err := c.get(ctx, "/v1/agent/state", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Metrics returns the aggregate analytics snapshot.
func (c *Client) Metrics(ctx context.Context) (*Metrics, error) {
	var resp Metrics
	if err := c.get(ctx, "/v1/metrics", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var resp Health
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("kotae: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("kotae: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("kotae: create request: %w", err)
	}

	return c.doRequest(req, dest)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("kotae: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kotae: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return fmt.Errorf("kotae: decode response: %w", err)
	}
	return nil
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
