package model

import "time"

// Limits on caller-controlled input. A single oversized document would make
// every retrieval scan pay for it; the query limit bounds prompt size.
const (
	MaxQueryLen           = 8 * 1024
	MaxDocumentTitleLen   = 512
	MaxDocumentContentLen = 1 * 1024 * 1024 // 1 MB
)

// QueryMode selects which agent loop answers a query.
type QueryMode string

const (
	// ModeRAG is the baseline single-shot loop: one retrieval, one LLM call.
	ModeRAG QueryMode = "rag"
	// ModeReAct is the tool-composition loop with bounded iterations.
	ModeReAct QueryMode = "react"
)

// QueryRequest is the request body for POST /v1/query.
type QueryRequest struct {
	Query    string    `json:"query"`
	Mode     QueryMode `json:"mode,omitempty"`     // defaults to "rag"
	UseCache *bool     `json:"use_cache,omitempty"` // defaults to true
}

// QueryResponse is the response for POST /v1/query.
//
// Success is false only for transport-level failures that prevent the loop
// from starting; failures inside the loop (LLM errors included) still return
// Success=true with the failure described in the final Result step.
type QueryResponse struct {
	Success    bool        `json:"success"`
	Result     string      `json:"result"`
	Steps      []AgentStep `json:"steps"`
	FromCache  bool        `json:"from_cache"`
	TimeMS     float64     `json:"time_ms"`
	Iterations int         `json:"iterations,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// DocumentUploadRequest is the request body for POST /v1/documents.
type DocumentUploadRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DocumentUploadResponse is the response for document uploads.
type DocumentUploadResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DocumentID int    `json:"document_id"`
}

// DocumentInfo is one entry in the GET /v1/documents listing.
type DocumentInfo struct {
	Title          string `json:"title"`
	ContentPreview string `json:"content_preview"`
	Size           int    `json:"size"`
}

// DocumentListResponse is the response for GET /v1/documents.
type DocumentListResponse struct {
	Success   bool           `json:"success"`
	Documents []DocumentInfo `json:"documents"`
	Count     int            `json:"count"`
}

// QueryRecord is one completed query in the history listing.
type QueryRecord struct {
	ID        string      `json:"id"`
	Query     string      `json:"query"`
	Result    string      `json:"result"`
	Steps     []AgentStep `json:"steps"`
	CreatedAt time.Time   `json:"created_at"`
}

// HistoryResponse is the response for GET /v1/queries/history.
type HistoryResponse struct {
	Success bool          `json:"success"`
	Queries []QueryRecord `json:"queries"`
	Count   int           `json:"count"`
}

// AgentStateResponse is the response for GET /v1/agent/state.
type AgentStateResponse struct {
	Success bool     `json:"success"`
	State   AgentRun `json:"state"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Documents     int    `json:"documents"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ErrorResponse is the standard error envelope for transport-level failures.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   ErrorDetail  `json:"error"`
	Meta    ResponseMeta `json:"meta"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains request metadata included in error responses.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)
