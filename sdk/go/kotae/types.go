package kotae

import "time"

// Mode selects which agent loop answers a query.
type Mode string

const (
	// ModeRAG is the baseline single-shot loop: one retrieval, one LLM call.
	ModeRAG Mode = "rag"
	// ModeReAct is the tool-composition loop with bounded iterations.
	ModeReAct Mode = "react"
)

// Step is one visible step of an agent run.
type Step struct {
	Kind      string  `json:"type"`
	Content   string  `json:"content"`
	Timestamp float64 `json:"timestamp"`
}

// AskRequest is the request for Ask.
type AskRequest struct {
	Query    string `json:"query"`
	Mode     Mode   `json:"mode,omitempty"`      // defaults to rag
	UseCache *bool  `json:"use_cache,omitempty"` // defaults to true
}

// AskResponse is the result of a processed query.
type AskResponse struct {
	Success    bool    `json:"success"`
	Result     string  `json:"result"`
	Steps      []Step  `json:"steps"`
	FromCache  bool    `json:"from_cache"`
	TimeMS     float64 `json:"time_ms"`
	Iterations int     `json:"iterations,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// UploadResponse is the result of a document upload.
type UploadResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	DocumentID int    `json:"document_id"`
}

// DocumentInfo is one entry in the document listing.
type DocumentInfo struct {
	Title          string `json:"title"`
	ContentPreview string `json:"content_preview"`
	Size           int    `json:"size"`
}

// DocumentList is the document listing response.
type DocumentList struct {
	Success   bool           `json:"success"`
	Documents []DocumentInfo `json:"documents"`
	Count     int            `json:"count"`
}

// QueryRecord is one completed query in the history listing.
type QueryRecord struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Result    string    `json:"result"`
	Steps     []Step    `json:"steps"`
	CreatedAt time.Time `json:"created_at"`
}

// History is the query history response.
type History struct {
	Success bool          `json:"success"`
	Queries []QueryRecord `json:"queries"`
	Count   int           `json:"count"`
}

// AgentState is the most recent run visible on the agent.
type AgentState struct {
	Success bool `json:"success"`
	State   struct {
		Query        string `json:"current_query"`
		Steps        []Step `json:"steps"`
		Iterations   int    `json:"iterations"`
		IsProcessing bool   `json:"is_processing"`
	} `json:"state"`
}

// Metrics is the aggregate analytics snapshot.
type Metrics struct {
	TotalQueries      int     `json:"total_queries"`
	SuccessfulQueries int     `json:"successful_queries"`
	FailedQueries     int     `json:"failed_queries"`
	SuccessRate       float64 `json:"success_rate"`
	CacheHits         int     `json:"cache_hits"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
	AvgQueryTimeMS    float64 `json:"avg_query_time_ms"`
	AvgStepsPerQuery  float64 `json:"avg_steps_per_query"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// Health is the health endpoint response.
type Health struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Documents     int    `json:"documents"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// apiErrorEnvelope matches the server's error response shape.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
