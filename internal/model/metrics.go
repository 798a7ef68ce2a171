package model

// QueryMetricRecord captures the outcome of one completed query.
// Append-only history; never mutated after creation. Timestamp is seconds
// since the Unix epoch, matching AgentStep.
type QueryMetricRecord struct {
	ID         string  `json:"query_id"`
	Query      string  `json:"query"`
	Timestamp  float64 `json:"timestamp"`
	DurationMS float64 `json:"duration_ms"`
	StepCount  int     `json:"steps"`
	Success    bool    `json:"success"`
	FromCache  bool    `json:"from_cache"`
	Error      *string `json:"error,omitempty"`
}

// SystemMetricsSnapshot is the derived aggregate over the full metric
// history. Never stored — recomputed on demand so it is always consistent
// with the records it was computed from.
type SystemMetricsSnapshot struct {
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

// TrendsReport is the windowed view over recent metric records.
type TrendsReport struct {
	WindowMinutes   int     `json:"window_minutes"`
	QueriesInWindow int     `json:"queries_in_window"`
	AvgTimeMS       float64 `json:"avg_time_ms"`
	SuccessRate     float64 `json:"success_rate"`
}

// QueryCount is one entry in the most-frequent-queries report.
type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// SlowQuery is one entry in the slowest-queries report.
type SlowQuery struct {
	Query      string  `json:"query"`
	DurationMS float64 `json:"duration_ms"`
	Timestamp  float64 `json:"timestamp"`
}
