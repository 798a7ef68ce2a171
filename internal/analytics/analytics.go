// Package analytics tracks per-query outcomes and derives aggregate
// performance reports from them.
//
// The aggregator keeps the raw record history and recomputes every report
// on demand instead of maintaining running counters. History is unbounded,
// which is acceptable for the in-memory scope of this system.
package analytics

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/kotae/internal/model"
	"github.com/ashita-ai/kotae/internal/telemetry"
)

const (
	// DefaultTrendsWindowMinutes is the trends window when none is given.
	DefaultTrendsWindowMinutes = 60

	// DefaultReportLimit bounds the top-queries and slowest-queries reports.
	DefaultReportLimit = 10

	// displayQueryLen truncates query text in reports. Reports are for
	// operators, not for replay.
	displayQueryLen = 100
)

// Aggregator records completed queries and serves derived reports.
// Safe for concurrent use.
type Aggregator struct {
	now       func() time.Time // stubbed in tests
	startTime time.Time

	mu      sync.Mutex
	records []model.QueryMetricRecord

	queryCount    metric.Int64Counter
	queryDuration metric.Float64Histogram
}

// New creates an aggregator. Uptime counts from this moment.
// OTEL instruments come from the global meter provider and are no-ops
// unless telemetry was initialized.
func New() *Aggregator {
	meter := telemetry.Meter("kotae/analytics")
	count, _ := meter.Int64Counter("kotae.query.count",
		metric.WithDescription("Completed queries"),
	)
	dur, _ := meter.Float64Histogram("kotae.query.duration",
		metric.WithDescription("End-to-end query duration (ms)"),
		metric.WithUnit("ms"),
	)
	now := time.Now
	return &Aggregator{
		now:           now,
		startTime:     now(),
		queryCount:    count,
		queryDuration: dur,
	}
}

// Record appends one completed query to the history.
func (a *Aggregator) Record(rec model.QueryMetricRecord) {
	if rec.Timestamp == 0 {
		rec.Timestamp = float64(a.now().UnixNano()) / float64(time.Second)
	}

	a.mu.Lock()
	a.records = append(a.records, rec)
	a.mu.Unlock()

	ctx := context.Background()
	if a.queryCount != nil {
		a.queryCount.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("success", rec.Success),
			attribute.Bool("from_cache", rec.FromCache),
		))
	}
	if a.queryDuration != nil {
		a.queryDuration.Record(ctx, rec.DurationMS)
	}
}

// Snapshot recomputes the aggregate metrics over the full history.
// Rates are fractions in [0, 1] and 0 when the history is empty.
func (a *Aggregator) Snapshot() model.SystemMetricsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := model.SystemMetricsSnapshot{
		UptimeSeconds: round2(a.now().Sub(a.startTime).Seconds()),
	}
	total := len(a.records)
	if total == 0 {
		return snap
	}

	var durSum, stepSum float64
	for _, r := range a.records {
		if r.Success {
			snap.SuccessfulQueries++
		}
		if r.FromCache {
			snap.CacheHits++
		}
		durSum += r.DurationMS
		stepSum += float64(r.StepCount)
	}
	snap.TotalQueries = total
	snap.FailedQueries = total - snap.SuccessfulQueries
	snap.SuccessRate = float64(snap.SuccessfulQueries) / float64(total)
	snap.CacheHitRate = float64(snap.CacheHits) / float64(total)
	snap.AvgQueryTimeMS = round2(durSum / float64(total))
	snap.AvgStepsPerQuery = round2(stepSum / float64(total))
	return snap
}

// Trends reports over the trailing window. A record whose timestamp equals
// the cutoff exactly is inside the window.
func (a *Aggregator) Trends(windowMinutes int) model.TrendsReport {
	if windowMinutes <= 0 {
		windowMinutes = DefaultTrendsWindowMinutes
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := float64(a.now().UnixNano())/float64(time.Second) - float64(windowMinutes)*60
	report := model.TrendsReport{WindowMinutes: windowMinutes}

	var durSum float64
	var successes int
	for _, r := range a.records {
		if r.Timestamp < cutoff {
			continue
		}
		report.QueriesInWindow++
		durSum += r.DurationMS
		if r.Success {
			successes++
		}
	}
	if report.QueriesInWindow == 0 {
		return report
	}
	report.AvgTimeMS = round2(durSum / float64(report.QueriesInWindow))
	report.SuccessRate = round3(float64(successes) / float64(report.QueriesInWindow))
	return report
}

// TopQueries returns the most frequently asked queries, count descending.
// Ties keep first-seen order.
func (a *Aggregator) TopQueries(limit int) []model.QueryCount {
	if limit <= 0 {
		limit = DefaultReportLimit
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	counts := make(map[string]int)
	var order []string
	for _, r := range a.records {
		if counts[r.Query] == 0 {
			order = append(order, r.Query)
		}
		counts[r.Query]++
	}

	out := make([]model.QueryCount, 0, len(order))
	for _, q := range order {
		out = append(out, model.QueryCount{Query: q, Count: counts[q]})
	}
	sortStableByCountDesc(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Slowest returns the slowest recorded queries, duration descending.
// Ties keep record order. Query text is truncated for display.
func (a *Aggregator) Slowest(limit int) []model.SlowQuery {
	if limit <= 0 {
		limit = DefaultReportLimit
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]model.SlowQuery, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, model.SlowQuery{
			Query:      truncateDisplay(r.Query),
			DurationMS: round2(r.DurationMS),
			Timestamp:  r.Timestamp,
		})
	}
	sortStableByDurationDesc(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// exportPayload is the JSON shape of ExportJSON.
type exportPayload struct {
	SystemMetrics  model.SystemMetricsSnapshot `json:"system_metrics"`
	Trends         model.TrendsReport          `json:"performance_trends"`
	TopQueries     []model.QueryCount          `json:"top_queries"`
	SlowestQueries []model.SlowQuery           `json:"slowest_queries"`
	ExportedAt     time.Time                   `json:"exported_at"`
}

// ExportJSON renders the full report set as indented JSON.
func (a *Aggregator) ExportJSON() ([]byte, error) {
	payload := exportPayload{
		SystemMetrics:  a.Snapshot(),
		Trends:         a.Trends(DefaultTrendsWindowMinutes),
		TopQueries:     a.TopQueries(DefaultReportLimit),
		SlowestQueries: a.Slowest(DefaultReportLimit),
		ExportedAt:     a.now(),
	}
	return json.MarshalIndent(payload, "", "  ")
}

func truncateDisplay(q string) string {
	runes := []rune(q)
	if len(runes) <= displayQueryLen {
		return q
	}
	return string(runes[:displayQueryLen])
}

func sortStableByCountDesc(counts []model.QueryCount) {
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
}

func sortStableByDurationDesc(queries []model.SlowQuery) {
	sort.SliceStable(queries, func(i, j int) bool {
		return queries[i].DurationMS > queries[j].DurationMS
	})
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
