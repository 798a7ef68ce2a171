package analytics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kotae/internal/model"
)

func newTestAggregator(t *testing.T) (*Aggregator, time.Time) {
	t.Helper()
	a := New()
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return base }
	a.startTime = base.Add(-90 * time.Second)
	return a, base
}

func rec(query string, durationMS float64, steps int, success, fromCache bool, ts float64) model.QueryMetricRecord {
	return model.QueryMetricRecord{
		ID:         "test-id",
		Query:      query,
		Timestamp:  ts,
		DurationMS: durationMS,
		StepCount:  steps,
		Success:    success,
		FromCache:  fromCache,
	}
}

func TestSnapshotEmpty(t *testing.T) {
	a, _ := newTestAggregator(t)

	snap := a.Snapshot()
	assert.Equal(t, 0, snap.TotalQueries)
	assert.Equal(t, float64(0), snap.SuccessRate)
	assert.Equal(t, float64(0), snap.CacheHitRate)
	assert.Equal(t, float64(90), snap.UptimeSeconds)
}

func TestSnapshotAggregates(t *testing.T) {
	a, base := newTestAggregator(t)
	ts := float64(base.Unix())

	a.Record(rec("q1", 100, 4, true, false, ts))
	a.Record(rec("q2", 200, 2, true, true, ts))
	a.Record(rec("q3", 300, 6, false, false, ts))

	snap := a.Snapshot()
	assert.Equal(t, 3, snap.TotalQueries)
	assert.Equal(t, 2, snap.SuccessfulQueries)
	assert.Equal(t, 1, snap.FailedQueries)
	assert.InDelta(t, 2.0/3.0, snap.SuccessRate, 1e-9)
	assert.Equal(t, 1, snap.CacheHits)
	assert.InDelta(t, 1.0/3.0, snap.CacheHitRate, 1e-9)
	assert.Equal(t, float64(200), snap.AvgQueryTimeMS)
	assert.Equal(t, float64(4), snap.AvgStepsPerQuery)
}

func TestTrendsWindow(t *testing.T) {
	a, base := newTestAggregator(t)
	now := float64(base.Unix())

	a.Record(rec("old", 500, 3, false, false, now-3600))  // outside a 30m window
	a.Record(rec("edge", 100, 3, true, false, now-1800))  // exactly on the cutoff
	a.Record(rec("fresh", 200, 3, true, false, now-60))

	report := a.Trends(30)
	assert.Equal(t, 30, report.WindowMinutes)
	assert.Equal(t, 2, report.QueriesInWindow)
	assert.Equal(t, float64(150), report.AvgTimeMS)
	assert.Equal(t, float64(1), report.SuccessRate)
}

func TestTrendsEmptyWindow(t *testing.T) {
	a, base := newTestAggregator(t)
	a.Record(rec("old", 500, 3, true, false, float64(base.Unix())-7200))

	report := a.Trends(60)
	assert.Equal(t, 0, report.QueriesInWindow)
	assert.Equal(t, float64(0), report.AvgTimeMS)
	assert.Equal(t, float64(0), report.SuccessRate)
}

func TestTopQueriesTiesKeepFirstSeenOrder(t *testing.T) {
	a, base := newTestAggregator(t)
	ts := float64(base.Unix())

	a.Record(rec("alpha", 10, 1, true, false, ts))
	a.Record(rec("beta", 10, 1, true, false, ts))
	a.Record(rec("gamma", 10, 1, true, false, ts))
	a.Record(rec("beta", 10, 1, true, false, ts))

	top := a.TopQueries(10)
	require.Len(t, top, 3)
	assert.Equal(t, model.QueryCount{Query: "beta", Count: 2}, top[0])
	assert.Equal(t, model.QueryCount{Query: "alpha", Count: 1}, top[1])
	assert.Equal(t, model.QueryCount{Query: "gamma", Count: 1}, top[2])
}

func TestSlowestOrderingAndTruncation(t *testing.T) {
	a, base := newTestAggregator(t)
	ts := float64(base.Unix())

	long := make([]byte, 150)
	for i := range long {
		long[i] = 'x'
	}

	a.Record(rec("fast", 50, 1, true, false, ts))
	a.Record(rec(string(long), 900, 1, true, false, ts))
	a.Record(rec("also slow", 900, 1, true, false, ts))

	slowest := a.Slowest(2)
	require.Len(t, slowest, 2)
	assert.Len(t, slowest[0].Query, 100, "display query is truncated")
	assert.Equal(t, "also slow", slowest[1].Query, "equal durations keep record order")
	assert.Equal(t, float64(900), slowest[0].DurationMS)
}

func TestRecordStampsMissingTimestamp(t *testing.T) {
	a, base := newTestAggregator(t)

	a.Record(model.QueryMetricRecord{ID: "x", Query: "q", DurationMS: 1})

	report := a.Trends(1)
	assert.Equal(t, 1, report.QueriesInWindow, "zero timestamp is stamped with now")
	_ = base
}

func TestExportJSON(t *testing.T) {
	a, base := newTestAggregator(t)
	a.Record(rec("q", 100, 3, true, false, float64(base.Unix())))

	raw, err := a.ExportJSON()
	require.NoError(t, err)

	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &payload))
	for _, key := range []string{"system_metrics", "performance_trends", "top_queries", "slowest_queries", "exported_at"} {
		assert.Contains(t, payload, key)
	}
}
