package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kotae/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDocumentRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveDocument(ctx, "Go", "Go is a language."))
	require.NoError(t, db.SaveDocument(ctx, "Rust", "Rust is a language."))

	docs, err := db.LoadDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Go", docs[0].Title)
	assert.Equal(t, "Rust", docs[1].Title)
}

func TestDocumentUpsertKeepsOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveDocument(ctx, "A", "v1"))
	require.NoError(t, db.SaveDocument(ctx, "B", "b"))
	require.NoError(t, db.SaveDocument(ctx, "A", "v2"))

	docs, err := db.LoadDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "A", docs[0].Title, "replacement keeps upload order")
	assert.Equal(t, "v2", docs[0].Content)
}

func TestQueryHistoryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, q := range []string{"first", "second", "third"} {
		rec := model.QueryRecord{
			ID:     q + "-id",
			Query:  q,
			Result: "answer to " + q,
			Steps: []model.AgentStep{
				{Kind: model.StepThought, Content: "thinking", Timestamp: float64(base.Unix())},
				{Kind: model.StepResult, Content: "answer to " + q, Timestamp: float64(base.Unix())},
			},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.SaveQueryRecord(ctx, rec))
	}

	records, err := db.QueryHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "first", records[0].Query, "oldest first")
	assert.Equal(t, "third", records[2].Query)
	require.Len(t, records[0].Steps, 2)
	assert.Equal(t, model.StepResult, records[0].Steps[1].Kind)
}

func TestQueryHistoryLimitKeepsMostRecent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, db.SaveQueryRecord(ctx, model.QueryRecord{
			ID:        string(rune('a' + i)),
			Query:     "q",
			Result:    "r",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	records, err := db.QueryHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "d", records[0].ID)
	assert.Equal(t, "e", records[1].ID)
}

func TestOpenSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reopen.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.SaveDocument(context.Background(), "persist", "content"))
	require.NoError(t, db.Close())

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()

	docs, err := db2.LoadDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "persist", docs[0].Title)
}
