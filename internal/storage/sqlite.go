// Package storage persists documents and query history to SQLite.
//
// Persistence is best-effort: the in-memory stores remain the source of
// truth while the process runs, and a write failure here degrades durability
// but never fails a request. The pure-Go driver keeps the binary free of
// cgo.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashita-ai/kotae/internal/model"
)

// DefaultHistoryLimit bounds history reads when the caller passes no limit.
const DefaultHistoryLimit = 200

// DB wraps the SQLite handle.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. WAL mode keeps concurrent readers from blocking the writer.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	// The driver is single-writer; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	s := &DB{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return s, nil
}

func (s *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		result TEXT NOT NULL,
		steps TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_query_history_created_at ON query_history(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveDocument inserts or updates a document by title. The row id, and with
// it the upload order, survives replacement.
func (s *DB) SaveDocument(ctx context.Context, title, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (title, content) VALUES (?, ?)
		ON CONFLICT(title) DO UPDATE SET content = excluded.content, updated_at = CURRENT_TIMESTAMP`,
		title, content)
	if err != nil {
		return fmt.Errorf("storage: save document: %w", err)
	}
	return nil
}

// LoadDocuments returns all documents in upload order.
func (s *DB) LoadDocuments(ctx context.Context) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT title, content FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: load documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.Title, &d.Content); err != nil {
			return nil, fmt.Errorf("storage: scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// SaveQueryRecord appends one completed query to the history.
func (s *DB) SaveQueryRecord(ctx context.Context, rec model.QueryRecord) error {
	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return fmt.Errorf("storage: marshal steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO query_history (id, query, result, steps, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Query, rec.Result, string(steps), rec.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storage: save query record: %w", err)
	}
	return nil
}

// QueryHistory returns up to limit of the most recent records, oldest first.
func (s *DB) QueryHistory(ctx context.Context, limit int) ([]model.QueryRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, result, steps, created_at FROM (
			SELECT id, query, result, steps, created_at
			FROM query_history ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query history: %w", err)
	}
	defer rows.Close()

	var records []model.QueryRecord
	for rows.Next() {
		var (
			rec       model.QueryRecord
			steps     string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.Result, &steps, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: scan query record: %w", err)
		}
		if err := json.Unmarshal([]byte(steps), &rec.Steps); err != nil {
			return nil, fmt.Errorf("storage: unmarshal steps: %w", err)
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("storage: parse created_at: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database.
func (s *DB) Close() error {
	return s.db.Close()
}
