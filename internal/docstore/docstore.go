// Package docstore holds the in-memory knowledge base: a mapping from
// document title to full text content, in upload order.
//
// Upload order matters: the retrieval scorer breaks score ties by insertion
// order, so the store preserves it explicitly instead of relying on map
// iteration. Reads take an ordered snapshot so an in-flight query never
// observes a mid-upload mutation.
package docstore

import (
	"sync"

	"github.com/ashita-ai/kotae/internal/model"
)

// Store is a concurrency-safe, insertion-ordered document store.
type Store struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]string
}

// New creates an empty store.
func New() *Store {
	return &Store{docs: make(map[string]string)}
}

// Put inserts or replaces a document. Returns the 1-based position of the
// document in upload order and whether it was newly created. Replacing an
// existing title keeps its original position.
func (s *Store) Put(title, content string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[title]; ok {
		s.docs[title] = content
		for i, t := range s.order {
			if t == title {
				return i + 1, false
			}
		}
	}
	s.docs[title] = content
	s.order = append(s.order, title)
	return len(s.order), true
}

// Get returns a document's content by title.
func (s *Store) Get(title string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.docs[title]
	return content, ok
}

// Len returns the number of documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Snapshot returns all documents in upload order. The returned slice is a
// copy; callers may hold it across a whole query without further locking.
func (s *Store) Snapshot() []model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Document, 0, len(s.order))
	for _, title := range s.order {
		out = append(out, model.Document{Title: title, Content: s.docs[title]})
	}
	return out
}
