// Package tools holds the agent's tool registry and the built-in document
// tools the tool-composition loop can invoke.
//
// A tool is a named function from a free-text argument string to a free-text
// observation. Tool names must be lowercase: the agent loop matches them as
// substrings of lowercased model output, so an uppercase name would never
// fire. Registration order is preserved because it decides both the prompt
// listing and which tool wins when a reply names several.
package tools

import (
	"strings"

	"github.com/ashita-ai/kotae/internal/docstore"
	"github.com/ashita-ai/kotae/internal/model"
	"github.com/ashita-ai/kotae/internal/retrieval"
)

// Tool is one agent capability.
type Tool struct {
	Name        string
	Description string
	Execute     func(args string) string
}

// Registry is an insertion-ordered collection of tools. Not safe for
// concurrent mutation; register everything before serving queries.
type Registry struct {
	order  []string
	byName map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Register adds or replaces a tool. Replacing keeps the original position.
func (r *Registry) Register(t Tool) {
	if _, ok := r.byName[t.Name]; !ok {
		r.order = append(r.order, t.Name)
	}
	r.byName[t.Name] = t
}

// Resolve returns the tool with the given name.
func (r *Registry) Resolve(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// DescribeAll renders the tool listing embedded in the agent's system prompt.
func (r *Registry) DescribeAll() string {
	lines := make([]string, len(r.order))
	for i, name := range r.order {
		t := r.byName[name]
		lines[i] = "- " + t.Name + ": " + t.Description
	}
	return strings.Join(lines, "\n")
}

// Excerpt lengths for the built-in tools. These are display previews, so the
// trailing marker is appended unconditionally.
const (
	searchExcerptLen  = 400
	summaryExcerptLen = 200
	compareExcerptLen = 150
)

// NewDefaultRegistry builds the standard four document tools over the store.
// Each tool reads a fresh snapshot per invocation, so documents uploaded
// mid-run are visible to later iterations.
func NewDefaultRegistry(store *docstore.Store) *Registry {
	r := NewRegistry()
	r.Register(Tool{
		Name:        "semantic_search",
		Description: "Search documents using semantic similarity",
		Execute: func(args string) string {
			scorer := retrieval.OverlapScorer{}
			excerpts := scorer.ScoreAndSelect(args, store.Snapshot(), retrieval.DefaultTopK)
			return retrieval.RenderOverlapBlock(excerpts)
		},
	})
	r.Register(Tool{
		Name:        "keyword_search",
		Description: "Search documents using keyword matching",
		Execute:     func(args string) string { return keywordSearch(store.Snapshot(), args) },
	})
	r.Register(Tool{
		Name:        "summarize",
		Description: "Summarize document content",
		Execute:     func(args string) string { return summarize(store, args) },
	})
	r.Register(Tool{
		Name:        "compare",
		Description: "Compare multiple documents",
		Execute:     func(args string) string { return compare(store, args) },
	})
	return r
}

// keywordSearch returns every document whose title or content contains any of
// the comma-separated keywords, case-insensitively, in upload order. An empty
// keyword matches everything; that is the caller's problem, not ours.
func keywordSearch(docs []model.Document, keywords string) string {
	kws := strings.Split(strings.ToLower(keywords), ",")
	for i := range kws {
		kws[i] = strings.TrimSpace(kws[i])
	}

	var results []string
	for _, doc := range docs {
		titleLower := strings.ToLower(doc.Title)
		contentLower := strings.ToLower(doc.Content)
		for _, kw := range kws {
			if strings.Contains(titleLower, kw) || strings.Contains(contentLower, kw) {
				results = append(results, "["+doc.Title+"]\n"+preview(doc.Content, searchExcerptLen))
				break
			}
		}
	}

	if len(results) == 0 {
		return "No documents found for keywords."
	}
	return strings.Join(results, "\n\n---\n\n")
}

// summarize returns the head of one document, addressed by exact title.
func summarize(store *docstore.Store, title string) string {
	content, ok := store.Get(title)
	if !ok {
		return "Document '" + title + "' not found."
	}
	return "Summary of " + title + ":\n" + preview(content, summaryExcerptLen)
}

// compare renders short excerpts of several documents, addressed by exact
// titles separated by commas. Unknown titles are skipped silently.
func compare(store *docstore.Store, titles string) string {
	titleList := strings.Split(titles, ",")
	for i := range titleList {
		titleList[i] = strings.TrimSpace(titleList[i])
	}
	if len(titleList) <= 1 {
		return "Please provide multiple document titles."
	}

	var b strings.Builder
	b.WriteString("Comparison:\n")
	for _, title := range titleList {
		content, ok := store.Get(title)
		if !ok {
			continue
		}
		b.WriteString("\n" + title + ":\n" + preview(content, compareExcerptLen) + "\n")
	}
	return b.String()
}

// preview cuts s to limit characters and always appends the marker.
func preview(s string, limit int) string {
	runes := []rune(s)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes) + "..."
}
