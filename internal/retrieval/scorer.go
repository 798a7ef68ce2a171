// Package retrieval ranks documents against a query using lexical overlap.
//
// The scoring here is deliberately not embedding-based: it is a literal
// keyword/substring match, O(documents × keywords × content length) per
// query, which is fine for the small in-memory corpora this system serves.
// The Scorer interface exists so a heavier ranking implementation can be
// swapped in without touching the agent loop.
package retrieval

import (
	"sort"
	"strings"

	"github.com/ashita-ai/kotae/internal/model"
)

// DefaultTopK is the number of documents selected when the caller does not
// specify one.
const DefaultTopK = 3

// NoResultsMessage is rendered when no document scores above zero.
const NoResultsMessage = "No relevant documents found."

// excerptLimit is the maximum excerpt length, in characters, for the
// keyword scorer. Longer content is cut and marked.
const excerptLimit = 1000

// truncationMarker is appended to cut excerpts.
const truncationMarker = "..."

// stopWords are dropped from the query before keyword matching. Articles,
// copulas, and wh-words match every English document and carry no signal.
var stopWords = map[string]struct{}{
	"is": {}, "in": {}, "the": {}, "a": {}, "an": {}, "which": {},
	"what": {}, "where": {}, "when": {}, "who": {}, "how": {},
	"are": {}, "was": {}, "were": {},
}

// Excerpt is one selected document: its title, the (possibly truncated)
// content excerpt, and the score that ranked it.
type Excerpt struct {
	Title   string
	Excerpt string
	Score   int
}

// Scorer selects the most relevant document excerpts for a query.
type Scorer interface {
	ScoreAndSelect(query string, docs []model.Document, topK int) []Excerpt
}

// KeywordScorer ranks documents by literal keyword containment:
// +10 per keyword found in the title, +1 per occurrence in the content,
// +20 when the full query appears verbatim in either. Documents scoring
// zero are excluded entirely.
type KeywordScorer struct{}

// Keywords extracts the scoring keywords from a query: whitespace tokens,
// lower-cased, with stop words and tokens of length ≤ 2 removed.
func Keywords(query string) []string {
	var out []string
	for _, word := range strings.Fields(query) {
		w := strings.ToLower(word)
		if _, stop := stopWords[w]; stop {
			continue
		}
		if len(word) <= 2 {
			continue
		}
		out = append(out, w)
	}
	return out
}

// ScoreAndSelect implements Scorer. Ties in score preserve the documents'
// upload order — this is load-bearing, since it decides which excerpts
// reach the LLM.
func (KeywordScorer) ScoreAndSelect(query string, docs []model.Document, topK int) []Excerpt {
	if topK <= 0 {
		topK = DefaultTopK
	}
	queryLower := strings.ToLower(query)
	keywords := Keywords(query)

	var scored []Excerpt
	for _, doc := range docs {
		titleLower := strings.ToLower(doc.Title)
		contentLower := strings.ToLower(doc.Content)

		score := 0
		for _, kw := range keywords {
			if strings.Contains(titleLower, kw) {
				score += 10 // title matches weigh more
			}
			score += strings.Count(contentLower, kw)
		}
		if strings.Contains(titleLower, queryLower) || strings.Contains(contentLower, queryLower) {
			score += 20
		}

		if score > 0 {
			scored = append(scored, Excerpt{
				Title:   doc.Title,
				Excerpt: truncate(doc.Content, excerptLimit),
				Score:   score,
			})
		}
	}

	sortByScoreDesc(scored)
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// RenderBlock formats selected excerpts as the observation text the LLM
// receives. An empty selection renders the fixed no-results message.
func RenderBlock(excerpts []Excerpt) string {
	if len(excerpts) == 0 {
		return NoResultsMessage
	}
	parts := make([]string, len(excerpts))
	for i, e := range excerpts {
		parts[i] = "[Document: " + e.Title + "]\n" + e.Excerpt
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// truncate cuts s to at most limit characters, appending the truncation
// marker when anything was cut. Counts runes, not bytes — a multi-byte
// document must not be cut mid-character.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + truncationMarker
}

// sortByScoreDesc sorts by descending score. The sort must be stable: the
// input is in upload order, and equal scores keep that order.
func sortByScoreDesc(excerpts []Excerpt) {
	sort.SliceStable(excerpts, func(i, j int) bool {
		return excerpts[i].Score > excerpts[j].Score
	})
}
