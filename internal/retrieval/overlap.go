package retrieval

import (
	"strconv"
	"strings"

	"github.com/ashita-ai/kotae/internal/model"
)

// overlapExcerptLimit is the shorter excerpt used by the overlap scorer,
// whose output is meant for mid-loop observations rather than the main
// retrieval block.
const overlapExcerptLimit = 400

// NoOverlapMessage is rendered when no document shares a word with the query.
const NoOverlapMessage = "No semantically similar documents found."

// OverlapScorer ranks documents by word-set intersection with the query:
// each distinct query word found in the content counts 1, each found in the
// title counts 2. A softer signal than KeywordScorer — it ignores occurrence
// counts, so a single mention ranks the same as twenty.
type OverlapScorer struct{}

// ScoreAndSelect implements Scorer.
func (OverlapScorer) ScoreAndSelect(query string, docs []model.Document, topK int) []Excerpt {
	if topK <= 0 {
		topK = DefaultTopK
	}
	queryWords := wordSet(query)

	var scored []Excerpt
	for _, doc := range docs {
		contentWords := wordSet(doc.Content)
		titleWords := wordSet(doc.Title)

		overlap := intersectionSize(queryWords, contentWords) + intersectionSize(queryWords, titleWords)*2
		if overlap > 0 {
			scored = append(scored, Excerpt{
				Title:   doc.Title,
				Excerpt: head(doc.Content, overlapExcerptLimit),
				Score:   overlap,
			})
		}
	}

	sortByScoreDesc(scored)
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// RenderOverlapBlock formats overlap results with a visible relevance tag.
func RenderOverlapBlock(excerpts []Excerpt) string {
	if len(excerpts) == 0 {
		return NoOverlapMessage
	}
	parts := make([]string, len(excerpts))
	for i, e := range excerpts {
		parts[i] = "[" + e.Title + "] (relevance: " + strconv.Itoa(e.Score) + ")\n" + e.Excerpt
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// head returns the first limit characters of s followed by the truncation
// marker. Unlike truncate, the marker is always appended — these excerpts
// are previews, not the full document.
func head(s string, limit int) string {
	runes := []rune(s)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes) + truncationMarker
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
