package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kotae/internal/model"
)

func TestOverlapScoringWeightsTitleDouble(t *testing.T) {
	docs := []model.Document{
		// Content overlap of 3 words.
		doc("unrelated title", "rust memory safety"),
		// Title overlap of 3 words, doubled to 6.
		doc("rust memory safety", "something else"),
	}
	got := OverlapScorer{}.ScoreAndSelect("rust memory safety", docs, 3)

	require.Len(t, got, 2)
	assert.Equal(t, "rust memory safety", got[0].Title)
	assert.Equal(t, 6, got[0].Score)
	assert.Equal(t, 3, got[1].Score)
}

func TestOverlapIgnoresOccurrenceCounts(t *testing.T) {
	docs := []model.Document{
		doc("a", "topic topic topic topic"),
		doc("b", "topic"),
	}
	got := OverlapScorer{}.ScoreAndSelect("topic", docs, 3)

	require.Len(t, got, 2)
	assert.Equal(t, got[0].Score, got[1].Score, "set intersection, not counting")
	assert.Equal(t, "a", got[0].Title, "ties keep upload order")
}

func TestOverlapZeroExcluded(t *testing.T) {
	docs := []model.Document{doc("a", "nothing relevant")}
	got := OverlapScorer{}.ScoreAndSelect("quantum entanglement", docs, 3)
	assert.Empty(t, got)
}

func TestOverlapExcerptAlwaysMarked(t *testing.T) {
	docs := []model.Document{doc("a", "short topic text")}
	got := OverlapScorer{}.ScoreAndSelect("topic", docs, 3)

	require.Len(t, got, 1)
	assert.True(t, strings.HasSuffix(got[0].Excerpt, truncationMarker),
		"overlap excerpts are previews and always carry the marker")
}

func TestRenderOverlapBlock(t *testing.T) {
	block := RenderOverlapBlock([]Excerpt{{Title: "A", Excerpt: "alpha...", Score: 5}})
	assert.Equal(t, "[A] (relevance: 5)\nalpha...", block)

	assert.Equal(t, NoOverlapMessage, RenderOverlapBlock(nil))
}
