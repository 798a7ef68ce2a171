package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testToolNames = []string{"semantic_search", "keyword_search", "summarize", "compare"}

func TestParseIntendedActionExtractsArgs(t *testing.T) {
	action, ok := parseIntendedAction(
		"I will call summarize(Go Basics) to get an overview.",
		testToolNames, "fallback",
	)
	require.True(t, ok)
	assert.Equal(t, "summarize", action.Tool)
	assert.Equal(t, "Go Basics", action.Args)
}

func TestParseIntendedActionCaseInsensitive(t *testing.T) {
	action, ok := parseIntendedAction(
		"Let me try Keyword_Search( concurrency, goroutines ).",
		testToolNames, "fallback",
	)
	require.True(t, ok)
	assert.Equal(t, "keyword_search", action.Tool)
	assert.Equal(t, " concurrency, goroutines ", action.Args)
}

func TestParseIntendedActionFallbackArgs(t *testing.T) {
	action, ok := parseIntendedAction(
		"The summarize tool seems right here.",
		testToolNames, "original query",
	)
	require.True(t, ok)
	assert.Equal(t, "summarize", action.Tool)
	assert.Equal(t, "original query", action.Args)
}

func TestParseIntendedActionRegistrationOrderWins(t *testing.T) {
	// Both tools appear; the earlier-registered one is chosen even though
	// the other appears first in the text.
	action, ok := parseIntendedAction(
		"Either compare(A, B) or semantic_search(topic) would work.",
		testToolNames, "fallback",
	)
	require.True(t, ok)
	assert.Equal(t, "semantic_search", action.Tool)
	assert.Equal(t, "topic", action.Args)
}

func TestParseIntendedActionNoTool(t *testing.T) {
	_, ok := parseIntendedAction("Just prose, no capability named.", testToolNames, "fallback")
	assert.False(t, ok)
}

func TestParseIntendedActionEmptyParensFallsBack(t *testing.T) {
	// The argument pattern requires at least one character inside the
	// parentheses; empty parens fall back to the query.
	action, ok := parseIntendedAction("summarize()", testToolNames, "the query")
	require.True(t, ok)
	assert.Equal(t, "the query", action.Args)
}
