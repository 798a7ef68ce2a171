package agent

import (
	"regexp"
	"strings"
	"sync"
)

// intendedAction is a tool invocation extracted from free-text model output.
type intendedAction struct {
	Tool string
	Args string
}

var (
	argPatternMu sync.Mutex
	argPatterns  = make(map[string]*regexp.Regexp)
)

// argPattern matches "name ( args )" case-insensitively, compiled once per
// tool name.
func argPattern(name string) *regexp.Regexp {
	argPatternMu.Lock()
	defer argPatternMu.Unlock()

	re, ok := argPatterns[name]
	if !ok {
		re = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(name) + `\s*\(([^)]+)\)`)
		argPatterns[name] = re
	}
	return re
}

// parseIntendedAction scans model output for the first registered tool name,
// in registration order, as a case-insensitive substring. Arguments are the
// parenthesized text right after the name; absent that, fallbackArgs.
//
// Scanning free text instead of a structured call protocol is a known
// fragility: a tool name appearing incidentally in prose triggers an
// invocation. The behavior is intentional and contained here so a structured
// protocol can replace it without touching the loop.
func parseIntendedAction(output string, names []string, fallbackArgs string) (intendedAction, bool) {
	lower := strings.ToLower(output)
	for _, name := range names {
		if !strings.Contains(lower, name) {
			continue
		}
		if m := argPattern(name).FindStringSubmatch(output); m != nil {
			return intendedAction{Tool: name, Args: m[1]}, true
		}
		return intendedAction{Tool: name, Args: fallbackArgs}, true
	}
	return intendedAction{}, false
}
