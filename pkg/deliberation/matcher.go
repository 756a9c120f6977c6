package deliberation

import (
	"regexp"
	"strings"
)

// ToolIntent is a detected need for a tool call, surfaced while the model
// is still talking.
type ToolIntent struct {
	Name string
	Args map[string]any
}

type matchRule struct {
	tool    string
	pattern *regexp.Regexp
}

// intentMatcher scans the growing transcript for phrases that signal a tool
// is needed. Matching is incremental in spirit only: patterns are cheap
// enough to re-run over the whole transcript on each chunk, and the engine
// deduplicates per tool per turn.
type intentMatcher struct {
	rules []matchRule
}

func newIntentMatcher() *intentMatcher {
	return &intentMatcher{rules: []matchRule{
		{
			tool: "device_status",
			pattern: regexp.MustCompile(`(?i)\b(?:device|sensor)s?\b.{0,40}\b(?:status|telemetry|reading)s?\b` +
				`|\bstatus\b.{0,40}\b(?:device|sensor|system)s?\b` +
				`|\bcheck(?:ing)?\s+(?:the\s+)?(?:device|sensor)s?\b`),
		},
		{
			tool: "knowledge_search",
			pattern: regexp.MustCompile(`(?i)\bknowledge\s+(?:base|search|query)\b` +
				`|\blook(?:ing)?\s+(?:that|this|it)\s+up\b` +
				`|\bsearch(?:ing)?\s+(?:for|the)\b`),
		},
	}}
}

// Scan returns the tools signalled by text, with the triggering sentence as
// the query argument.
func (m *intentMatcher) Scan(text string) []ToolIntent {
	var out []ToolIntent
	for _, r := range m.rules {
		loc := r.pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		out = append(out, ToolIntent{
			Name: r.tool,
			Args: map[string]any{"query": surroundingSentence(text, loc[0])},
		})
	}
	return out
}

// surroundingSentence extracts the sentence containing offset, as a cheap
// query argument for the dispatched tool.
func surroundingSentence(text string, offset int) string {
	start := 0
	for i := offset - 1; i >= 0; i-- {
		if isBoundaryByte(text[i]) {
			start = i + 1
			break
		}
	}
	end := len(text)
	for i := offset; i < len(text); i++ {
		if isBoundaryByte(text[i]) {
			end = i + 1
			break
		}
	}
	return strings.TrimSpace(text[start:end])
}

func isBoundaryByte(b byte) bool {
	return b == '.' || b == '!' || b == '?' || b == '\n'
}
