package deliberation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/voxhollow/cortex/pkg/turns"
)

// DefaultSystemPrompt frames the assistant when the caller supplies none.
const DefaultSystemPrompt = "You are a helpful real-time assistant. Answer " +
	"concisely and conversationally; your output is spoken aloud as it streams."

// BuildPrompt assembles the generator input from an admitted turn and its
// gathered context.
func BuildPrompt(t *turns.Turn, system string) Prompt {
	if system == "" {
		system = DefaultSystemPrompt
	}
	return Prompt{
		SessionID: t.SessionID,
		UserText:  t.RawText,
		Intent:    t.Intent,
		Context:   t.Context,
		System:    system,
	}
}

// renderSystem flattens the gathered context into the system message. Keys
// are sorted so the rendering is stable across runs.
func renderSystem(p Prompt) string {
	var b strings.Builder
	b.WriteString(p.System)

	if len(p.Context.WorkingMemory) > 0 {
		b.WriteString("\n\nConversation context:\n")
		writeSortedFacts(&b, p.Context.WorkingMemory)
	}
	if len(p.Context.World.Facts) > 0 {
		b.WriteString("\nCurrent environment")
		if p.Context.World.Cached {
			b.WriteString(" (cached)")
		}
		b.WriteString(":\n")
		writeSortedFacts(&b, p.Context.World.Facts)
	}
	if len(p.Context.Recalled) > 0 {
		b.WriteString("\nRelevant memories:\n")
		for _, m := range p.Context.Recalled {
			fmt.Fprintf(&b, "- [%s] %s\n", m.Layer, m.Content)
		}
	}
	if p.Intent.Category != "" {
		fmt.Fprintf(&b, "\nThe user's intent was classified as %q.\n", p.Intent.Category)
	}
	return b.String()
}

func writeSortedFacts(b *strings.Builder, facts map[string]any) {
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "- %s: %v\n", k, facts[k])
	}
}
