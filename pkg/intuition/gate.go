package intuition

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxhollow/cortex/pkg/turns"
)

// Config tunes the fast path. Heuristics below Threshold never fire;
// MaxEntries caps learned heuristics, evicting the oldest.
type Config struct {
	Threshold  float64
	MaxEntries int
}

func DefaultConfig() Config {
	return Config{Threshold: 0.90, MaxEntries: 128}
}

// Heuristic is a learned or built-in shortcut: a trigger pattern and a
// canned response with a confidence score.
type Heuristic struct {
	ID         string
	Pattern    *regexp.Regexp
	Response   string
	Confidence float64

	useCount int
}

// Gate is the cheap short-circuit in front of full deliberation. It is
// synchronous, performs no I/O, and must complete in single-digit
// milliseconds: everything it consults is in-process.
type Gate struct {
	cfg Config

	mu       sync.Mutex
	builtins []*Heuristic
	learned  []*Heuristic

	now func() time.Time
}

func NewGate(cfg Config) *Gate {
	return &Gate{
		cfg:      cfg,
		builtins: builtinHeuristics(),
		now:      time.Now,
	}
}

// Learn registers an additional heuristic. The trigger is matched literally.
// When the learned table is full, the oldest learned heuristic is evicted;
// built-ins are never evicted.
func (g *Gate) Learn(id, trigger, response string, confidence float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.learned = append(g.learned, &Heuristic{
		ID:         id,
		Pattern:    regexp.MustCompile(`(?i)` + regexp.QuoteMeta(trigger)),
		Response:   response,
		Confidence: confidence,
	})
	if g.cfg.MaxEntries > 0 && len(g.learned) > g.cfg.MaxEntries {
		g.learned = g.learned[len(g.learned)-g.cfg.MaxEntries:]
	}
}

// TryFastPath returns a response and true when a heuristic matches above
// the confidence threshold. Tool-requiring utterances never take the fast
// path: a canned answer cannot carry live tool results.
func (g *Gate) TryFastPath(intent turns.Intent, _ turns.Context, rawText string) (string, bool) {
	if intent.RequiresTool || intent.RequiresConfirmation {
		return "", false
	}

	text := normalizeKey(rawText)

	if resp, ok := g.quickAnswer(intent, text); ok {
		return resp, true
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, h := range append(g.builtins, g.learned...) {
		if h.Confidence < g.cfg.Threshold {
			continue
		}
		if h.Pattern.MatchString(text) {
			h.useCount++
			log.Debug().Str("heuristic", h.ID).Msg("fast path hit")
			return h.Response, true
		}
	}
	return "", false
}

// UseCounts reports per-heuristic hit counts, mostly for diagnostics.
func (g *Gate) UseCounts() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]int, len(g.builtins)+len(g.learned))
	for _, h := range append(g.builtins, g.learned...) {
		out[h.ID] = h.useCount
	}
	return out
}

func (g *Gate) quickAnswer(intent turns.Intent, text string) (string, bool) {
	switch intent.Category {
	case turns.CategoryConfirm:
		return "Got it.", true
	case turns.CategoryCancel:
		return "Understood, cancelling that.", true
	}

	switch text {
	case "what time is it", "whats the time", "time":
		return "It's currently " + g.now().UTC().Format("3:04 PM") + " UTC.", true
	case "whats the date", "what is todays date", "date":
		return "Today is " + g.now().UTC().Format("Monday, January 2, 2006") + ".", true
	case "thanks", "thank you":
		return "You're welcome. Anything else?", true
	}
	return "", false
}

func builtinHeuristics() []*Heuristic {
	return []*Heuristic{
		{
			ID:         "greeting_hello",
			Pattern:    regexp.MustCompile(`^(hi|hello|hey|good morning|good afternoon|good evening)\b`),
			Response:   "Hello! What can I do for you?",
			Confidence: 0.95,
		},
		{
			ID:         "greeting_bye",
			Pattern:    regexp.MustCompile(`^(bye|goodbye|see you|talk later)\b`),
			Response:   "Goodbye! Call on me anytime.",
			Confidence: 0.95,
		},
		{
			ID:         "status_quick",
			Pattern:    regexp.MustCompile(`^(how are you|are you there|you there)$`),
			Response:   "All systems operational. Is there something specific you'd like me to check?",
			Confidence: 0.92,
		},
	}
}

// normalizeKey is the fast-path cache key shape: lowercased, whitespace
// collapsed, punctuation stripped.
func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
