package ingress

import (
	"regexp"
	"strings"

	"github.com/voxhollow/cortex/pkg/turns"
)

// Classifier maps a raw utterance to an Intent. Classification is a pure
// function over the text: it performs no I/O, holds no session state, and
// never fails.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Destructive action verbs force requires_confirmation regardless of any
// other match.
var destructiveVerbs = []string{"delete", "shutdown", "shut down", "purge", "wipe"}

var actionVerbs = []string{
	"start", "stop", "restart", "run", "execute", "trigger", "deploy",
	"create", "spawn", "send", "set", "turn on", "turn off", "update",
	"delete", "shutdown", "shut down", "purge", "wipe", "remove", "kill",
}

// Keywords whose presence makes an utterance tool-triggering; they also tip
// the query/chitchat tie-break toward query.
var toolKeywords = []string{
	"status", "device", "sensor", "telemetry", "search", "look up",
	"lookup", "find", "knowledge", "weather", "temperature",
}

var affirmatives = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "sure": true, "ok": true,
	"okay": true, "confirm": true, "confirmed": true, "do it": true,
	"go ahead": true, "correct": true, "right": true,
}

var negatives = map[string]bool{
	"no": true, "nope": true, "cancel": true, "stop": true, "never mind": true,
	"nevermind": true, "don't": true, "abort": true, "forget it": true,
}

var questionRe = regexp.MustCompile(`^(what|who|when|where|why|how|which|is|are|does|do|can|could|will|would)\b`)

// actionBuckets maps surface verbs to a coarse action label. Order matters:
// the first bucket with a matching verb wins.
var actionBuckets = []struct {
	action string
	verbs  []string
}{
	{"delete", []string{"delete", "remove", "clear", "forget", "purge", "wipe", "kill"}},
	{"create", []string{"create", "make", "build", "generate", "new", "spawn"}},
	{"update", []string{"update", "modify", "change", "edit", "set"}},
	{"execute", []string{"run", "execute", "trigger", "start", "restart", "stop", "perform", "do", "shutdown", "deploy", "send"}},
	{"read", []string{"show", "get", "list", "display", "what", "check", "find", "search"}},
}

// Classify determines the intent category with the fixed tie-break policy:
// short affirmatives/negatives classify as confirm/cancel before anything
// else; destructive verbs force confirmation on actions; tool keywords tip
// query over chitchat.
func (c *Classifier) Classify(rawText string) turns.Intent {
	text := normalize(rawText)
	words := strings.Fields(text)

	intent := turns.Intent{Category: turns.CategoryChitchat, Action: "process", Confidence: 0.5}

	destructive := containsAny(text, destructiveVerbs)
	hasTool := containsAny(text, toolKeywords)
	hasAction := containsAny(text, actionVerbs)

	switch {
	case len(words) > 0 && len(words) <= 3 && (affirmatives[text] || negatives[text]):
		// Short affirmative/negative wins over action.
		if affirmatives[text] {
			intent.Category = turns.CategoryConfirm
		} else {
			intent.Category = turns.CategoryCancel
		}
		intent.Confidence = 0.95
	case destructive:
		intent.Category = turns.CategoryAction
		intent.Confidence = 0.9
	case hasAction:
		intent.Category = turns.CategoryAction
		intent.Confidence = 0.8
	case hasTool || questionRe.MatchString(text):
		intent.Category = turns.CategoryQuery
		intent.Confidence = 0.8
	}

	intent.RequiresConfirmation = destructive
	intent.RequiresTool = hasTool
	intent.Action = extractAction(text)
	return intent
}

func extractAction(text string) string {
	for _, bucket := range actionBuckets {
		for _, v := range bucket.verbs {
			if containsWord(text, v) {
				return bucket.action
			}
		}
	}
	return "process"
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".!?")
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if containsWord(text, n) {
			return true
		}
	}
	return false
}

// containsWord matches needle on word boundaries so that e.g. "stop" does
// not match inside "stopwatch".
func containsWord(text, needle string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], needle)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(needle)
		beforeOK := start == 0 || text[start-1] == ' '
		afterOK := end == len(text) || text[end] == ' '
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}
