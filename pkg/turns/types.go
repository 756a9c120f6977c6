package turns

import (
	"time"
)

// IntentCategory is the coarse classification of an utterance.
type IntentCategory string

const (
	CategoryQuery    IntentCategory = "query"
	CategoryAction   IntentCategory = "action"
	CategoryConfirm  IntentCategory = "confirm"
	CategoryCancel   IntentCategory = "cancel"
	CategoryChitchat IntentCategory = "chitchat"
)

// Intent is the result of classifying a raw utterance. It is a pure function
// of the text and never carries session state.
type Intent struct {
	Category             IntentCategory `yaml:"category"`
	Action               string         `yaml:"action,omitempty"`
	Confidence           float64        `yaml:"confidence"`
	RequiresConfirmation bool           `yaml:"requires_confirmation"`
	RequiresTool         bool           `yaml:"requires_tool"`
}

// WorldSnapshot is a point-in-time view of the world model. Cached marks a
// snapshot served from the synchronous fallback path instead of a live fetch.
type WorldSnapshot struct {
	Facts      map[string]any `yaml:"facts"`
	CapturedAt time.Time      `yaml:"captured_at"`
	Cached     bool           `yaml:"cached"`
}

// RecalledMemory is a single recall hit from the memory store.
type RecalledMemory struct {
	Content string  `yaml:"content"`
	Layer   string  `yaml:"layer,omitempty"`
	Score   float64 `yaml:"score"`
}

// Context is the aggregated snapshot handed to the deliberation engine.
//
// Context is always fully populated: a branch that times out or fails
// contributes an explicit degraded value (minimal working memory, cached
// world snapshot, empty recall slice), never an absent field. Callers never
// need to nil-check.
type Context struct {
	WorkingMemory map[string]any   `yaml:"working_memory"`
	World         WorldSnapshot    `yaml:"world"`
	Recalled      []RecalledMemory `yaml:"recalled"`
}

// Minimal reports whether the working-memory branch fell back to the
// degraded placeholder.
func (c Context) Minimal() bool {
	v, ok := c.WorkingMemory["minimal"].(bool)
	return ok && v
}

// ToolInvocation records one tool dispatch made during deliberation.
// It is created on intent match, completed asynchronously by the executor,
// and never retried. Injected marks whether the result was spliced into the
// live response stream; a result that arrives after stream end is persisted
// to memory for the next turn's context but never spoken.
type ToolInvocation struct {
	ID           string         `yaml:"id"`
	ToolName     string         `yaml:"tool_name"`
	Arguments    map[string]any `yaml:"arguments,omitempty"`
	DispatchedAt time.Time      `yaml:"dispatched_at"`
	CompletedAt  time.Time      `yaml:"completed_at,omitempty"`
	Result       any            `yaml:"result,omitempty"`
	Err          string         `yaml:"error,omitempty"`
	Injected     bool           `yaml:"injected"`
}

// Completed reports whether the executor has finished this invocation,
// successfully or not.
func (ti *ToolInvocation) Completed() bool {
	return !ti.CompletedAt.IsZero()
}

// State is the pipeline position of a Turn.
type State string

const (
	StateAdmitted         State = "admitted"
	StateContextGathering State = "context_gathering"
	StateFastPathCheck    State = "fast_path_check"
	StateDeliberating     State = "deliberating"
	StateFinalized        State = "finalized"
)

// Turn is one user utterance and its eventual response. A Turn is owned
// exclusively by the pipeline instance processing it and is never shared
// across turns. Once Finalize is called the Turn must not be mutated.
type Turn struct {
	ID          string    `yaml:"id"`
	SessionID   string    `yaml:"session_id"`
	RawText     string    `yaml:"raw_text"`
	ReceivedAt  time.Time `yaml:"received_at"`
	Intent      Intent    `yaml:"intent"`
	Context     Context   `yaml:"context,omitempty"`
	State       State     `yaml:"state"`
	ResponseText string   `yaml:"response_text,omitempty"`
	// ToolInvocations is ordered by dispatch time.
	ToolInvocations []*ToolInvocation `yaml:"tool_invocations,omitempty"`
	// StreamErr records a mid-generation stream failure that led to
	// graceful truncation. It is never surfaced to the user.
	StreamErr   string    `yaml:"stream_error,omitempty"`
	FastPath    bool      `yaml:"fast_path,omitempty"`
	FinalizedAt time.Time `yaml:"finalized_at,omitempty"`
}

// Finalized reports whether the terminal state has been reached.
func (t *Turn) Finalized() bool {
	return !t.FinalizedAt.IsZero()
}

// Finalize moves the Turn to its terminal state. Calling it twice is a
// no-op; the first finalization wins.
func (t *Turn) Finalize(now time.Time) {
	if t.Finalized() {
		return
	}
	t.State = StateFinalized
	t.FinalizedAt = now
}

// AppendInvocation records a dispatched tool invocation in order.
func (t *Turn) AppendInvocation(inv *ToolInvocation) {
	t.ToolInvocations = append(t.ToolInvocations, inv)
}

// Clone returns a deep copy of the Turn suitable for mutation without
// affecting the original. Invocation structs are copied; Result values
// inside remain shared.
func (t *Turn) Clone() *Turn {
	if t == nil {
		return nil
	}
	out := *t
	out.Context = t.Context.Clone()
	if len(t.ToolInvocations) > 0 {
		out.ToolInvocations = make([]*ToolInvocation, len(t.ToolInvocations))
		for i, inv := range t.ToolInvocations {
			cp := *inv
			if inv.Arguments != nil {
				cp.Arguments = make(map[string]any, len(inv.Arguments))
				for k, v := range inv.Arguments {
					cp.Arguments[k] = v
				}
			}
			out.ToolInvocations[i] = &cp
		}
	}
	return &out
}

// Clone returns a copy of the Context with its own maps and slices.
func (c Context) Clone() Context {
	out := c
	if c.WorkingMemory != nil {
		out.WorkingMemory = make(map[string]any, len(c.WorkingMemory))
		for k, v := range c.WorkingMemory {
			out.WorkingMemory[k] = v
		}
	}
	if c.World.Facts != nil {
		out.World.Facts = make(map[string]any, len(c.World.Facts))
		for k, v := range c.World.Facts {
			out.World.Facts[k] = v
		}
	}
	if c.Recalled != nil {
		out.Recalled = append([]RecalledMemory(nil), c.Recalled...)
	}
	return out
}
