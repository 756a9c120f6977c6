package deliberation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxhollow/cortex/pkg/events"
	"github.com/voxhollow/cortex/pkg/memory"
	"github.com/voxhollow/cortex/pkg/turns"
)

// ItemKind discriminates the entries on a deliberation stream.
type ItemKind string

const (
	// ItemToken is a verbatim model output fragment.
	ItemToken ItemKind = "token"
	// ItemToolResult is a tool result spliced into the stream at a
	// sentence boundary.
	ItemToolResult ItemKind = "tool_result"
	// ItemEvent is an external event surfaced mid-response.
	ItemEvent ItemKind = "event"
)

// Item is one entry on the response stream handed to the caller. Text is
// always the speakable rendering; Invocation and Event carry the structured
// source for the non-token kinds.
type Item struct {
	Kind       ItemKind
	Text       string
	Invocation *turns.ToolInvocation
	Event      *events.ExternalEvent
}

// Invoker runs a named tool. *tools.Executor satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// EventSource drains pending external events for a session. *events.Bus
// satisfies it.
type EventSource interface {
	Poll(sessionID string, since time.Time) []events.ExternalEvent
}

// Config tunes the deliberation loop.
type Config struct {
	// SystemPrompt frames the generator; empty selects the default.
	SystemPrompt string
	// EventPollInterval is how often the external-event feed is drained
	// while streaming.
	EventPollInterval time.Duration
	// StallTimeout truncates a stream that stops producing chunks.
	StallTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		EventPollInterval: 2 * time.Second,
		StallTimeout:      45 * time.Second,
	}
}

// Engine streams a response for an admitted turn while concurrently
// detecting tool needs, dispatching them, and splicing results and external
// events into the output at sentence boundaries.
type Engine struct {
	gen     Generator
	invoker Invoker
	store   memory.Store
	source  EventSource
	cfg     Config
	matcher *intentMatcher

	now func() time.Time
}

type Option func(*Engine)

// WithInvoker enables tool dispatch. Without one, detected tool intents are
// logged and skipped.
func WithInvoker(inv Invoker) Option {
	return func(e *Engine) { e.invoker = inv }
}

// WithStore enables response mirroring and tool-result persistence.
func WithStore(store memory.Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithEventSource enables mid-response external event injection.
func WithEventSource(src EventSource) Option {
	return func(e *Engine) { e.source = src }
}

func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

func NewEngine(gen Generator, opts ...Option) *Engine {
	e := &Engine{
		gen:     gen,
		cfg:     DefaultConfig(),
		matcher: newIntentMatcher(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.cfg.EventPollInterval <= 0 {
		e.cfg.EventPollInterval = 2 * time.Second
	}
	if e.cfg.StallTimeout <= 0 {
		e.cfg.StallTimeout = 45 * time.Second
	}
	return e
}

// fallbackResponse is spoken when no generator can produce a stream at all.
const fallbackResponse = "I'm having trouble processing that right now. Could you try again in a moment?"

// Deliberate streams the response for t. The returned channel is closed when
// the response is complete, truncated, or ctx is cancelled. The engine
// mutates t (invocations, StreamErr) only until the channel closes.
func (e *Engine) Deliberate(ctx context.Context, t *turns.Turn) <-chan Item {
	out := make(chan Item)
	go e.run(ctx, t, out)
	return out
}

type toolCompletion struct {
	inv    *turns.ToolInvocation
	result any
	err    error
	at     time.Time
}

func (e *Engine) run(ctx context.Context, t *turns.Turn, out chan<- Item) {
	defer close(out)

	mir := newMirror(e.store, t.SessionID)
	defer mir.Finish()

	chunks, err := e.gen.Generate(ctx, BuildPrompt(t, e.cfg.SystemPrompt))
	if err != nil {
		log.Error().Err(err).Str("turn_id", t.ID).Msg("generation unavailable, speaking fallback")
		t.StreamErr = err.Error()
		e.emit(ctx, out, Item{Kind: ItemToken, Text: fallbackResponse})
		mir.Append(fallbackResponse)
		return
	}

	toolDone := make(chan toolCompletion, 8)
	dispatched := map[string]bool{}
	var transcript string
	var pending []Item

	// Tool needs stated outright in the utterance are dispatched before
	// the first chunk lands.
	e.scanAndDispatch(ctx, t, t.RawText, dispatched, toolDone)

	ticker := time.NewTicker(e.cfg.EventPollInterval)
	defer ticker.Stop()
	stall := time.NewTimer(e.cfg.StallTimeout)
	defer stall.Stop()

	flush := func() bool {
		for len(pending) > 0 {
			it := pending[0]
			pending = pending[1:]
			if it.Invocation != nil {
				it.Invocation.Injected = true
			}
			if !e.emit(ctx, out, it) {
				return false
			}
			mir.Append(it.Text)
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("turn_id", t.ID).Msg("deliberation cancelled")
			return

		case chunk, ok := <-chunks:
			if !ok {
				// Stream end is always a safe splice point. Results that
				// already arrived get spoken; anything later is memory-only.
				e.drainCompletions(t, toolDone, &pending)
				if e.source != nil {
					for _, ev := range e.source.Poll(t.SessionID, t.ReceivedAt) {
						pending = append(pending, eventItem(ev))
					}
				}
				flush()
				return
			}
			if chunk.Err != nil {
				t.StreamErr = chunk.Err.Error()
				log.Warn().Err(chunk.Err).Str("turn_id", t.ID).
					Msg("stream broke mid-generation, truncating response")
				return
			}

			if !stall.Stop() {
				<-stall.C
			}
			stall.Reset(e.cfg.StallTimeout)

			transcript += chunk.Delta
			if !e.emit(ctx, out, Item{Kind: ItemToken, Text: chunk.Delta}) {
				return
			}
			mir.Append(chunk.Delta)
			e.scanAndDispatch(ctx, t, transcript, dispatched, toolDone)

			if endsAtBoundary(chunk.Delta) {
				if !flush() {
					return
				}
			}

		case done := <-toolDone:
			e.applyCompletion(t, done, &pending)

		case <-ticker.C:
			if e.source == nil {
				continue
			}
			for _, ev := range e.source.Poll(t.SessionID, t.ReceivedAt) {
				pending = append(pending, eventItem(ev))
			}

		case <-stall.C:
			t.StreamErr = "model stream stalled"
			log.Warn().Str("turn_id", t.ID).Dur("timeout", e.cfg.StallTimeout).
				Msg("no chunk within stall timeout, truncating response")
			return
		}
	}
}

func (e *Engine) emit(ctx context.Context, out chan<- Item, it Item) bool {
	select {
	case out <- it:
		return true
	case <-ctx.Done():
		return false
	}
}

// scanAndDispatch matches the transcript against the tool-intent rules and
// dispatches each newly detected tool in its own goroutine. The dispatch
// context is detached from the turn so an in-flight invocation survives
// cancellation; its result is persisted to memory either way.
func (e *Engine) scanAndDispatch(ctx context.Context, t *turns.Turn, text string, dispatched map[string]bool, toolDone chan<- toolCompletion) {
	if e.invoker == nil {
		return
	}
	for _, ti := range e.matcher.Scan(text) {
		if dispatched[ti.Name] {
			continue
		}
		dispatched[ti.Name] = true

		inv := turns.NewToolInvocation(ti.Name, ti.Args, e.now())
		t.AppendInvocation(inv)
		log.Debug().Str("tool", ti.Name).Str("turn_id", t.ID).Msg("dispatching tool mid-stream")

		dctx := context.WithoutCancel(ctx)
		go func(inv *turns.ToolInvocation) {
			result, err := e.invoker.Invoke(dctx, inv.ToolName, inv.Arguments)
			at := e.now()
			e.persistToolResult(dctx, t.SessionID, inv.ToolName, result, err)
			select {
			case toolDone <- toolCompletion{inv: inv, result: result, err: err, at: at}:
			default:
				log.Warn().Str("tool", inv.ToolName).Msg("tool completion buffer full, result kept in memory only")
			}
		}(inv)
	}
}

func (e *Engine) persistToolResult(ctx context.Context, sessionID, tool string, result any, err error) {
	if e.store == nil {
		return
	}
	text := fmt.Sprintf("%s result: %v", tool, result)
	if err != nil {
		text = fmt.Sprintf("%s failed: %v", tool, err)
	}
	if serr := e.store.AppendFragment(ctx, sessionID, "tool", text); serr != nil {
		log.Warn().Err(serr).Str("tool", tool).Msg("failed to persist tool result")
	}
}

// applyCompletion records an executor completion on its invocation and, if
// it succeeded, queues a speakable rendering for the next safe boundary.
// Failures are recorded silently; the response continues without them.
func (e *Engine) applyCompletion(t *turns.Turn, done toolCompletion, pending *[]Item) {
	done.inv.CompletedAt = done.at
	done.inv.Result = done.result
	if done.err != nil {
		done.inv.Err = done.err.Error()
		log.Debug().Str("tool", done.inv.ToolName).Str("turn_id", t.ID).
			Msg("tool failed, continuing without its result")
		return
	}
	*pending = append(*pending, Item{
		Kind:       ItemToolResult,
		Text:       renderToolResult(done.inv),
		Invocation: done.inv,
	})
}

// drainCompletions applies every completion already buffered, without
// blocking on in-flight tools.
func (e *Engine) drainCompletions(t *turns.Turn, toolDone <-chan toolCompletion, pending *[]Item) {
	for {
		select {
		case done := <-toolDone:
			e.applyCompletion(t, done, pending)
		default:
			return
		}
	}
}

func eventItem(ev events.ExternalEvent) Item {
	cp := ev
	return Item{Kind: ItemEvent, Text: renderEvent(ev), Event: &cp}
}

func renderToolResult(inv *turns.ToolInvocation) string {
	return fmt.Sprintf(" I just checked %s: %v.", inv.ToolName, inv.Result)
}

func renderEvent(ev events.ExternalEvent) string {
	switch ev.Type {
	case events.EventTypeNotification:
		return fmt.Sprintf(" One moment, a notification just came in: %s.", ev.Summary())
	case events.EventTypeToolResult:
		return fmt.Sprintf(" An earlier lookup just finished: %s.", ev.Summary())
	default:
		return fmt.Sprintf(" By the way, %s.", ev.Summary())
	}
}

// endsAtBoundary reports whether delta ends at a sentence boundary, the
// only place non-token items may be spliced without interrupting speech.
func endsAtBoundary(delta string) bool {
	if delta == "" {
		return false
	}
	return isBoundaryByte(delta[len(delta)-1])
}
