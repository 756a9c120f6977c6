package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxhollow/cortex/pkg/deliberation"
	"github.com/voxhollow/cortex/pkg/events"
	"github.com/voxhollow/cortex/pkg/gather"
	"github.com/voxhollow/cortex/pkg/ingress"
	"github.com/voxhollow/cortex/pkg/intuition"
	"github.com/voxhollow/cortex/pkg/memory"
	"github.com/voxhollow/cortex/pkg/turns"
)

// Pipeline drives a turn end to end: ingress admission, parallel context
// gathering, the intuition fast path, streaming deliberation, and
// asynchronous consolidation. One Pipeline serves many sessions; per-turn
// state lives on the Turn.
type Pipeline struct {
	gate         *ingress.Gate
	aggregator   *gather.Aggregator
	fastPath     *intuition.Gate
	engine       *deliberation.Engine
	store        memory.Store
	bus          *events.Bus
	consolidator *Consolidator
	affect       *AffectTracker

	now func() time.Time
}

type Option func(*Pipeline)

// WithGate replaces the default ingress gate.
func WithGate(g *ingress.Gate) Option {
	return func(p *Pipeline) { p.gate = g }
}

// WithIntuition replaces the default fast-path gate.
func WithIntuition(g *intuition.Gate) Option {
	return func(p *Pipeline) { p.fastPath = g }
}

// WithStore enables consolidation persistence.
func WithStore(store memory.Store) Option {
	return func(p *Pipeline) { p.store = store }
}

// WithBus registers sessions on the external-event feed as they appear.
func WithBus(bus *events.Bus) Option {
	return func(p *Pipeline) { p.bus = bus }
}

// WithConsolidator replaces the default consolidation pool.
func WithConsolidator(c *Consolidator) Option {
	return func(p *Pipeline) { p.consolidator = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(aggregator *gather.Aggregator, engine *deliberation.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		gate:       ingress.NewGate(ingress.DefaultConfig(), nil),
		aggregator: aggregator,
		fastPath:   intuition.NewGate(intuition.DefaultConfig()),
		engine:     engine,
		affect:     NewAffectTracker(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	if p.consolidator == nil {
		p.consolidator = NewConsolidator(2, 32)
	}
	return p
}

// Result is the outcome of handling one utterance. Exactly one of Rejection
// and Turn is set. When Turn is set, Stream carries the response; the Turn
// is finalized once Stream closes, and must not be read before then.
type Result struct {
	Turn      *turns.Turn
	Rejection *ingress.Rejection
	Stream    <-chan deliberation.Item
}

// Errors exposes consolidation failures for supervision.
func (p *Pipeline) Errors() <-chan error {
	return p.consolidator.Errors()
}

// Close drains the consolidation pool. In-flight response streams are not
// interrupted; cancel their contexts first.
func (p *Pipeline) Close() {
	p.consolidator.Close()
}

// Handle admits one utterance and, if accepted, streams its response.
// Rejection is not an error: the utterance was a duplicate or arrived too
// soon, and the caller should stay silent. Cancelling ctx stops the stream;
// the turn is still finalized and consolidated with whatever was produced.
func (p *Pipeline) Handle(ctx context.Context, sessionID, rawText string) Result {
	t, rejection := p.gate.Admit(sessionID, rawText, p.now())
	if rejection != nil {
		return Result{Rejection: rejection}
	}
	if p.bus != nil {
		p.bus.RegisterSession(sessionID)
	}

	t.State = turns.StateContextGathering
	t.Context = p.aggregator.Gather(ctx, sessionID, rawText)
	if p.affect != nil {
		t.Context.WorkingMemory["affect"] = p.affect.Snapshot()
	}

	t.State = turns.StateFastPathCheck
	if resp, ok := p.fastPath.TryFastPath(t.Intent, t.Context, rawText); ok {
		t.FastPath = true
		t.ResponseText = resp
		t.Finalize(p.now())
		p.scheduleConsolidation(t)
		log.Debug().Str("turn_id", t.ID).Msg("fast path response")

		stream := make(chan deliberation.Item, 1)
		stream <- deliberation.Item{Kind: deliberation.ItemToken, Text: resp}
		close(stream)
		return Result{Turn: t, Stream: stream}
	}

	t.State = turns.StateDeliberating
	inner := p.engine.Deliberate(ctx, t)
	out := make(chan deliberation.Item)
	go func() {
		defer close(out)
		for item := range inner {
			t.ResponseText += item.Text
			select {
			case out <- item:
			case <-ctx.Done():
				// Keep draining so the engine can finish and release the turn.
				for item := range inner {
					t.ResponseText += item.Text
				}
			}
		}
		t.Finalize(p.now())
		p.scheduleConsolidation(t)
	}()
	return Result{Turn: t, Stream: out}
}

// scheduleConsolidation queues post-turn persistence. It runs after
// Finalize, so the snapshot it captures is stable. The response path never
// waits on it.
func (p *Pipeline) scheduleConsolidation(t *turns.Turn) {
	if p.affect != nil {
		p.affect.Observe(t)
	}
	if p.store == nil {
		return
	}
	p.consolidator.Submit(Task{
		Name: "persist_turn",
		Run: func(ctx context.Context) error {
			if err := p.store.AppendFragment(ctx, t.SessionID, "user", t.RawText); err != nil {
				return err
			}
			return p.store.PersistTurn(ctx, t)
		},
	})
}
