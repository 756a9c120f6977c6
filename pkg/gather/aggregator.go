package gather

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/voxhollow/cortex/pkg/memory"
	"github.com/voxhollow/cortex/pkg/turns"
	"github.com/voxhollow/cortex/pkg/worldmodel"
)

// Budgets are the per-branch timeouts, measured from dispatch of each
// branch, not from the start of the turn.
type Budgets struct {
	Working time.Duration
	World   time.Duration
	Recall  time.Duration
}

func DefaultBudgets() Budgets {
	return Budgets{
		Working: 2 * time.Second,
		World:   2 * time.Second,
		Recall:  3 * time.Second,
	}
}

// Aggregator fans out to the memory store and world model concurrently and
// composes a single Context. Every branch resolves to either its live value
// or an explicit degraded fallback, so Gather always returns a fully
// populated Context and never propagates an error. Total wall time is
// bounded by the slowest branch, not the sum.
type Aggregator struct {
	store       memory.Store
	world       worldmodel.Model
	budgets     Budgets
	recallLimit int
}

type Option func(*Aggregator)

func WithBudgets(b Budgets) Option {
	return func(a *Aggregator) { a.budgets = b }
}

func WithRecallLimit(n int) Option {
	return func(a *Aggregator) { a.recallLimit = n }
}

func NewAggregator(store memory.Store, world worldmodel.Model, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:       store,
		world:       world,
		budgets:     DefaultBudgets(),
		recallLimit: 5,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Gather runs the three context branches in parallel and returns once every
// branch has completed or individually timed out.
func (a *Aggregator) Gather(ctx context.Context, sessionID, query string) turns.Context {
	out := turns.Context{}

	// Branches only ever return nil; errgroup is used for the fan-in.
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		branchCtx, cancel := context.WithTimeout(ctx, a.budgets.Working)
		defer cancel()
		wm, err := a.store.LoadWorking(branchCtx, sessionID)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).
				Msg("working memory load failed, using minimal context")
			out.WorkingMemory = turns.MinimalWorkingMemory()
			return nil
		}
		if wm == nil {
			wm = map[string]any{}
		}
		out.WorkingMemory = wm
		return nil
	})

	g.Go(func() error {
		branchCtx, cancel := context.WithTimeout(ctx, a.budgets.World)
		defer cancel()
		snap, err := a.world.Live(branchCtx)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).
				Msg("live world snapshot failed, using cached")
			out.World = a.world.Cached()
			out.World.Cached = true
			return nil
		}
		out.World = snap
		return nil
	})

	g.Go(func() error {
		branchCtx, cancel := context.WithTimeout(ctx, a.budgets.Recall)
		defer cancel()
		recalled, err := a.store.RecallSemantic(branchCtx, query, a.recallLimit)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).
				Msg("memory recall failed, proceeding without memories")
			out.Recalled = []turns.RecalledMemory{}
			return nil
		}
		if recalled == nil {
			recalled = []turns.RecalledMemory{}
		}
		out.Recalled = recalled
		return nil
	})

	_ = g.Wait()
	return out
}
