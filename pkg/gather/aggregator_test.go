package gather

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhollow/cortex/pkg/memory"
	"github.com/voxhollow/cortex/pkg/turns"
)

// fakeStore lets each branch be delayed or failed independently.
type fakeStore struct {
	workingDelay time.Duration
	workingErr   error
	working      map[string]any

	recallDelay time.Duration
	recallErr   error
	recalled    []turns.RecalledMemory
}

func (f *fakeStore) LoadWorking(ctx context.Context, sessionID string) (map[string]any, error) {
	if err := wait(ctx, f.workingDelay); err != nil {
		return nil, err
	}
	if f.workingErr != nil {
		return nil, f.workingErr
	}
	return f.working, nil
}

func (f *fakeStore) RecallSemantic(ctx context.Context, query string, limit int) ([]turns.RecalledMemory, error) {
	if err := wait(ctx, f.recallDelay); err != nil {
		return nil, err
	}
	if f.recallErr != nil {
		return nil, f.recallErr
	}
	return f.recalled, nil
}

func (f *fakeStore) AppendFragment(ctx context.Context, sessionID, speaker, text string) error {
	return nil
}

func (f *fakeStore) PersistTurn(ctx context.Context, t *turns.Turn) error { return nil }

var _ memory.Store = (*fakeStore)(nil)

type fakeWorld struct {
	delay  time.Duration
	err    error
	live   turns.WorldSnapshot
	cached turns.WorldSnapshot
}

func (f *fakeWorld) Live(ctx context.Context) (turns.WorldSnapshot, error) {
	if err := wait(ctx, f.delay); err != nil {
		return turns.WorldSnapshot{}, err
	}
	if f.err != nil {
		return turns.WorldSnapshot{}, f.err
	}
	return f.live, nil
}

func (f *fakeWorld) Cached() turns.WorldSnapshot { return f.cached }

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func smallBudgets() Budgets {
	return Budgets{
		Working: 50 * time.Millisecond,
		World:   50 * time.Millisecond,
		Recall:  80 * time.Millisecond,
	}
}

func TestGatherAllBranchesLive(t *testing.T) {
	store := &fakeStore{
		working:  map[string]any{"topic": "sensors"},
		recalled: []turns.RecalledMemory{{Content: "sensor 3 was flaky", Score: 0.9}},
	}
	world := &fakeWorld{live: turns.WorldSnapshot{Facts: map[string]any{"door": "closed"}}}

	a := NewAggregator(store, world, WithBudgets(smallBudgets()))
	c := a.Gather(context.Background(), "s1", "sensor status")

	assert.Equal(t, "sensors", c.WorkingMemory["topic"])
	assert.False(t, c.World.Cached)
	assert.Equal(t, "closed", c.World.Facts["door"])
	require.Len(t, c.Recalled, 1)
	assert.False(t, c.Minimal())
}

func TestGatherEveryBranchFallsBack(t *testing.T) {
	store := &fakeStore{
		workingErr: errors.New("memory service down"),
		recallErr:  errors.New("memory service down"),
	}
	world := &fakeWorld{
		err:    errors.New("world service down"),
		cached: turns.WorldSnapshot{Facts: map[string]any{"door": "closed"}},
	}

	a := NewAggregator(store, world, WithBudgets(smallBudgets()))
	c := a.Gather(context.Background(), "s1", "anything")

	assert.True(t, c.Minimal(), "failed working branch must degrade to the minimal marker")
	assert.True(t, c.World.Cached, "failed world branch must serve the cached snapshot")
	require.NotNil(t, c.Recalled)
	assert.Empty(t, c.Recalled, "failed recall degrades to an explicit empty slice")
}

func TestGatherBranchTimeoutIsIsolated(t *testing.T) {
	store := &fakeStore{
		workingDelay: 300 * time.Millisecond,
		working:      map[string]any{"topic": "never arrives"},
		recalled:     []turns.RecalledMemory{{Content: "still here", Score: 0.5}},
	}
	world := &fakeWorld{live: turns.WorldSnapshot{Facts: map[string]any{"door": "open"}}}

	a := NewAggregator(store, world, WithBudgets(smallBudgets()))
	c := a.Gather(context.Background(), "s1", "anything")

	assert.True(t, c.Minimal(), "slow working branch must not block the turn")
	assert.Equal(t, "open", c.World.Facts["door"])
	require.Len(t, c.Recalled, 1)
}

func TestGatherWallTimeIsBoundedBySlowestBranch(t *testing.T) {
	store := &fakeStore{
		workingDelay: 30 * time.Millisecond,
		working:      map[string]any{},
		recallDelay:  40 * time.Millisecond,
		recalled:     []turns.RecalledMemory{},
	}
	world := &fakeWorld{delay: 35 * time.Millisecond, live: turns.WorldSnapshot{}}

	a := NewAggregator(store, world, WithBudgets(Budgets{
		Working: 200 * time.Millisecond,
		World:   200 * time.Millisecond,
		Recall:  200 * time.Millisecond,
	}))

	start := time.Now()
	a.Gather(context.Background(), "s1", "anything")
	elapsed := time.Since(start)

	// Serial execution would need >= 105ms.
	assert.Less(t, elapsed, 90*time.Millisecond, "branches must run concurrently")
}

func TestGatherRecallLimit(t *testing.T) {
	many := make([]turns.RecalledMemory, 10)
	store := &fakeStore{working: map[string]any{}, recalled: many}
	world := &fakeWorld{live: turns.WorldSnapshot{}}

	var gotLimit int
	a := NewAggregator(&limitSpy{fakeStore: store, limit: &gotLimit}, world, WithRecallLimit(3))
	a.Gather(context.Background(), "s1", "anything")

	assert.Equal(t, 3, gotLimit)
}

type limitSpy struct {
	*fakeStore
	limit *int
}

func (l *limitSpy) RecallSemantic(ctx context.Context, query string, limit int) ([]turns.RecalledMemory, error) {
	*l.limit = limit
	return l.fakeStore.RecallSemantic(ctx, query, limit)
}
