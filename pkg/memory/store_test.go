package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhollow/cortex/pkg/turns"
)

func finalizedTurn(sessionID, raw, response string) *turns.Turn {
	t := turns.NewTurn(sessionID, raw, turns.Intent{Category: turns.CategoryQuery}, time.Now())
	t.ResponseText = response
	t.Finalize(time.Now())
	return t
}

func TestInMemoryWorkingIncludesRecentFragments(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	s.SetWorking("s1", map[string]any{"topic": "greenhouse"})

	for _, text := range []string{"one", "two", "three", "four", "five", "six"} {
		require.NoError(t, s.AppendFragment(ctx, "s1", "user", text))
	}

	wm, err := s.LoadWorking(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "greenhouse", wm["topic"])

	recent, ok := wm["recent_fragments"].([]string)
	require.True(t, ok)
	require.Len(t, recent, 5, "only the most recent fragments ride along")
	assert.Equal(t, "user: six", recent[0])
}

func TestInMemoryRecallRanksByOverlap(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.PersistTurn(ctx, finalizedTurn("s1", "how warm is the greenhouse", "The greenhouse is at 24 degrees.")))
	require.NoError(t, s.PersistTurn(ctx, finalizedTurn("s1", "water the plants", "Watering started.")))

	hits, err := s.RecallSemantic(ctx, "greenhouse temperature", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Contains(t, hits[0].Content, "24 degrees")
	assert.Equal(t, "episodic", hits[0].Layer)
}

func TestInMemoryHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewInMemoryStore()
	_, err := s.LoadWorking(ctx, "s1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSQLiteRoundtrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cortex.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)

	require.NoError(t, s.AppendFragment(ctx, "s1", "user", "check the greenhouse"))
	require.NoError(t, s.AppendFragment(ctx, "s1", "assistant", "Looking now."))

	turn := finalizedTurn("s1", "how warm is the greenhouse", "The greenhouse is at 24 degrees.")
	require.NoError(t, s.PersistTurn(ctx, turn))
	// Re-persisting the same turn replaces the row instead of failing.
	require.NoError(t, s.PersistTurn(ctx, turn))
	require.NoError(t, s.Close())

	// A fresh handle sees the same data.
	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	wm, err := s.LoadWorking(ctx, "s1")
	require.NoError(t, err)
	recent, ok := wm["recent_fragments"].([]string)
	require.True(t, ok)
	require.Len(t, recent, 2)
	assert.Equal(t, "assistant: Looking now.", recent[0])

	hits, err := s.RecallSemantic(ctx, "greenhouse", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Content, "24 degrees")
}

func TestSQLiteRecallEmptyQuery(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cortex.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	hits, err := s.RecallSemantic(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLiteSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cortex.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	require.NoError(t, s.AppendFragment(ctx, "s1", "user", "hello from s1"))

	wm, err := s.LoadWorking(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, wm)
}
