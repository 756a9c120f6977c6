package intuition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxhollow/cortex/pkg/turns"
)

func TestFastPathGreeting(t *testing.T) {
	g := NewGate(DefaultConfig())

	resp, ok := g.TryFastPath(turns.Intent{Category: turns.CategoryChitchat}, turns.Context{}, "Hello!")
	require.True(t, ok)
	assert.NotEmpty(t, resp)
	assert.Equal(t, 1, g.UseCounts()["greeting_hello"])
}

func TestFastPathSkipsToolTurns(t *testing.T) {
	g := NewGate(DefaultConfig())

	_, ok := g.TryFastPath(turns.Intent{Category: turns.CategoryQuery, RequiresTool: true}, turns.Context{}, "hello, what's the device status")
	assert.False(t, ok, "tool-requiring turns must reach full deliberation")

	_, ok = g.TryFastPath(turns.Intent{Category: turns.CategoryAction, RequiresConfirmation: true}, turns.Context{}, "hello, delete everything")
	assert.False(t, ok, "confirmation-requiring turns must reach full deliberation")
}

func TestFastPathConfirmAndCancel(t *testing.T) {
	g := NewGate(DefaultConfig())

	resp, ok := g.TryFastPath(turns.Intent{Category: turns.CategoryConfirm}, turns.Context{}, "yes")
	require.True(t, ok)
	assert.Equal(t, "Got it.", resp)

	resp, ok = g.TryFastPath(turns.Intent{Category: turns.CategoryCancel}, turns.Context{}, "never mind")
	require.True(t, ok)
	assert.Contains(t, resp, "cancel")
}

func TestFastPathThreshold(t *testing.T) {
	g := NewGate(Config{Threshold: 0.90})

	g.Learn("weak", "special phrase", "canned answer", 0.85)
	_, ok := g.TryFastPath(turns.Intent{Category: turns.CategoryChitchat}, turns.Context{}, "special phrase")
	assert.False(t, ok, "heuristic below threshold must not fire")

	g.Learn("strong", "special phrase", "canned answer", 0.93)
	resp, ok := g.TryFastPath(turns.Intent{Category: turns.CategoryChitchat}, turns.Context{}, "special phrase")
	require.True(t, ok)
	assert.Equal(t, "canned answer", resp)
}

func TestLearnEvictsOldest(t *testing.T) {
	g := NewGate(Config{Threshold: 0.90, MaxEntries: 2})

	g.Learn("first", "alpha alpha", "first answer", 0.95)
	g.Learn("second", "beta beta", "second answer", 0.95)
	g.Learn("third", "gamma gamma", "third answer", 0.95)

	chitchat := turns.Intent{Category: turns.CategoryChitchat}
	_, ok := g.TryFastPath(chitchat, turns.Context{}, "alpha alpha")
	assert.False(t, ok, "oldest learned heuristic should be evicted")

	resp, ok := g.TryFastPath(chitchat, turns.Context{}, "gamma gamma")
	require.True(t, ok)
	assert.Equal(t, "third answer", resp)

	// Built-ins survive eviction pressure.
	_, ok = g.TryFastPath(chitchat, turns.Context{}, "hello")
	assert.True(t, ok)
}

func TestFastPathMiss(t *testing.T) {
	g := NewGate(DefaultConfig())

	_, ok := g.TryFastPath(turns.Intent{Category: turns.CategoryQuery}, turns.Context{}, "summarize the last three incidents")
	assert.False(t, ok)
}
