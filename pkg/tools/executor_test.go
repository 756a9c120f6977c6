package tools

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRoundtrip(t *testing.T) {
	r := NewInMemoryRegistry()

	require.NoError(t, r.Register(Definition{
		Name:        "echo",
		Description: "returns its query",
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			return args["query"], nil
		},
	}))

	def, err := r.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", def.Name)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistryRejectsInvalidDefinitions(t *testing.T) {
	r := NewInMemoryRegistry()

	assert.Error(t, r.Register(Definition{Run: func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }}))
	assert.Error(t, r.Register(Definition{Name: "no-run"}))
}

func TestRegistryListIsSorted(t *testing.T) {
	r := NewInMemoryRegistry()
	noop := func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }

	require.NoError(t, r.Register(Definition{Name: "zeta", Run: noop}))
	require.NoError(t, r.Register(Definition{Name: "alpha", Run: noop}))

	defs := r.List()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "zeta", defs[1].Name)
}

func TestExecutorInvoke(t *testing.T) {
	r := NewInMemoryRegistry()
	require.NoError(t, r.Register(Definition{
		Name: "double",
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			n, _ := args["n"].(int)
			return n * 2, nil
		},
	}))

	e := NewExecutor(r)
	result, err := e.Invoke(context.Background(), "double", map[string]any{"n": 21})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestExecutorWrapsToolFailure(t *testing.T) {
	r := NewInMemoryRegistry()
	require.NoError(t, r.Register(Definition{
		Name: "broken",
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("upstream unavailable")
		},
	}))

	e := NewExecutor(r)
	_, err := e.Invoke(context.Background(), "broken", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolFailed)
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestExecutorTimeout(t *testing.T) {
	r := NewInMemoryRegistry()
	require.NoError(t, r.Register(Definition{
		Name: "slow",
		Run: func(ctx context.Context, args map[string]any) (any, error) {
			select {
			case <-time.After(time.Second):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}))

	e := NewExecutor(r, WithTimeout(20*time.Millisecond))
	start := time.Now()
	_, err := e.Invoke(context.Background(), "slow", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolFailed)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestExecutorUnknownTool(t *testing.T) {
	e := NewExecutor(NewInMemoryRegistry())
	_, err := e.Invoke(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}
