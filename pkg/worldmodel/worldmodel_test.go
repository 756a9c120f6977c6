package worldmodel

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedBeforeFirstFetch(t *testing.T) {
	m := NewCachingModel(func(ctx context.Context) (map[string]any, error) {
		return nil, errors.New("not ready")
	})

	snap := m.Cached()
	assert.True(t, snap.Cached)
	assert.Empty(t, snap.Facts)
}

func TestLiveUpdatesCache(t *testing.T) {
	facts := map[string]any{"door": "open"}
	var fail bool
	m := NewCachingModel(func(ctx context.Context) (map[string]any, error) {
		if fail {
			return nil, errors.New("feed down")
		}
		return facts, nil
	})

	live, err := m.Live(context.Background())
	require.NoError(t, err)
	assert.False(t, live.Cached)
	assert.Equal(t, "open", live.Facts["door"])
	assert.False(t, live.CapturedAt.IsZero())

	// The feed goes down; the last good snapshot keeps serving.
	fail = true
	_, err = m.Live(context.Background())
	require.Error(t, err)

	cached := m.Cached()
	assert.True(t, cached.Cached)
	assert.Equal(t, "open", cached.Facts["door"])
}

func TestStaticModel(t *testing.T) {
	m := NewStaticModel(map[string]any{"host": "test"})
	live, err := m.Live(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", live.Facts["host"])

	n := NewStaticModel(nil)
	live, err = n.Live(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, live.Facts)
}
