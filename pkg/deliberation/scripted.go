package deliberation

import (
	"context"
	"time"
)

// ScriptedGenerator replays a fixed fragment sequence. It backs tests and
// the offline CLI mode, where running without a provider key should still
// exercise the full streaming path.
type ScriptedGenerator struct {
	// Fragments are emitted in order, one chunk each.
	Fragments []string
	// Interval is an optional pause before each fragment.
	Interval time.Duration
	// FailAfter, when >= 0, emits StreamErr in place of the fragment at
	// that index and ends the stream.
	FailAfter int
	// StreamErr is the mid-stream error paired with FailAfter.
	StreamErr error
	// StartErr, when set, makes Generate fail before any chunk.
	StartErr error
}

// NewScriptedGenerator returns a generator replaying fragments with no
// delays and no failures.
func NewScriptedGenerator(fragments ...string) *ScriptedGenerator {
	return &ScriptedGenerator{Fragments: fragments, FailAfter: -1}
}

func (g *ScriptedGenerator) Generate(ctx context.Context, _ Prompt) (<-chan Chunk, error) {
	if g.StartErr != nil {
		return nil, g.StartErr
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		for i, frag := range g.Fragments {
			if g.Interval > 0 {
				select {
				case <-time.After(g.Interval):
				case <-ctx.Done():
					return
				}
			}
			if g.FailAfter >= 0 && i == g.FailAfter {
				select {
				case out <- Chunk{Err: g.StreamErr}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- Chunk{Delta: frag}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

var _ Generator = (*ScriptedGenerator)(nil)
