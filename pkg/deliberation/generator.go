package deliberation

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/voxhollow/cortex/pkg/turns"
)

// Chunk is one streamed fragment from a generator. A non-nil Err means the
// stream broke mid-generation; the channel is closed right after. A closed
// channel with no Err is a normal end of stream.
type Chunk struct {
	Delta string
	Err   error
}

// Prompt is the generator input assembled from the turn and its gathered
// context.
type Prompt struct {
	SessionID string
	UserText  string
	Intent    turns.Intent
	Context   turns.Context
	System    string
}

// Generator is the streaming text-generation contract. Generate returns a
// lazy, single-pass chunk sequence; the sequence is finite and not
// restartable. Implementations must stop producing when ctx is cancelled.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (<-chan Chunk, error)
}

// ChainGenerator walks a fixed priority list of providers. A provider that
// fails to start with a non-timeout error advances the chain for this turn
// only; a timeout is the caller's budget expiring and is not a reason to
// try a slower provider. Mid-stream failures are not retried here: the
// engine truncates instead, since re-generating a partially spoken response
// would duplicate audio.
type ChainGenerator struct {
	providers []Generator
}

func NewChainGenerator(providers ...Generator) *ChainGenerator {
	return &ChainGenerator{providers: providers}
}

func (c *ChainGenerator) Generate(ctx context.Context, prompt Prompt) (<-chan Chunk, error) {
	if len(c.providers) == 0 {
		return nil, errors.New("no generators configured")
	}
	var lastErr error
	for i, g := range c.providers {
		ch, err := g.Generate(ctx, prompt)
		if err == nil {
			return ch, nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		log.Warn().Err(err).Int("provider", i).Msg("generator failed to start, advancing chain")
		lastErr = err
	}
	return nil, errors.Wrap(lastErr, "all generators failed")
}

var _ Generator = (*ChainGenerator)(nil)
