package tools

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrToolFailed wraps a tool's own failure. Invocations are never retried
// automatically; the failure is recorded on the invocation and the turn
// continues without that result.
var ErrToolFailed = errors.New("tool execution failed")

// Executor invokes a named capability from the registry. It is stateless
// per call and safe for concurrent use.
type Executor struct {
	registry Registry
	timeout  time.Duration
}

type ExecutorOption func(*Executor)

// WithTimeout bounds a single invocation. Zero means the caller's context
// is the only bound.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

func NewExecutor(registry Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{registry: registry, timeout: 10 * time.Second}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Invoke runs the named tool synchronously and returns its result. Callers
// that must not block dispatch it from their own goroutine.
func (e *Executor) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	def, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := def.Run(ctx, args)
	if err != nil {
		log.Warn().Err(err).Str("tool", name).Dur("elapsed", time.Since(start)).
			Msg("tool invocation failed")
		return nil, errors.Wrapf(ErrToolFailed, "%s: %v", name, err)
	}
	log.Debug().Str("tool", name).Dur("elapsed", time.Since(start)).Msg("tool invocation complete")
	return result, nil
}
