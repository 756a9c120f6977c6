package memory

import (
	"context"

	"github.com/pkg/errors"

	"github.com/voxhollow/cortex/pkg/turns"
)

// ErrUnavailable is returned when the backing store cannot serve a read.
// Callers own the fallback: the error is absorbed at the component boundary
// and never propagates past it.
var ErrUnavailable = errors.New("memory store unavailable")

// Store is the pipeline's view of durable memory. Read budgets come from
// the caller's context; implementations must respect cancellation.
//
// AppendFragment and PersistTurn are best-effort: failures are logged by
// the caller and never surfaced to the user.
type Store interface {
	// LoadWorking returns the session's working-memory map.
	LoadWorking(ctx context.Context, sessionID string) (map[string]any, error)

	// RecallSemantic returns memories relevant to the query, best first.
	RecallSemantic(ctx context.Context, query string, limit int) ([]turns.RecalledMemory, error)

	// AppendFragment mirrors one streamed fragment so partial conversations
	// survive a dropped connection.
	AppendFragment(ctx context.Context, sessionID, speaker, text string) error

	// PersistTurn stores a finalized turn in episodic memory.
	PersistTurn(ctx context.Context, t *turns.Turn) error
}
