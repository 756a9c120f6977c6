package deliberation

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/voxhollow/cortex/pkg/memory"
)

// mirror copies completed response sentences into the memory store as they
// are spoken, so an interrupted turn still leaves a partial trace. A single
// writer goroutine keeps fragments in spoken order; writes never block the
// stream, and consecutive duplicate sentences are suppressed.
type mirror struct {
	store     memory.Store
	sessionID string

	buf   strings.Builder
	last  string
	queue chan string
	done  chan struct{}
}

func newMirror(store memory.Store, sessionID string) *mirror {
	m := &mirror{
		store:     store,
		sessionID: sessionID,
		queue:     make(chan string, 64),
		done:      make(chan struct{}),
	}
	if store == nil {
		close(m.done)
		return m
	}
	go m.writer()
	return m
}

// Append buffers a streamed delta and flushes any completed sentences.
func (m *mirror) Append(delta string) {
	if m.store == nil {
		return
	}
	m.buf.WriteString(delta)
	text := m.buf.String()

	cut := strings.LastIndexFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	if cut < 0 {
		return
	}
	m.flush(text[:cut+1])
	m.buf.Reset()
	m.buf.WriteString(text[cut+1:])
}

// Finish flushes the remaining buffer and waits for queued writes.
func (m *mirror) Finish() {
	if m.store == nil {
		return
	}
	m.flush(m.buf.String())
	m.buf.Reset()
	close(m.queue)
	<-m.done
}

func (m *mirror) flush(text string) {
	text = strings.TrimSpace(text)
	if text == "" || text == m.last {
		return
	}
	m.last = text

	select {
	case m.queue <- text:
	default:
		log.Warn().Str("session_id", m.sessionID).Msg("mirror queue full, dropping fragment")
	}
}

func (m *mirror) writer() {
	defer close(m.done)
	for text := range m.queue {
		if err := m.store.AppendFragment(context.Background(), m.sessionID, "assistant", text); err != nil {
			log.Warn().Err(err).Str("session_id", m.sessionID).Msg("failed to mirror response fragment")
		}
	}
}
