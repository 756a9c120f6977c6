package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Topic is the watermill topic all external events travel on.
const Topic = "cortex.events"

// Bus is the external-event feed. Producers publish ExternalEvents through a
// watermill gochannel pubsub; a bus-owned pump goroutine fans delivered
// messages into per-session cursor buffers. Consumers drain their session's
// buffer with Poll, which is non-blocking and delivers each event at most
// once per session, even under concurrent polling.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter

	mu       sync.Mutex
	cursors  map[string][]ExternalEvent
	maxQueue int

	cancel context.CancelFunc
	done   chan struct{}
}

type BusOption func(*Bus)

// WithLogger sets the watermill logger used by the underlying pubsub.
func WithLogger(logger watermill.LoggerAdapter) BusOption {
	return func(b *Bus) { b.logger = logger }
}

// WithMaxQueue caps the number of undelivered events buffered per session.
// Oldest events are dropped first when the cap is exceeded.
func WithMaxQueue(n int) BusOption {
	return func(b *Bus) { b.maxQueue = n }
}

// NewBus creates the bus and starts its pump goroutine. Call Close to shut
// it down.
func NewBus(opts ...BusOption) (*Bus, error) {
	b := &Bus{
		logger:   watermill.NopLogger{},
		cursors:  map[string][]ExternalEvent{},
		maxQueue: 64,
	}
	for _, o := range opts {
		o(b)
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, b.logger)
	b.publisher = pubSub
	b.subscriber = pubSub

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	messages, err := b.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "subscribe to event topic")
	}

	b.done = make(chan struct{})
	go b.pump(messages)

	return b, nil
}

// RegisterSession creates the cursor for a session so that subsequent
// broadcast events reach it. Registering twice is a no-op.
func (b *Bus) RegisterSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.cursors[sessionID]; !ok {
		b.cursors[sessionID] = nil
	}
}

// DropSession discards a session's cursor and any undelivered events.
func (b *Bus) DropSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.cursors, sessionID)
}

// Publish puts an event on the feed.
func (b *Bus) Publish(ev ExternalEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal external event")
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return errors.Wrap(b.publisher.Publish(Topic, msg), "publish external event")
}

// Poll drains the undelivered events for the session that occurred after
// since. It never blocks; an empty slice means no new events. Draining and
// delivery are atomic, so the same event is never handed to two concurrent
// consumers of the same session.
func (b *Bus) Poll(sessionID string, since time.Time) []ExternalEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	queued := b.cursors[sessionID]
	if len(queued) == 0 {
		return nil
	}
	b.cursors[sessionID] = nil

	out := make([]ExternalEvent, 0, len(queued))
	for _, ev := range queued {
		if !ev.OccurredAt.Before(since) {
			out = append(out, ev)
		}
	}
	return out
}

// Close stops the pump and closes the underlying pubsub.
func (b *Bus) Close() error {
	b.cancel()
	err := b.publisher.Close()
	if err != nil {
		log.Error().Err(err).Msg("failed to close event pubsub")
	}
	<-b.done
	return err
}

func (b *Bus) pump(messages <-chan *message.Message) {
	defer close(b.done)
	for msg := range messages {
		var ev ExternalEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			log.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping malformed external event")
			msg.Ack()
			continue
		}
		b.enqueue(ev)
		msg.Ack()
	}
}

func (b *Bus) enqueue(ev ExternalEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.SessionID != "" {
		b.appendLocked(ev.SessionID, ev)
		return
	}
	for sessionID := range b.cursors {
		b.appendLocked(sessionID, ev)
	}
}

func (b *Bus) appendLocked(sessionID string, ev ExternalEvent) {
	q := append(b.cursors[sessionID], ev)
	if len(q) > b.maxQueue {
		q = q[len(q)-b.maxQueue:]
	}
	b.cursors[sessionID] = q
}
