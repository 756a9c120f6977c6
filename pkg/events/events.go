package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType classifies events arriving on the external feed.
type EventType string

const (
	EventTypeAgentUpdate   EventType = "agent_update"
	EventTypeToolResult    EventType = "tool_result"
	EventTypeMemoryInsight EventType = "memory_insight"
	EventTypeNotification  EventType = "notification"
	EventTypeKnowledge     EventType = "knowledge"
)

// ExternalEvent is one item on the external feed. Events with an empty
// SessionID are broadcast to every session; a targeted event is only
// delivered to its session. Delivery is at-most-once per session.
type ExternalEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	SessionID  string         `json:"session_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewExternalEvent creates a broadcast event; set SessionID on the result to
// target a single session.
func NewExternalEvent(typ EventType, payload map[string]any, now time.Time) ExternalEvent {
	return ExternalEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		Payload:    payload,
		OccurredAt: now,
	}
}

// Summary is a one-line speakable description of the event, taken from the
// payload when a producer provided one.
func (e ExternalEvent) Summary() string {
	for _, key := range []string{"summary", "message", "text"} {
		if v, ok := e.Payload[key].(string); ok && v != "" {
			return v
		}
	}
	return "a new " + strings.ReplaceAll(string(e.Type), "_", " ") + " arrived"
}

func (e ExternalEvent) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("id", e.ID).Str("type", string(e.Type))
	if e.SessionID != "" {
		ev.Str("session_id", e.SessionID)
	}
	ev.Time("occurred_at", e.OccurredAt)
}
