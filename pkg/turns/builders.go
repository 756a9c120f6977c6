package turns

import (
	"time"

	"github.com/google/uuid"
)

// NewTurn creates an admitted Turn for the given utterance.
func NewTurn(sessionID, rawText string, intent Intent, now time.Time) *Turn {
	return &Turn{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		RawText:    rawText,
		ReceivedAt: now,
		Intent:     intent,
		State:      StateAdmitted,
	}
}

// NewToolInvocation creates a dispatched-but-incomplete invocation record.
func NewToolInvocation(toolName string, args map[string]any, now time.Time) *ToolInvocation {
	return &ToolInvocation{
		ID:           uuid.NewString(),
		ToolName:     toolName,
		Arguments:    args,
		DispatchedAt: now,
	}
}

// MinimalWorkingMemory is the degraded working-memory placeholder used when
// the working-memory branch times out or fails.
func MinimalWorkingMemory() map[string]any {
	return map[string]any{"minimal": true}
}
