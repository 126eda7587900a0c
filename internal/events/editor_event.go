package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EditorContentUpdated is the terminal outcome channel of an external edit
// session. Exactly one event is delivered per session.
const EditorContentUpdated = "events:editor:content-updated"

// EditorContentUpdatedEvent reports the result of one external edit round
// trip to the surface that requested it. Saved is false when the editor pane
// closed without saving or the session failed before opening.
type EditorContentUpdatedEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Surface   string    `json:"surface"`
	Content   string    `json:"content"`
	Saved     bool      `json:"saved"`
	Timestamp time.Time `json:"timestamp"`
}

// EmitEditorContentUpdated delivers the session outcome to the frontend.
func EmitEditorContentUpdated(ctx context.Context, sessionID, surface, content string, saved bool) {
	EmitPayload(ctx, EditorContentUpdated, EditorContentUpdatedEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Surface:   surface,
		Content:   content,
		Saved:     saved,
		Timestamp: time.Now(),
	})
}
