package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"stepweave/internal/conversation"
)

const (
	CopilotMessage        = "events:copilot:message"
	CopilotMessageRemoved = "events:copilot:message-removed"
	CopilotState          = "events:copilot:state"
	CopilotStream         = "events:copilot:stream"
)

// CopilotMessageEvent carries one conversation message whenever it is
// appended or changes state.
type CopilotMessageEvent struct {
	ID         string               `json:"id"`
	WorkflowID uint                 `json:"workflowId"`
	Message    conversation.Message `json:"message"`
	Timestamp  time.Time            `json:"timestamp"`
}

// CopilotMessageRemovedEvent announces that a message was dropped from the
// conversation, e.g. the placeholder of a cancelled refinement.
type CopilotMessageRemovedEvent struct {
	ID         string    `json:"id"`
	WorkflowID uint      `json:"workflowId"`
	MessageID  string    `json:"messageId"`
	Timestamp  time.Time `json:"timestamp"`
}

// CopilotStateEvent mirrors the panel's processing flag and iteration budget
// so the UI can gate its send button without polling.
type CopilotStateEvent struct {
	ID         string    `json:"id"`
	WorkflowID uint      `json:"workflowId"`
	Processing bool      `json:"processing"`
	RequestID  string    `json:"requestId,omitempty"`
	Iteration  int       `json:"iteration"`
	NearLimit  bool      `json:"nearLimit"`
	Timestamp  time.Time `json:"timestamp"`
}

// CopilotStreamEvent carries one streamed chunk of an in-flight assistant
// message.
type CopilotStreamEvent struct {
	ID         string    `json:"id"`
	WorkflowID uint      `json:"workflowId"`
	MessageID  string    `json:"messageId"`
	Delta      string    `json:"delta"`
	Timestamp  time.Time `json:"timestamp"`
}

func EmitCopilotMessage(ctx context.Context, workflowID uint, msg conversation.Message) {
	EmitPayload(ctx, CopilotMessage, CopilotMessageEvent{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Message:    msg,
		Timestamp:  time.Now(),
	})
}

func EmitCopilotMessageRemoved(ctx context.Context, workflowID uint, messageID string) {
	EmitPayload(ctx, CopilotMessageRemoved, CopilotMessageRemovedEvent{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		MessageID:  messageID,
		Timestamp:  time.Now(),
	})
}

func EmitCopilotState(ctx context.Context, workflowID uint, processing bool, requestID string, iteration int, nearLimit bool) {
	EmitPayload(ctx, CopilotState, CopilotStateEvent{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Processing: processing,
		RequestID:  requestID,
		Iteration:  iteration,
		NearLimit:  nearLimit,
		Timestamp:  time.Now(),
	})
}

func EmitCopilotStream(ctx context.Context, workflowID uint, messageID, delta string) {
	EmitPayload(ctx, CopilotStream, CopilotStreamEvent{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		MessageID:  messageID,
		Delta:      delta,
		Timestamp:  time.Now(),
	})
}
