package conversation

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Message senders.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// State tracks a message through its lifetime. User messages are born ready;
// assistant messages start pending and end ready or failed.
type State string

const (
	StatePending State = "pending"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Message is one entry in a refinement conversation.
type Message struct {
	ID          string    `json:"id"`
	Sender      string    `json:"sender"`
	Content     string    `json:"content"`
	State       State     `json:"state"`
	ErrorCode   string    `json:"errorCode,omitempty"`
	DiffSummary string    `json:"diffSummary,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewMessageID builds an id unique within a conversation from the wall clock
// plus random bytes, so ids stay unique even when messages are created within
// the same millisecond.
func NewMessageID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}
