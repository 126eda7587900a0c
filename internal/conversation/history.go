package conversation

import (
	"encoding/json"
	"fmt"
	"time"
)

// HistorySchemaVersion marks the serialized conversation format.
const HistorySchemaVersion = 1

// DefaultMaxIterations is the advisory refinement budget for new
// conversations. Reaching it never blocks sending; the UI surfaces a warning.
const DefaultMaxIterations = 20

// History is the full state of one panel's refinement conversation.
type History struct {
	SchemaVersion    int       `json:"schemaVersion"`
	Messages         []Message `json:"messages"`
	CurrentIteration int       `json:"currentIteration"`
	MaxIterations    int       `json:"maxIterations"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewHistory returns an empty conversation with default limits.
func NewHistory() *History {
	now := time.Now()
	return &History{
		SchemaVersion: HistorySchemaVersion,
		Messages:      []Message{},
		MaxIterations: DefaultMaxIterations,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarshalHistory serializes h for storage. Only ready messages are persisted:
// pending placeholders belong to requests that will not survive a reload, and
// failures are reported live rather than replayed.
func MarshalHistory(h *History) (string, error) {
	if h == nil {
		return "", nil
	}
	out := *h
	out.Messages = make([]Message, 0, len(h.Messages))
	for _, m := range h.Messages {
		if m.State == StateReady {
			out.Messages = append(out.Messages, m)
		}
	}
	b, err := json.Marshal(&out)
	if err != nil {
		return "", fmt.Errorf("encode conversation: %w", err)
	}
	return string(b), nil
}

// UnmarshalHistory restores a stored conversation. Empty input yields a fresh
// history. Messages that are not ready are dropped: their requests died with
// the previous process.
func UnmarshalHistory(raw string) (*History, error) {
	if raw == "" {
		return NewHistory(), nil
	}
	var h History
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	if h.SchemaVersion == 0 {
		h.SchemaVersion = HistorySchemaVersion
	}
	if h.MaxIterations <= 0 {
		h.MaxIterations = DefaultMaxIterations
	}
	kept := make([]Message, 0, len(h.Messages))
	for _, m := range h.Messages {
		if m.State == StateReady {
			kept = append(kept, m)
		}
	}
	h.Messages = kept
	return &h, nil
}

// Clone returns a deep copy safe to hand to event payloads.
func (h *History) Clone() *History {
	if h == nil {
		return nil
	}
	out := *h
	out.Messages = make([]Message, len(h.Messages))
	copy(out.Messages, h.Messages)
	return &out
}
