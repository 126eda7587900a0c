package conversation

import (
	"strings"
	"time"
)

// Store owns one panel's conversation history and draft buffer. All
// operations are total: they no-op (returning false where a report is useful)
// on a missing history or unknown message id rather than failing.
//
// Store is not safe for concurrent use; the owning service serializes access.
type Store struct {
	history *History
	draft   string
}

func NewStore() *Store {
	return &Store{}
}

// Init starts a fresh conversation, discarding any existing one.
func (s *Store) Init() {
	s.history = NewHistory()
	s.draft = ""
}

// Load replaces the conversation with h; nil initializes a fresh one.
func (s *Store) Load(h *History) {
	if h == nil {
		s.Init()
		return
	}
	s.history = h
	s.draft = ""
}

func (s *Store) HasHistory() bool {
	return s.history != nil
}

// History exposes the live history. Callers must not retain it across
// mutations; use Snapshot for event payloads.
func (s *Store) History() *History {
	return s.history
}

// Snapshot returns a deep copy of the current history, or nil.
func (s *Store) Snapshot() *History {
	return s.history.Clone()
}

func (s *Store) SetDraft(text string) {
	s.draft = text
}

func (s *Store) Draft() string {
	return s.draft
}

// CanSend reports whether a refinement request may be issued right now.
func (s *Store) CanSend(processing bool) bool {
	return s.history != nil && !processing && strings.TrimSpace(s.draft) != ""
}

// NearIterationLimit reports whether the advisory refinement budget has been
// reached. It never blocks anything.
func (s *Store) NearIterationLimit() bool {
	return s.history != nil && s.history.CurrentIteration >= s.history.MaxIterations
}

// AppendUser appends a ready user message and clears the draft buffer.
func (s *Store) AppendUser(content string) Message {
	if s.history == nil {
		return Message{}
	}
	m := Message{
		ID:        NewMessageID(),
		Sender:    SenderUser,
		Content:   content,
		State:     StateReady,
		CreatedAt: time.Now(),
	}
	s.history.Messages = append(s.history.Messages, m)
	s.draft = ""
	s.touch()
	return m
}

// AppendPendingAssistant appends the placeholder a refinement response will
// stream into or resolve.
func (s *Store) AppendPendingAssistant() Message {
	if s.history == nil {
		return Message{}
	}
	m := Message{
		ID:        NewMessageID(),
		Sender:    SenderAssistant,
		State:     StatePending,
		CreatedAt: time.Now(),
	}
	s.history.Messages = append(s.history.Messages, m)
	s.touch()
	return m
}

// SetContent replaces a pending message's content.
func (s *Store) SetContent(id, content string) bool {
	m := s.findPending(id)
	if m == nil {
		return false
	}
	m.Content = content
	s.touch()
	return true
}

// AppendContent appends a streamed chunk to a pending message.
func (s *Store) AppendContent(id, delta string) bool {
	m := s.findPending(id)
	if m == nil {
		return false
	}
	m.Content += delta
	s.touch()
	return true
}

// Resolve flips a pending message to ready and attaches the diff summary of
// the applied refinement (may be empty).
func (s *Store) Resolve(id, diffSummary string) bool {
	m := s.findPending(id)
	if m == nil {
		return false
	}
	m.State = StateReady
	m.DiffSummary = diffSummary
	s.touch()
	return true
}

// Fail flips a pending message to failed with a failure code. Partial
// streamed content is kept.
func (s *Store) Fail(id, errorCode string) bool {
	m := s.findPending(id)
	if m == nil {
		return false
	}
	m.State = StateFailed
	m.ErrorCode = errorCode
	s.touch()
	return true
}

// Remove deletes a message by id, whatever its state.
func (s *Store) Remove(id string) bool {
	if s.history == nil {
		return false
	}
	for i := range s.history.Messages {
		if s.history.Messages[i].ID == id {
			s.history.Messages = append(s.history.Messages[:i], s.history.Messages[i+1:]...)
			s.touch()
			return true
		}
	}
	return false
}

// CompleteTurn replaces the message list wholesale and counts one refinement
// iteration. Limits and creation time are kept.
func (s *Store) CompleteTurn(messages []Message) {
	if s.history == nil {
		return
	}
	s.history.Messages = messages
	s.history.CurrentIteration++
	s.touch()
}

// CountIteration counts one refinement iteration without touching messages.
// Streamed successes use it after resolving their placeholder; CompleteTurn
// already counts for the wholesale path.
func (s *Store) CountIteration() {
	if s.history == nil {
		return
	}
	s.history.CurrentIteration++
	s.touch()
}

// Clear empties the conversation and resets the iteration counter. The
// iteration limit survives.
func (s *Store) Clear() {
	if s.history == nil {
		return
	}
	s.history.Messages = []Message{}
	s.history.CurrentIteration = 0
	s.draft = ""
	s.touch()
}

func (s *Store) findPending(id string) *Message {
	if s.history == nil {
		return nil
	}
	for i := range s.history.Messages {
		m := &s.history.Messages[i]
		if m.ID == id && m.State == StatePending {
			return m
		}
	}
	return nil
}

func (s *Store) touch() {
	s.history.UpdatedAt = time.Now()
}
