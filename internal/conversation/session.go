package conversation

import "errors"

// ErrRequestInFlight is returned when a refinement is started while another
// one is still awaiting its response.
var ErrRequestInFlight = errors.New("a refinement request is already in flight")

// Session couples a Store with the request correlation state machine:
// idle -> awaiting-response(requestID) -> idle. Exactly one of HandleSuccess,
// HandleFailure or FinishProcessing ends each request.
//
// Matches is the staleness guard: callers check it, under their own lock,
// before applying any completion. The terminal handlers themselves are
// unconditional so that the check-then-apply sequence stays in one critical
// section owned by the caller.
type Session struct {
	store     *Store
	requestID string
}

func NewSession(store *Store) *Session {
	return &Session{store: store}
}

func (s *Session) Store() *Store {
	return s.store
}

func (s *Session) Processing() bool {
	return s.requestID != ""
}

func (s *Session) RequestID() string {
	return s.requestID
}

// StartProcessing records the outbound request id and enters
// awaiting-response.
func (s *Session) StartProcessing(requestID string) error {
	if s.requestID != "" {
		return ErrRequestInFlight
	}
	s.requestID = requestID
	return nil
}

// Matches reports whether id belongs to the in-flight request. It is false
// when idle, so late completions of cancelled requests fall through.
func (s *Session) Matches(id string) bool {
	return s.requestID != "" && s.requestID == id
}

// HandleSuccess applies a non-streamed success: the message list is replaced
// wholesale and the session returns to idle.
func (s *Session) HandleSuccess(messages []Message) {
	s.store.CompleteTurn(messages)
	s.requestID = ""
}

// HandleFailure marks the placeholder failed with code and returns to idle.
// The rest of the history is untouched.
func (s *Session) HandleFailure(messageID, code string) {
	s.store.Fail(messageID, code)
	s.requestID = ""
}

// FinishProcessing returns to idle without touching the history. Streamed
// successes land here after their updates have been applied message by
// message, as does cancellation.
func (s *Session) FinishProcessing() {
	s.requestID = ""
}
