package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreOpsNoOpWithoutHistory(t *testing.T) {
	s := NewStore()

	assert.False(t, s.HasHistory())
	assert.False(t, s.CanSend(false))
	assert.False(t, s.NearIterationLimit())
	assert.Equal(t, Message{}, s.AppendUser("hello"))
	assert.False(t, s.SetContent("nope", "x"))
	assert.False(t, s.Resolve("nope", ""))
	assert.False(t, s.Fail("nope", "UNKNOWN_ERROR"))
	assert.False(t, s.Remove("nope"))
	s.CompleteTurn(nil)
	s.Clear()
	assert.Nil(t, s.History())
}

func TestAppendUserClearsDraft(t *testing.T) {
	s := NewStore()
	s.Init()
	s.SetDraft("make it shorter")

	m := s.AppendUser(s.Draft())

	assert.Equal(t, SenderUser, m.Sender)
	assert.Equal(t, StateReady, m.State)
	assert.Equal(t, "make it shorter", m.Content)
	assert.NotEmpty(t, m.ID)
	assert.Empty(t, s.Draft())
	assert.Len(t, s.History().Messages, 1)
}

func TestCanSendRequiresHistoryDraftAndIdle(t *testing.T) {
	s := NewStore()
	s.Init()

	assert.False(t, s.CanSend(false), "empty draft")

	s.SetDraft("   ")
	assert.False(t, s.CanSend(false), "whitespace draft")

	s.SetDraft("add a loop node")
	assert.True(t, s.CanSend(false))
	assert.False(t, s.CanSend(true), "processing blocks sending")
}

func TestPendingLifecycleResolve(t *testing.T) {
	s := NewStore()
	s.Init()
	p := s.AppendPendingAssistant()

	assert.Equal(t, StatePending, p.State)
	assert.True(t, s.SetContent(p.ID, "Reworked the graph"))
	assert.True(t, s.AppendContent(p.ID, " with a loop."))
	assert.True(t, s.Resolve(p.ID, "+3 -1 lines"))

	got := s.History().Messages[0]
	assert.Equal(t, StateReady, got.State)
	assert.Equal(t, "Reworked the graph with a loop.", got.Content)
	assert.Equal(t, "+3 -1 lines", got.DiffSummary)

	// A ready message is no longer addressable by the pending-only ops.
	assert.False(t, s.SetContent(p.ID, "again"))
	assert.False(t, s.AppendContent(p.ID, "more"))
	assert.False(t, s.Resolve(p.ID, ""))
	assert.False(t, s.Fail(p.ID, "TIMEOUT"))
}

func TestPendingLifecycleFailKeepsPartialContent(t *testing.T) {
	s := NewStore()
	s.Init()
	p := s.AppendPendingAssistant()
	s.AppendContent(p.ID, "partial out")

	assert.True(t, s.Fail(p.ID, "TIMEOUT"))

	got := s.History().Messages[0]
	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, "TIMEOUT", got.ErrorCode)
	assert.Equal(t, "partial out", got.Content)
}

func TestRemoveDeletesAnyState(t *testing.T) {
	s := NewStore()
	s.Init()
	u := s.AppendUser("hi")
	p := s.AppendPendingAssistant()

	assert.True(t, s.Remove(p.ID))
	assert.True(t, s.Remove(u.ID))
	assert.False(t, s.Remove(u.ID), "second remove is a no-op")
	assert.Empty(t, s.History().Messages)
}

func TestCompleteTurnReplacesWholesaleAndCountsIteration(t *testing.T) {
	s := NewStore()
	s.Init()
	s.AppendUser("v1 please")
	s.AppendPendingAssistant()

	replacement := []Message{
		{ID: NewMessageID(), Sender: SenderUser, Content: "v1 please", State: StateReady},
		{ID: NewMessageID(), Sender: SenderAssistant, Content: "done", State: StateReady},
	}
	s.CompleteTurn(replacement)

	assert.Equal(t, replacement, s.History().Messages)
	assert.Equal(t, 1, s.History().CurrentIteration)

	s.CountIteration()
	assert.Equal(t, 2, s.History().CurrentIteration)
}

func TestClearResetsMessagesAndIterationButKeepsLimit(t *testing.T) {
	s := NewStore()
	s.Init()
	s.History().MaxIterations = 5
	s.AppendUser("one")
	s.CompleteTurn([]Message{})
	s.SetDraft("pending text")

	s.Clear()

	assert.Empty(t, s.History().Messages)
	assert.Equal(t, 0, s.History().CurrentIteration)
	assert.Equal(t, 5, s.History().MaxIterations)
	assert.Empty(t, s.Draft())
}

func TestNearIterationLimitIsAdvisory(t *testing.T) {
	s := NewStore()
	s.Init()
	s.History().MaxIterations = 20
	s.History().CurrentIteration = 19
	s.SetDraft("still sendable")

	assert.False(t, s.NearIterationLimit())

	s.History().CurrentIteration = 20
	assert.True(t, s.NearIterationLimit())
	assert.True(t, s.CanSend(false), "limit never blocks sending")
}

func TestSnapshotIsDetached(t *testing.T) {
	s := NewStore()
	s.Init()
	s.AppendUser("original")

	snap := s.Snapshot()
	s.History().Messages[0].Content = "mutated"

	assert.Equal(t, "original", snap.Messages[0].Content)
}

func TestMessageIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id := NewMessageID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
