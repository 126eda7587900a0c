package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarshalHistoryPersistsOnlyReadyMessages(t *testing.T) {
	s := NewStore()
	s.Init()
	s.AppendUser("keep me")
	pending := s.AppendPendingAssistant()
	failed := s.AppendPendingAssistant()
	s.Fail(failed.ID, "TIMEOUT")
	_ = pending

	raw, err := MarshalHistory(s.History())
	assert.NoError(t, err)

	restored, err := UnmarshalHistory(raw)
	assert.NoError(t, err)
	assert.Len(t, restored.Messages, 1)
	assert.Equal(t, "keep me", restored.Messages[0].Content)
	assert.Equal(t, StateReady, restored.Messages[0].State)
}

func TestMarshalHistoryLeavesLiveHistoryUntouched(t *testing.T) {
	s := NewStore()
	s.Init()
	s.AppendUser("u")
	s.AppendPendingAssistant()

	_, err := MarshalHistory(s.History())
	assert.NoError(t, err)
	assert.Len(t, s.History().Messages, 2, "serialization must not filter the live list")
}

func TestUnmarshalHistoryEmptyInputStartsFresh(t *testing.T) {
	h, err := UnmarshalHistory("")

	assert.NoError(t, err)
	assert.Equal(t, HistorySchemaVersion, h.SchemaVersion)
	assert.Empty(t, h.Messages)
	assert.Equal(t, 0, h.CurrentIteration)
	assert.Equal(t, DefaultMaxIterations, h.MaxIterations)
}

func TestUnmarshalHistoryRejectsGarbage(t *testing.T) {
	_, err := UnmarshalHistory("{not json")
	assert.Error(t, err)
}

func TestUnmarshalHistoryNormalizesMissingLimits(t *testing.T) {
	h, err := UnmarshalHistory(`{"messages":[{"id":"a","sender":"user","content":"x","state":"ready"}],"currentIteration":3}`)

	assert.NoError(t, err)
	assert.Equal(t, HistorySchemaVersion, h.SchemaVersion)
	assert.Equal(t, DefaultMaxIterations, h.MaxIterations)
	assert.Equal(t, 3, h.CurrentIteration)
	assert.Len(t, h.Messages, 1)
}

func TestUnmarshalHistoryDropsStalePendingMessages(t *testing.T) {
	h, err := UnmarshalHistory(`{"schemaVersion":1,"maxIterations":20,"messages":[
		{"id":"a","sender":"user","content":"x","state":"ready"},
		{"id":"b","sender":"assistant","content":"","state":"pending"}
	]}`)

	assert.NoError(t, err)
	assert.Len(t, h.Messages, 1, "a reloaded conversation can never contain a live placeholder")
}

func TestHistoryRoundTripPreservesIterationAccounting(t *testing.T) {
	s := NewStore()
	s.Init()
	s.History().MaxIterations = 7
	s.AppendUser("one")
	p := s.AppendPendingAssistant()
	s.SetContent(p.ID, "done")
	s.Resolve(p.ID, "+1 -0 lines")
	s.CountIteration()

	raw, err := MarshalHistory(s.History())
	assert.NoError(t, err)

	h, err := UnmarshalHistory(raw)
	assert.NoError(t, err)
	assert.Equal(t, 1, h.CurrentIteration)
	assert.Equal(t, 7, h.MaxIterations)
	assert.Len(t, h.Messages, 2)
	assert.Equal(t, "+1 -0 lines", h.Messages[1].DiffSummary)
}
