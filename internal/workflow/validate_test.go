package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stepweave/internal/models"
)

func TestParseAndValidateAcceptsMinimalDocument(t *testing.T) {
	doc, err := ParseAndValidate(`{
		"version": 1,
		"name": "Review pipeline",
		"nodes": [
			{"id": "in", "type": "input"},
			{"id": "p1", "type": "prompt", "label": "Summarize"},
			{"id": "out", "type": "output"}
		],
		"edges": [
			{"source": "in", "target": "p1"},
			{"source": "p1", "target": "out"}
		]
	}`)

	assert.NoError(t, err)
	assert.Equal(t, "Review pipeline", doc.Name)
	assert.Len(t, doc.Nodes, 3)
}

func TestValidateRejectsProhibitedNodeType(t *testing.T) {
	for _, typ := range []string{"shell", "exec", "eval", "script"} {
		doc := NewDocument("danger")
		doc.Nodes = append(doc.Nodes, Node{ID: "x", Type: typ})

		err := Validate(doc)
		assert.Error(t, err)
		assert.Equal(t, models.FailureProhibitedNodeType, models.FailureCodeOf(err))
	}
}

func TestValidateRejectsUnknownNodeType(t *testing.T) {
	doc := NewDocument("odd")
	doc.Nodes = append(doc.Nodes, Node{ID: "x", Type: "teleport"})

	err := Validate(doc)
	assert.Equal(t, models.FailureValidationError, models.FailureCodeOf(err))
}

func TestValidateRejectsStructuralDefects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Document)
	}{
		{"empty name", func(d *Document) { d.Name = "" }},
		{"no nodes", func(d *Document) { d.Nodes = nil }},
		{"duplicate node id", func(d *Document) {
			d.Nodes = append(d.Nodes, Node{ID: "input-1", Type: NodePrompt})
		}},
		{"missing node id", func(d *Document) {
			d.Nodes = append(d.Nodes, Node{Type: NodePrompt})
		}},
		{"dangling edge source", func(d *Document) {
			d.Edges = append(d.Edges, Edge{Source: "ghost", Target: "output-1"})
		}},
		{"dangling edge target", func(d *Document) {
			d.Edges = append(d.Edges, Edge{Source: "input-1", Target: "ghost"})
		}},
		{"future version", func(d *Document) { d.Version = SchemaVersion + 1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := NewDocument("wf")
			tc.mutate(doc)

			err := Validate(doc)
			assert.Equal(t, models.FailureValidationError, models.FailureCodeOf(err))
		})
	}
}

func TestParseAndValidateMapsBadJSONToValidationError(t *testing.T) {
	_, err := ParseAndValidate(`{"version": 1, "name": "broken"`)

	assert.Error(t, err)
	assert.Equal(t, models.FailureValidationError, models.FailureCodeOf(err))
}

func TestMarshalRoundTripsThroughParse(t *testing.T) {
	doc := NewDocument("round trip")

	raw, err := Marshal(doc)
	assert.NoError(t, err)

	back, err := Parse(raw)
	assert.NoError(t, err)
	assert.Equal(t, doc, back)
	assert.NoError(t, Validate(back))
}
