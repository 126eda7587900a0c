package workflow

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is the document version this build reads and writes.
const SchemaVersion = 1

// Document is the JSON graph a workflow is made of. Nodes reference prompts,
// inputs and control steps; edges wire them together.
type Document struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

type Node struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Label  string          `json:"label,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

type Edge struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Parse decodes raw JSON into a Document. It does not validate; callers
// decide how a malformed document is classified.
func Parse(raw string) (*Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode workflow document: %w", err)
	}
	return &doc, nil
}

// Marshal renders doc in the canonical on-disk form.
func Marshal(doc *Document) (string, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode workflow document: %w", err)
	}
	return string(b), nil
}

// NewDocument returns a minimal valid document for a freshly created workflow.
func NewDocument(name string) *Document {
	return &Document{
		Version: SchemaVersion,
		Name:    name,
		Nodes: []Node{
			{ID: "input-1", Type: NodeInput, Label: "Input"},
			{ID: "output-1", Type: NodeOutput, Label: "Output"},
		},
		Edges: []Edge{
			{Source: "input-1", Target: "output-1"},
		},
	}
}
