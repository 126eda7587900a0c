package workflow

import (
	"fmt"

	"stepweave/internal/models"
)

// Node types the editor and runner understand.
const (
	NodeInput     = "input"
	NodeOutput    = "output"
	NodePrompt    = "prompt"
	NodeAgent     = "agent"
	NodeCondition = "condition"
	NodeLoop      = "loop"
	NodeTransform = "transform"
	NodeSubflow   = "subflow"
	NodeNote      = "note"
)

var allowedNodeTypes = map[string]bool{
	NodeInput:     true,
	NodeOutput:    true,
	NodePrompt:    true,
	NodeAgent:     true,
	NodeCondition: true,
	NodeLoop:      true,
	NodeTransform: true,
	NodeSubflow:   true,
	NodeNote:      true,
}

// Node types we recognize but refuse to store. These spawn arbitrary
// processes and are rejected on every write, whatever the source.
var prohibitedNodeTypes = map[string]bool{
	"shell":  true,
	"exec":   true,
	"eval":   true,
	"script": true,
}

// Validate checks doc against the schema rules. The returned error is a
// *models.RefineError carrying VALIDATION_ERROR, or PROHIBITED_NODE_TYPE when
// the document uses a disallowed node type.
func Validate(doc *Document) error {
	if doc == nil {
		return models.NewRefineError(models.FailureValidationError, "document is empty")
	}
	if doc.Version <= 0 || doc.Version > SchemaVersion {
		return models.NewRefineError(models.FailureValidationError, "unsupported document version %d", doc.Version)
	}
	if doc.Name == "" {
		return models.NewRefineError(models.FailureValidationError, "document name is required")
	}
	if len(doc.Nodes) == 0 {
		return models.NewRefineError(models.FailureValidationError, "document has no nodes")
	}

	ids := make(map[string]bool, len(doc.Nodes))
	for i, n := range doc.Nodes {
		if n.ID == "" {
			return models.NewRefineError(models.FailureValidationError, "node %d has no id", i)
		}
		if ids[n.ID] {
			return models.NewRefineError(models.FailureValidationError, "duplicate node id %q", n.ID)
		}
		ids[n.ID] = true

		if prohibitedNodeTypes[n.Type] {
			return models.NewRefineError(models.FailureProhibitedNodeType, "node %q uses prohibited type %q", n.ID, n.Type)
		}
		if !allowedNodeTypes[n.Type] {
			return models.NewRefineError(models.FailureValidationError, "node %q has unknown type %q", n.ID, n.Type)
		}
	}

	for i, e := range doc.Edges {
		if !ids[e.Source] {
			return models.NewRefineError(models.FailureValidationError, "edge %d references unknown source %q", i, e.Source)
		}
		if !ids[e.Target] {
			return models.NewRefineError(models.FailureValidationError, "edge %d references unknown target %q", i, e.Target)
		}
	}
	return nil
}

// ParseAndValidate is the manual-save path: any defect, including JSON that
// does not decode, is reported as VALIDATION_ERROR.
func ParseAndValidate(raw string) (*Document, error) {
	doc, err := Parse(raw)
	if err != nil {
		return nil, models.WrapRefineError(models.FailureValidationError, fmt.Errorf("invalid workflow JSON: %w", err))
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
