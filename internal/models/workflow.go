package models

import "time"

// Workflow kinds. Subflows are reusable fragments referenced by flows.
const (
	WorkflowKindFlow    = "flow"
	WorkflowKindSubflow = "subflow"
)

// Workflow is a stored workflow document together with the serialized copilot
// conversation for its panel. Document is the canonical JSON graph; it is only
// ever replaced wholesale with a validated document.
type Workflow struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:255;not null;index:idx_workflow_name,unique" json:"name"`
	Kind             string    `gorm:"size:20;not null;default:flow" json:"kind"`
	ParentID         *uint     `gorm:"index" json:"parentId,omitempty"`
	Document         string    `gorm:"type:text;not null" json:"document"`
	ConversationJSON string    `gorm:"type:text" json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// WorkflowSummary is the list-view projection of a Workflow.
type WorkflowSummary struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	ParentID  *uint     `json:"parentId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
