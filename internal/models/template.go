package models

// Template is a named starter workflow document that can be instantiated
// into a new Workflow. Document is validated on every write.
type Template struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:255;not null;unique" json:"name"`
	Description string `gorm:"size:512" json:"description"`
	Kind        string `gorm:"size:20;not null;default:flow" json:"kind"`
	Document    string `gorm:"type:text;not null" json:"document"`
}
