package models

import "time"

type AppSettings struct {
	ID                uint   `gorm:"primaryKey"` // single-row table (ID=1)
	Version           int    `gorm:"not null;default:1"`
	Theme             string `gorm:"not null;default:system"` // "light" | "dark" | "system"
	Locale            string `gorm:"not null"`
	DefaultModelKey   string `gorm:"size:255"`
	EditorCommand     string `gorm:"size:512"`  // external editor override; $VISUAL/$EDITOR when empty
	KnowledgeDir      string `gorm:"size:1024"` // directory the retrieval index is built from
	RetrievalEnabled  bool   `gorm:"not null;default:false"`
	RefineTimeoutSecs int    `gorm:"not null;default:120"` // 0 disables the per-request timeout
	UpdatedAt         time.Time
}
