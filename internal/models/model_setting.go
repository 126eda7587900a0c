package models

import "time"

// ModelSetting is one row per catalog model, remembering whether the user
// has switched it off. The model key is provider|apiName.
type ModelSetting struct {
	ID        uint   `gorm:"primaryKey"`
	ModelKey  string `gorm:"size:255;not null;uniqueIndex"`
	Provider  string `gorm:"size:50;not null;index:idx_model_provider"`
	Enabled   bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
