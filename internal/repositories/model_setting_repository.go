package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stepweave/internal/models"
)

// ModelSettingRepository persists the per-model enable toggles. Rows are
// keyed by model key; the catalog itself lives in an embedded asset, so this
// table only ever grows when new models ship.
type ModelSettingRepository interface {
	List() ([]models.ModelSetting, error)
	GetByKey(modelKey string) (*models.ModelSetting, error)
	Upsert(modelKey, provider string, enabled bool) (*models.ModelSetting, error)
	SetProviderEnabled(provider string, enabled bool) error
}

func NewModelSettingRepository(db *gorm.DB) ModelSettingRepository {
	return &modelSettingRepository{db: db}
}

type modelSettingRepository struct {
	db *gorm.DB
}

func (r *modelSettingRepository) List() ([]models.ModelSetting, error) {
	var rows []models.ModelSetting
	err := r.db.Order("provider, model_key").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list model settings: %w", err)
	}
	return rows, nil
}

// GetByKey returns nil without error when no row exists; absence means the
// model has never been toggled.
func (r *modelSettingRepository) GetByKey(modelKey string) (*models.ModelSetting, error) {
	if modelKey == "" {
		return nil, fmt.Errorf("model key is required")
	}
	var row models.ModelSetting
	err := r.db.Where("model_key = ?", modelKey).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get model setting %s: %w", modelKey, err)
	}
	return &row, nil
}

// Upsert writes the toggle for one model, inserting the row on first use.
func (r *modelSettingRepository) Upsert(modelKey, provider string, enabled bool) (*models.ModelSetting, error) {
	if modelKey == "" {
		return nil, fmt.Errorf("model key is required")
	}
	if provider == "" {
		return nil, fmt.Errorf("provider is required")
	}

	row := models.ModelSetting{ModelKey: modelKey, Provider: provider, Enabled: enabled}
	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "model_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"enabled":    enabled,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}
	if err := r.db.Clauses(onConflict).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("upsert model setting %s: %w", modelKey, err)
	}
	return &row, nil
}

func (r *modelSettingRepository) SetProviderEnabled(provider string, enabled bool) error {
	if provider == "" {
		return fmt.Errorf("provider is required")
	}
	err := r.db.Model(&models.ModelSetting{}).
		Where("provider = ?", provider).
		Update("enabled", enabled).Error
	if err != nil {
		return fmt.Errorf("set provider %s enabled: %w", provider, err)
	}
	return nil
}
