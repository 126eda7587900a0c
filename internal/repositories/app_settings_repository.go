package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"stepweave/internal/models"
)

// The settings table holds exactly one row; every read and write targets it.
const appSettingsRowID = 1

type AppSettingsRepository interface {
	Get(ctx context.Context) (*models.AppSettings, error)
	Update(ctx context.Context, settings *models.AppSettings) error
}

func NewAppSettingsRepository(db *gorm.DB) AppSettingsRepository {
	return &appSettingsRepository{db: db}
}

type appSettingsRepository struct {
	db *gorm.DB
}

// Get returns the stored settings, or in-memory defaults when the row has
// not been written yet. The defaults are not persisted until the first
// Update, so a fresh install stays clean.
func (r *appSettingsRepository) Get(ctx context.Context) (*models.AppSettings, error) {
	var settings models.AppSettings
	err := r.db.WithContext(ctx).First(&settings, appSettingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultAppSettings(), nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *appSettingsRepository) Update(ctx context.Context, settings *models.AppSettings) error {
	settings.ID = appSettingsRowID
	return r.db.WithContext(ctx).Save(settings).Error
}

func defaultAppSettings() *models.AppSettings {
	return &models.AppSettings{
		ID:                appSettingsRowID,
		Version:           1,
		Theme:             "system",
		Locale:            "en",
		RefineTimeoutSecs: 120,
	}
}
