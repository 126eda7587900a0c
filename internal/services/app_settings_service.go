package services

import (
	"context"
	"errors"
	"strings"

	"stepweave/internal/models"
	"stepweave/internal/repositories"
)

type AppSettingsService interface {
	Get() (*models.AppSettings, error)
	Update(input *models.AppSettings) (*models.AppSettings, error)
	Startup(ctx context.Context)
}

func NewAppSettingsService(repo repositories.AppSettingsRepository) AppSettingsService {
	return &appSettingsService{repo: repo}
}

type appSettingsService struct {
	repo repositories.AppSettingsRepository
	ctx  context.Context
}

func (s *appSettingsService) Startup(ctx context.Context) {
	s.ctx = ctx
}

func (s *appSettingsService) Get() (*models.AppSettings, error) {
	return s.repo.Get(context.Background())
}

// Update validates the input and merges it onto the stored row, so fields
// the frontend does not send (id, version, timestamps) survive the write.
func (s *appSettingsService) Update(input *models.AppSettings) (*models.AppSettings, error) {
	if input == nil {
		return nil, errors.New("settings are required")
	}
	theme := strings.TrimSpace(input.Theme)
	if theme == "" {
		return nil, errors.New("theme is required")
	}
	locale := strings.TrimSpace(input.Locale)
	if locale == "" {
		return nil, errors.New("locale is required")
	}
	switch theme {
	case "light", "dark", "system":
	default:
		return nil, errors.New("theme must be 'light', 'dark', or 'system'")
	}

	current, err := s.repo.Get(context.Background())
	if err != nil {
		return nil, err
	}

	current.Theme = theme
	current.Locale = locale
	current.DefaultModelKey = strings.TrimSpace(input.DefaultModelKey)
	current.EditorCommand = strings.TrimSpace(input.EditorCommand)
	current.KnowledgeDir = strings.TrimSpace(input.KnowledgeDir)
	current.RetrievalEnabled = input.RetrievalEnabled
	current.RefineTimeoutSecs = input.RefineTimeoutSecs
	if current.RefineTimeoutSecs < 0 {
		current.RefineTimeoutSecs = 0
	}

	if err := s.repo.Update(context.Background(), current); err != nil {
		return nil, err
	}
	return current, nil
}
