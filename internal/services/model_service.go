package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"stepweave/internal/assets"
	"stepweave/internal/models"
	"stepweave/internal/repositories"
)

// ModelConfigService exposes the embedded model catalog together with the
// per-model enable toggles persisted in the database. The catalog is the
// source of truth for what exists; the database only remembers which entries
// the user switched off.
type ModelConfigService interface {
	Startup(ctx context.Context) error
	ListModelGroups() ([]models.LLMModelGroup, error)
	SetModelEnabled(modelKey string, enabled bool) (*models.LLMModel, error)
	SetProviderEnabled(provider string, enabled bool) ([]models.LLMModel, error)
	GetModel(modelKey string) (*models.LLMModel, error)
}

type catalogProvider struct {
	id     string
	name   string
	models []models.LLMModel
}

type modelConfigService struct {
	repo repositories.ModelSettingRepository
	ctx  context.Context

	mu      sync.RWMutex
	catalog []catalogProvider
	byKey   map[string]*models.LLMModel
	enabled map[string]bool
}

func NewModelConfigService(repo repositories.ModelSettingRepository) ModelConfigService {
	return &modelConfigService{
		repo:    repo,
		byKey:   make(map[string]*models.LLMModel),
		enabled: make(map[string]bool),
	}
}

// Startup parses the embedded catalog, then reconciles it against the stored
// toggles: known entries keep their stored state, new entries are seeded as
// enabled. A model removed from the catalog simply stops being listed; its
// stale row is harmless.
func (s *modelConfigService) Startup(ctx context.Context) error {
	s.ctx = ctx

	var file struct {
		Providers []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
			Models      []struct {
				DisplayName string `json:"displayName"`
				APIName     string `json:"apiName"`
				MaxTokens   int    `json:"maxTokens,omitempty"`
			} `json:"models"`
		} `json:"providers"`
	}
	if err := json.Unmarshal(assets.ModelsData, &file); err != nil {
		return fmt.Errorf("parse models asset: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.repo.List()
	if err != nil {
		return fmt.Errorf("load model settings: %w", err)
	}
	for _, row := range stored {
		s.enabled[row.ModelKey] = row.Enabled
	}

	for _, p := range file.Providers {
		providerID := strings.TrimSpace(p.ID)
		if providerID == "" {
			continue
		}
		provider := catalogProvider{id: providerID, name: strings.TrimSpace(p.DisplayName)}
		if provider.name == "" {
			provider.name = providerID
		}
		for _, m := range p.Models {
			apiName := strings.TrimSpace(m.APIName)
			entry := models.LLMModel{
				Key:          providerID + "|" + apiName,
				DisplayName:  strings.TrimSpace(m.DisplayName),
				APIName:      apiName,
				ProviderID:   providerID,
				ProviderName: provider.name,
				MaxTokens:    m.MaxTokens,
			}
			if _, known := s.enabled[entry.Key]; !known {
				if _, err := s.repo.Upsert(entry.Key, providerID, true); err != nil {
					return fmt.Errorf("seed model setting for %s: %w", entry.Key, err)
				}
				s.enabled[entry.Key] = true
			}
			provider.models = append(provider.models, entry)
		}
		sort.SliceStable(provider.models, func(i, j int) bool {
			return strings.ToLower(provider.models[i].DisplayName) < strings.ToLower(provider.models[j].DisplayName)
		})
		s.catalog = append(s.catalog, provider)
		for i := range provider.models {
			s.byKey[provider.models[i].Key] = &provider.models[i]
		}
	}

	return nil
}

// ListModelGroups returns providers in catalog order, each with its models
// sorted by display name and carrying the current toggle state.
func (s *modelConfigService) ListModelGroups() ([]models.LLMModelGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]models.LLMModelGroup, 0, len(s.catalog))
	for _, provider := range s.catalog {
		group := models.LLMModelGroup{
			ProviderID:   provider.id,
			ProviderName: provider.name,
			Models:       make([]models.LLMModel, 0, len(provider.models)),
		}
		for _, m := range provider.models {
			m.Enabled = s.enabled[m.Key]
			group.Models = append(group.Models, m)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func (s *modelConfigService) SetModelEnabled(modelKey string, enabled bool) (*models.LLMModel, error) {
	modelKey = strings.TrimSpace(modelKey)
	if modelKey == "" {
		return nil, fmt.Errorf("model key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byKey[modelKey]
	if !ok {
		return nil, fmt.Errorf("model %s not found", modelKey)
	}
	if _, err := s.repo.Upsert(modelKey, entry.ProviderID, enabled); err != nil {
		return nil, err
	}
	s.enabled[modelKey] = enabled

	out := *entry
	out.Enabled = enabled
	return &out, nil
}

// SetProviderEnabled flips every model of one provider in a single database
// write and returns the affected models, display-name sorted.
func (s *modelConfigService) SetProviderEnabled(provider string, enabled bool) ([]models.LLMModel, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, fmt.Errorf("provider is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.SetProviderEnabled(provider, enabled); err != nil {
		return nil, err
	}

	updated := make([]models.LLMModel, 0)
	for _, p := range s.catalog {
		if p.id != provider {
			continue
		}
		for _, m := range p.models {
			s.enabled[m.Key] = enabled
			m.Enabled = enabled
			updated = append(updated, m)
		}
	}
	return updated, nil
}

func (s *modelConfigService) GetModel(modelKey string) (*models.LLMModel, error) {
	modelKey = strings.TrimSpace(modelKey)
	if modelKey == "" {
		return nil, fmt.Errorf("model key is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byKey[modelKey]
	if !ok {
		return nil, fmt.Errorf("model %s not found", modelKey)
	}
	out := *entry
	out.Enabled = s.enabled[modelKey]
	return &out, nil
}
