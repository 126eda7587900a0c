package services

import (
	"context"
	"fmt"
	"strings"

	"stepweave/internal/models"
	"stepweave/internal/repositories"
	"stepweave/internal/workflow"
)

type TemplateService interface {
	GetTemplate(id uint) (*models.Template, error)
	ListTemplates() ([]*models.Template, error)
	CreateTemplate(t *models.Template) (*models.Template, error)
	UpdateTemplate(t *models.Template) (*models.Template, error)
	DeleteTemplate(id uint) error
	Startup(ctx context.Context)
}

type templateService struct {
	repo repositories.TemplateRepository
	ctx  context.Context
}

func (s *templateService) Startup(ctx context.Context) {
	s.ctx = ctx
}

func NewTemplateService(repo repositories.TemplateRepository) TemplateService {
	return &templateService{repo: repo}
}

func (s *templateService) GetTemplate(id uint) (*models.Template, error) {
	tmpl, err := s.repo.Get(s.ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: get template %d: %w", id, err)
	}
	return tmpl, nil
}

func (s *templateService) ListTemplates() ([]*models.Template, error) {
	list, err := s.repo.GetAll(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("service: list templates: %w", err)
	}
	return list, nil
}

func (s *templateService) CreateTemplate(t *models.Template) (*models.Template, error) {
	if err := s.normalize(t, 0); err != nil {
		return nil, err
	}
	if err := s.repo.Create(s.ctx, t); err != nil {
		return nil, fmt.Errorf("service: create template: %w", err)
	}
	return t, nil
}

func (s *templateService) UpdateTemplate(t *models.Template) (*models.Template, error) {
	if t == nil || t.ID == 0 {
		return nil, fmt.Errorf("template id is required")
	}
	if err := s.normalize(t, t.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(s.ctx, t); err != nil {
		return nil, fmt.Errorf("service: update template %d: %w", t.ID, err)
	}
	return t, nil
}

func (s *templateService) DeleteTemplate(id uint) error {
	if err := s.repo.Delete(s.ctx, id); err != nil {
		return fmt.Errorf("service: delete template %d: %w", id, err)
	}
	return nil
}

// normalize trims fields and rejects templates whose document would not be
// accepted as a workflow.
func (s *templateService) normalize(t *models.Template, selfID uint) error {
	if t == nil {
		return fmt.Errorf("template is required")
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	t.Kind = strings.TrimSpace(t.Kind)
	if t.Kind == "" {
		t.Kind = models.WorkflowKindFlow
	}
	if t.Kind != models.WorkflowKindFlow && t.Kind != models.WorkflowKindSubflow {
		return fmt.Errorf("template kind must be %q or %q", models.WorkflowKindFlow, models.WorkflowKindSubflow)
	}
	if _, err := workflow.ParseAndValidate(t.Document); err != nil {
		return err
	}
	existing, err := s.repo.GetByName(s.ctx, t.Name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return fmt.Errorf("ERR_TEMPLATE_NAME_TAKEN:%s", t.Name)
	}
	return nil
}
