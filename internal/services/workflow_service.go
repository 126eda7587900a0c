package services

import (
	"context"
	"fmt"
	"strings"

	"stepweave/internal/models"
	"stepweave/internal/repositories"
	"stepweave/internal/workflow"
)

type WorkflowService interface {
	Startup(ctx context.Context)
	ListWorkflows() ([]models.WorkflowSummary, error)
	GetWorkflow(id uint) (*models.Workflow, error)
	CreateWorkflow(name string, kind string, parentID *uint) (*models.Workflow, error)
	CreateFromTemplate(templateID uint, name string) (*models.Workflow, error)
	RenameWorkflow(id uint, name string) (*models.Workflow, error)
	DeleteWorkflow(id uint) error
	GetDocument(id uint) (string, error)
	UpdateDocument(id uint, document string) (*models.Workflow, error)
	UpdateByID(id uint, updates map[string]interface{}) error
}

type workflowService struct {
	repo      repositories.WorkflowRepository
	templates TemplateService
	ctx       context.Context
}

func NewWorkflowService(repo repositories.WorkflowRepository, templates TemplateService) WorkflowService {
	return &workflowService{repo: repo, templates: templates}
}

func (s *workflowService) Startup(ctx context.Context) {
	s.ctx = ctx
}

func (s *workflowService) ListWorkflows() ([]models.WorkflowSummary, error) {
	list, err := s.repo.List()
	if err != nil {
		return nil, fmt.Errorf("service: list workflows: %w", err)
	}
	return list, nil
}

func (s *workflowService) GetWorkflow(id uint) (*models.Workflow, error) {
	if id == 0 {
		return nil, fmt.Errorf("workflow id is required")
	}
	wf, err := s.repo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("service: get workflow %d: %w", id, err)
	}
	if wf == nil {
		return nil, fmt.Errorf("workflow %d not found", id)
	}
	return wf, nil
}

func (s *workflowService) CreateWorkflow(name string, kind string, parentID *uint) (*models.Workflow, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = models.WorkflowKindFlow
	}
	if kind != models.WorkflowKindFlow && kind != models.WorkflowKindSubflow {
		return nil, fmt.Errorf("workflow kind must be %q or %q", models.WorkflowKindFlow, models.WorkflowKindSubflow)
	}
	if err := s.ensureNameFree(name, 0); err != nil {
		return nil, err
	}
	if parentID != nil {
		parent, err := s.repo.GetByID(*parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("parent workflow %d not found", *parentID)
		}
	}

	document, err := workflow.Marshal(workflow.NewDocument(name))
	if err != nil {
		return nil, err
	}
	wf := &models.Workflow{
		Name:     name,
		Kind:     kind,
		ParentID: parentID,
		Document: document,
	}
	if err := s.repo.Create(wf); err != nil {
		return nil, fmt.Errorf("service: create workflow: %w", err)
	}
	return wf, nil
}

func (s *workflowService) CreateFromTemplate(templateID uint, name string) (*models.Workflow, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	if err := s.ensureNameFree(name, 0); err != nil {
		return nil, err
	}

	tmpl, err := s.templates.GetTemplate(templateID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, fmt.Errorf("template %d not found", templateID)
	}

	doc, err := workflow.ParseAndValidate(tmpl.Document)
	if err != nil {
		return nil, fmt.Errorf("template %q has an invalid document: %w", tmpl.Name, err)
	}
	doc.Name = name
	document, err := workflow.Marshal(doc)
	if err != nil {
		return nil, err
	}

	kind := strings.TrimSpace(tmpl.Kind)
	if kind != models.WorkflowKindSubflow {
		kind = models.WorkflowKindFlow
	}
	wf := &models.Workflow{
		Name:     name,
		Kind:     kind,
		Document: document,
	}
	if err := s.repo.Create(wf); err != nil {
		return nil, fmt.Errorf("service: create workflow from template: %w", err)
	}
	return wf, nil
}

// RenameWorkflow renames the record and keeps the document's embedded name in
// sync.
func (s *workflowService) RenameWorkflow(id uint, name string) (*models.Workflow, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	wf, err := s.GetWorkflow(id)
	if err != nil {
		return nil, err
	}
	if wf.Name == name {
		return wf, nil
	}
	if err := s.ensureNameFree(name, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"name": name}
	if doc, parseErr := workflow.Parse(wf.Document); parseErr == nil {
		doc.Name = name
		if document, marshalErr := workflow.Marshal(doc); marshalErr == nil {
			updates["document"] = document
		}
	}
	if err := s.repo.UpdateByID(id, updates); err != nil {
		return nil, fmt.Errorf("service: rename workflow %d: %w", id, err)
	}
	return s.GetWorkflow(id)
}

func (s *workflowService) DeleteWorkflow(id uint) error {
	if id == 0 {
		return fmt.Errorf("workflow id is required")
	}
	if err := s.repo.ClearParent(id); err != nil {
		return fmt.Errorf("service: detach subflows of %d: %w", id, err)
	}
	if err := s.repo.Delete(id); err != nil {
		return fmt.Errorf("service: delete workflow %d: %w", id, err)
	}
	return nil
}

func (s *workflowService) GetDocument(id uint) (string, error) {
	wf, err := s.GetWorkflow(id)
	if err != nil {
		return "", err
	}
	return wf.Document, nil
}

// UpdateDocument is the manual-save path: the document must parse and pass
// validation before it replaces what is stored.
func (s *workflowService) UpdateDocument(id uint, document string) (*models.Workflow, error) {
	if _, err := s.GetWorkflow(id); err != nil {
		return nil, err
	}
	if _, err := workflow.ParseAndValidate(document); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateByID(id, map[string]interface{}{"document": document}); err != nil {
		return nil, fmt.Errorf("service: update workflow %d document: %w", id, err)
	}
	return s.GetWorkflow(id)
}

func (s *workflowService) UpdateByID(id uint, updates map[string]interface{}) error {
	if id == 0 {
		return fmt.Errorf("workflow id is required")
	}
	return s.repo.UpdateByID(id, updates)
}

func (s *workflowService) ensureNameFree(name string, selfID uint) error {
	existing, err := s.repo.GetByName(name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return fmt.Errorf("ERR_WORKFLOW_NAME_TAKEN:%s", name)
	}
	return nil
}
