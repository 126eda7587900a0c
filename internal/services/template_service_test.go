package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"stepweave/internal/models"
)

type templateRepositoryMock struct {
	GetFunc       func(ctx context.Context, id uint) (*models.Template, error)
	GetByNameFunc func(ctx context.Context, name string) (*models.Template, error)
	GetAllFunc    func(ctx context.Context) ([]*models.Template, error)
	CreateFunc    func(ctx context.Context, template *models.Template) error
	UpdateFunc    func(ctx context.Context, template *models.Template) error
	DeleteFunc    func(ctx context.Context, id uint) error
}

func (m *templateRepositoryMock) Get(ctx context.Context, id uint) (*models.Template, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, nil
}

func (m *templateRepositoryMock) GetByName(ctx context.Context, name string) (*models.Template, error) {
	if m.GetByNameFunc != nil {
		return m.GetByNameFunc(ctx, name)
	}
	return nil, nil
}

func (m *templateRepositoryMock) GetAll(ctx context.Context) ([]*models.Template, error) {
	if m.GetAllFunc != nil {
		return m.GetAllFunc(ctx)
	}
	return []*models.Template{}, nil
}

func (m *templateRepositoryMock) Create(ctx context.Context, template *models.Template) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, template)
	}
	return nil
}

func (m *templateRepositoryMock) Update(ctx context.Context, template *models.Template) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, template)
	}
	return nil
}

func (m *templateRepositoryMock) Delete(ctx context.Context, id uint) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func TestTemplateService_CreateTemplate_Success(t *testing.T) {
	mockRepo := &templateRepositoryMock{
		CreateFunc: func(ctx context.Context, tmpl *models.Template) error {
			tmpl.ID = 42
			return nil
		},
	}
	service := NewTemplateService(mockRepo)
	service.Startup(context.Background())

	tmpl := &models.Template{Name: "  Starter  ", Document: validDocument(t, "Starter")}
	result, err := service.CreateTemplate(tmpl)
	assert.NoError(t, err)
	assert.Equal(t, uint(42), result.ID)
	assert.Equal(t, "Starter", result.Name)
	assert.Equal(t, models.WorkflowKindFlow, result.Kind)
}

func TestTemplateService_CreateTemplate_InvalidDocument(t *testing.T) {
	service := NewTemplateService(&templateRepositoryMock{})
	service.Startup(context.Background())

	tmpl := &models.Template{Name: "Broken", Document: "{not json"}
	_, err := service.CreateTemplate(tmpl)
	assert.ErrorContains(t, err, "VALIDATION_ERROR")
}

func TestTemplateService_CreateTemplate_NameTaken(t *testing.T) {
	mockRepo := &templateRepositoryMock{
		GetByNameFunc: func(ctx context.Context, name string) (*models.Template, error) {
			return &models.Template{ID: 3, Name: name}, nil
		},
	}
	service := NewTemplateService(mockRepo)
	service.Startup(context.Background())

	tmpl := &models.Template{Name: "Starter", Document: validDocument(t, "Starter")}
	_, err := service.CreateTemplate(tmpl)
	assert.ErrorContains(t, err, "ERR_TEMPLATE_NAME_TAKEN:Starter")
}

func TestTemplateService_UpdateTemplate_KeepsOwnName(t *testing.T) {
	mockRepo := &templateRepositoryMock{
		GetByNameFunc: func(ctx context.Context, name string) (*models.Template, error) {
			// The stored row with this name is the template being updated.
			return &models.Template{ID: 7, Name: name}, nil
		},
	}
	service := NewTemplateService(mockRepo)
	service.Startup(context.Background())

	tmpl := &models.Template{ID: 7, Name: "Starter", Document: validDocument(t, "Starter")}
	result, err := service.UpdateTemplate(tmpl)
	assert.NoError(t, err)
	assert.Equal(t, uint(7), result.ID)
}

func TestTemplateService_UpdateTemplate_MissingID(t *testing.T) {
	service := NewTemplateService(&templateRepositoryMock{})
	service.Startup(context.Background())

	_, err := service.UpdateTemplate(&models.Template{Name: "Starter"})
	assert.EqualError(t, err, "template id is required")
}

func TestTemplateService_GetTemplate_Error(t *testing.T) {
	mockRepo := &templateRepositoryMock{
		GetFunc: func(ctx context.Context, id uint) (*models.Template, error) {
			return nil, assert.AnError
		},
	}
	service := NewTemplateService(mockRepo)
	service.Startup(context.Background())

	_, err := service.GetTemplate(1)
	assert.Error(t, err)
}

func TestTemplateService_ListTemplates(t *testing.T) {
	mockRepo := &templateRepositoryMock{
		GetAllFunc: func(ctx context.Context) ([]*models.Template, error) {
			return []*models.Template{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}, nil
		},
	}
	service := NewTemplateService(mockRepo)
	service.Startup(context.Background())

	list, err := service.ListTemplates()
	assert.NoError(t, err)
	assert.Len(t, list, 2)
}
