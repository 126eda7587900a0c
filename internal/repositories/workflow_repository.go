package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"stepweave/internal/models"
)

type WorkflowRepository interface {
	List() ([]models.WorkflowSummary, error)
	GetByID(id uint) (*models.Workflow, error)
	GetByName(name string) (*models.Workflow, error)
	Create(wf *models.Workflow) error
	UpdateByID(id uint, updates map[string]interface{}) error
	Delete(id uint) error
	ClearParent(parentID uint) error
}

type workflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepository{db: db}
}

func (r *workflowRepository) List() ([]models.WorkflowSummary, error) {
	var rows []models.Workflow
	if err := r.db.Order("updated_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.WorkflowSummary, 0, len(rows))
	for _, w := range rows {
		out = append(out, models.WorkflowSummary{
			ID:        w.ID,
			Name:      w.Name,
			Kind:      w.Kind,
			ParentID:  w.ParentID,
			UpdatedAt: w.UpdatedAt,
		})
	}
	return out, nil
}

func (r *workflowRepository) GetByID(id uint) (*models.Workflow, error) {
	var wf models.Workflow
	if err := r.db.First(&wf, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wf, nil
}

func (r *workflowRepository) GetByName(name string) (*models.Workflow, error) {
	if name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	var wf models.Workflow
	if err := r.db.Where("name = ?", name).Take(&wf).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wf, nil
}

func (r *workflowRepository) Create(wf *models.Workflow) error {
	if wf.Name == "" {
		return fmt.Errorf("workflow name is required")
	}
	if wf.Kind == "" {
		wf.Kind = models.WorkflowKindFlow
	}
	return r.db.Create(wf).Error
}

// UpdateByID applies a column map so partial updates (document only,
// conversation only) never clobber sibling columns.
func (r *workflowRepository) UpdateByID(id uint, updates map[string]interface{}) error {
	if id == 0 {
		return fmt.Errorf("workflow id is required")
	}
	res := r.db.Model(&models.Workflow{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("workflow %d not found", id)
	}
	return nil
}

func (r *workflowRepository) Delete(id uint) error {
	return r.db.Delete(&models.Workflow{}, id).Error
}

// ClearParent detaches every subflow pointing at a deleted parent.
func (r *workflowRepository) ClearParent(parentID uint) error {
	if parentID == 0 {
		return fmt.Errorf("parent id is required")
	}
	return r.db.Model(&models.Workflow{}).
		Where("parent_id = ?", parentID).
		Update("parent_id", nil).Error
}
