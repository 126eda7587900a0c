package services

import (
	"gorm.io/gorm"

	"stepweave/internal/editor"
	"stepweave/internal/repositories"
)

// Services aggregates the app's domain services, wired to their repositories
// and to each other. main constructs one instance and binds its fields.
type Services struct {
	Workflows    WorkflowService
	Templates    TemplateService
	AppSettings  AppSettingsService
	ModelConfigs ModelConfigService
	Keyring      *KeyringService
	Index        *IndexService
	EditSessions *EditSessionService
	Copilot      *CopilotService
}

// NewServices constructs the service container using repositories backed by
// db. host is the editor integration the edit sessions coordinate with.
func NewServices(db *gorm.DB, host editor.Host) *Services {
	workflowRepo := repositories.NewWorkflowRepository(db)
	templateRepo := repositories.NewTemplateRepository(db)
	settingsRepo := repositories.NewAppSettingsRepository(db)
	modelRepo := repositories.NewModelSettingRepository(db)

	templates := NewTemplateService(templateRepo)
	workflows := NewWorkflowService(workflowRepo, templates)
	appSettings := NewAppSettingsService(settingsRepo)
	modelConfigs := NewModelConfigService(modelRepo)
	keyring := NewKeyringService()
	index := NewIndexService(settingsRepo)
	editSessions := NewEditSessionService(host)
	copilot := NewCopilotService(workflows, modelConfigs, keyring, appSettings, index)

	return &Services{
		Workflows:    workflows,
		Templates:    templates,
		AppSettings:  appSettings,
		ModelConfigs: modelConfigs,
		Keyring:      keyring,
		Index:        index,
		EditSessions: editSessions,
		Copilot:      copilot,
	}
}
