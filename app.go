package main

import (
	"context"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"stepweave/internal/editor"
	"stepweave/internal/services"
)

// App owns the application lifecycle: the runtime context, database teardown,
// and the editor host running beside the webview. Domain operations live on
// the bound services, not here.
type App struct {
	ctx     context.Context
	dbClose func() error
	host    *editor.DesktopHost
	index   *services.IndexService
}

func NewApp() *App {
	return &App{}
}

// startup captures the runtime context for dialog and log calls.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// shutdown tears resources down in dependency order: background work first,
// the database last.
func (a *App) shutdown(ctx context.Context) {
	if a.index != nil {
		a.index.Stop()
	}
	if a.host != nil {
		a.host.Stop()
	}

	if a.dbClose != nil {
		if err := a.dbClose(); err != nil {
			runtime.LogError(ctx, fmt.Sprintf("failed to close database: %v", err))
		} else {
			runtime.LogInfo(ctx, "database closed")
		}
		a.dbClose = nil
	}
}

// SelectDirectory shows the native directory picker; the frontend uses it to
// choose the knowledge directory. An empty string means the user cancelled.
func (a *App) SelectDirectory() (string, error) {
	return runtime.OpenDirectoryDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Select Directory",
	})
}
