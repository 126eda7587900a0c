package main

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"gorm.io/gorm/logger"

	"stepweave/internal/database"
	"stepweave/internal/editor"
	"stepweave/internal/events"
	"stepweave/internal/services"
	"stepweave/internal/utils"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {

	// Development convenience: API keys and overrides from the project .env.
	if err := utils.LoadEnv(); err != nil {
		fmt.Println("Warning: could not load .env:", err)
	}

	app := NewApp()

	db, err := database.Init(database.Config{
		Path:     database.GetDefaultDBPath(),
		LogLevel: logger.Warn,
	})
	if err != nil {
		fmt.Println("Error opening database:", err)
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		app.dbClose = sqlDB.Close
	}

	// Packaged builds have no project root; scratch files land in the
	// temp directory instead.
	workspaceRoot, _ := utils.FindProjectRoot()

	// svc is assigned below; the closure only runs when an editor launches.
	var svc *services.Services
	host := editor.NewDesktopHost(workspaceRoot, func() string {
		if svc == nil {
			return ""
		}
		settings, err := svc.AppSettings.Get()
		if err != nil || settings == nil {
			return ""
		}
		return strings.TrimSpace(settings.EditorCommand)
	})

	svc = services.NewServices(db, host)
	app.host = host
	app.index = svc.Index

	events.EnableRuntimeEmitter()

	// Create application with options
	err = wails.Run(&options.App{
		Title:  "Stepweave",
		Width:  1200,
		Height: 800,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		Linux: &linux.Options{
			WindowIsTranslucent: false,
			WebviewGpuPolicy:    linux.WebviewGpuPolicyAlways,
			ProgramName:         "Stepweave",
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		OnStartup: func(ctx context.Context) {
			app.startup(ctx)

			if err := host.Start(ctx); err != nil {
				fmt.Println("Error starting editor host:", err)
			}

			svc.Workflows.Startup(ctx)
			svc.Templates.Startup(ctx)
			svc.AppSettings.Startup(ctx)
			svc.Index.Startup(ctx)
			svc.EditSessions.Startup(ctx)
			if err := svc.ModelConfigs.Startup(ctx); err != nil {
				fmt.Println("Error starting model configuration service:", err)
			}
			if err := svc.Copilot.Startup(ctx); err != nil {
				fmt.Println("Error starting copilot service:", err)
			}
		},
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
			svc.Workflows,
			svc.Templates,
			svc.AppSettings,
			svc.ModelConfigs,
			svc.Keyring,
			svc.Index,
			svc.EditSessions,
			svc.Copilot,
		},
	})

	if err != nil {
		println("Error:", err.Error())
	}
}
