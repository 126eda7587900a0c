//go:build prod

package database

import (
	"log"
	"os"
	"path/filepath"
)

// GetDefaultDBPath resolves the per-user database location, creating the app
// directory on first run. Any failure falls back to the working directory so
// the app still starts.
func GetDefaultDBPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		log.Printf("user config dir unavailable (%v), using working directory", err)
		return "stepweave.db"
	}

	appDir := filepath.Join(configDir, "stepweave")
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		log.Printf("could not create %s (%v), using working directory", appDir, err)
		return "stepweave.db"
	}

	return filepath.Join(appDir, "stepweave.db")
}
