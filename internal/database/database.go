package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stepweave/internal/models"
)

type Config struct {
	Path     string
	LogLevel logger.LogLevel
}

// Init opens the SQLite store and brings the schema up to date. The pool is
// pinned to a single connection; with WAL enabled that is enough for a
// desktop app and avoids SQLITE_BUSY under concurrent service calls.
func Init(cfg Config) (*gorm.DB, error) {
	level := cfg.LogLevel
	if level == 0 {
		level = logger.Warn
	}

	db, err := gorm.Open(sqlite.Open(dsn(cfg.Path)), &gorm.Config{
		Logger: newLogger(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(
		&models.Workflow{},
		&models.Template{},
		&models.AppSettings{},
		&models.ModelSetting{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return db, nil
}

func dsn(path string) string {
	return fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", path)
}

func newLogger(level logger.LogLevel) logger.Interface {
	return logger.New(
		log.New(stdlogWriter{}, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// stdlogWriter routes GORM's log lines through the standard logger so they
// interleave with the rest of the app's output.
type stdlogWriter struct{}

func (stdlogWriter) Write(p []byte) (int, error) {
	log.Printf("%s", p)
	return len(p), nil
}
