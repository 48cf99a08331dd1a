package storage

import (
	"fmt"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/config"
)

func NewFileRepositories(connectionsFile, entriesFile string, logger internal.Logger) (Store, error) {
	return NewFileStorage(connectionsFile, entriesFile, logger)
}

func NewPostgresRepositories(dsn string, logger internal.Logger) (Store, error) {
	return NewPostgresStorage(dsn, logger)
}

func NewSQLiteRepositories(path string, logger internal.Logger) (Store, error) {
	return NewSQLiteStorage(path, logger)
}

// FromConfig opens the backend selected by STORAGE_BACKEND.
func FromConfig(cfg *config.Config, logger internal.Logger) (Store, error) {
	switch cfg.DBType {
	case "file":
		return NewFileRepositories(cfg.FileConnections, cfg.FileEntries, logger)
	case "postgres":
		return NewPostgresRepositories(cfg.DBDSN, logger)
	case "sqlite":
		return NewSQLiteRepositories(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.DBType)
	}
}
