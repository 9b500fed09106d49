package gormstore

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DatabaseConfig selects the SQL dialect and connection string a
// gormstore.Storage runs against.
type DatabaseConfig struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
}

// OpenDatabase opens a GORM connection for config. It does not run
// migrations; New does that for the tables it owns.
func OpenDatabase(config DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case "sqlite":
		dialector = sqlite.Open(config.DSN)
	case "postgres":
		dialector = postgres.Open(config.DSN)
	default:
		return nil, fmt.Errorf("gormstore: unsupported database driver %q", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("gormstore: failed to connect: %w", err)
	}
	return db, nil
}

// DefaultSQLiteConfig returns an in-memory SQLite configuration suitable
// for tests and local development.
func DefaultSQLiteConfig() DatabaseConfig {
	return DatabaseConfig{Driver: "sqlite", DSN: "file::memory:?cache=shared"}
}
