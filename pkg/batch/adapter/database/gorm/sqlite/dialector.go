// Package sqlite registers the SQLite dialector with the gorm adapter.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm"
)

// Type is the database type served by this package.
const Type = "sqlite"

func init() {
	gormadapter.RegisterDialector(Type, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		dsn, err := ConnectionString(cfg)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(dsn), nil
	})
}

// ConnectionString returns the DSN for cfg. The database field holds the file
// path, or ":memory:" for an in-memory database. File databases use WAL so an
// open read cursor does not block chunk commits.
func ConnectionString(cfg dbconfig.DatabaseConfig) (string, error) {
	if cfg.Database == "" {
		return "", errors.New("SQLite database path cannot be empty")
	}
	if cfg.Database == ":memory:" {
		// A shared cache keeps every pooled connection on the same database.
		return "file::memory:?cache=shared&_foreign_keys=on", nil
	}
	return cfg.Database + "?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL", nil
}
