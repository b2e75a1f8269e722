package migration

import (
	"context"
	"io/fs"
)

// Migration history tables.
const (
	FixedFrameworkMigrationsTable = "batch_framework_migrations"
	FixedAppMigrationsTable       = "batch_app_migrations"
)

// Migrator handles database schema migrations.
type Migrator interface {
	// Up applies all pending migrations.
	// tableName: The name of the table used to track migration history (e.g., batch_framework_migrations).
	Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// Down rolls back all applied migrations.
	// tableName: The name of the table used to track migration history.
	Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// DatabaseType returns the database type, which is also the default migration directory.
	DatabaseType() string
}
