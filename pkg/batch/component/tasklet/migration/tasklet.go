package migration

import (
	"context"
	"io/fs"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// TaskletConfig configures a MigrationTasklet.
type TaskletConfig struct {
	// MigrationDir is the directory within the migration filesystem. Defaults to the database type.
	MigrationDir string `yaml:"migrationDir"`
	// Command is "up" (default) or "down".
	Command string `yaml:"command"`
	// IsFramework selects the framework history table instead of the application one.
	IsFramework bool `yaml:"isFramework"`
}

// MigrationTasklet runs one migration command as a tasklet step.
type MigrationTasklet struct {
	migrator    Migrator
	migrationFS fs.FS
	cfg         TaskletConfig
}

var _ port.Tasklet = (*MigrationTasklet)(nil)

// NewMigrationTasklet creates a MigrationTasklet from properties.
//
// Parameters:
//
//	migrator: Applies the migrations.
//	migrationFS: The filesystem holding the migration scripts.
//	properties: migrationDir, command and isFramework.
func NewMigrationTasklet(migrator Migrator, migrationFS fs.FS, properties map[string]interface{}) (*MigrationTasklet, error) {
	const taskletName = "migration_tasklet"
	var cfg TaskletConfig
	if err := configbinder.BindProperties(properties, &cfg); err != nil {
		return nil, exception.NewBatchError(taskletName, "failed to bind properties", err, false, false)
	}
	if cfg.Command == "" {
		cfg.Command = "up"
	}
	if cfg.Command != "up" && cfg.Command != "down" {
		return nil, exception.NewBatchErrorf(taskletName, "unknown migration command: %s", cfg.Command)
	}
	if migrator == nil || migrationFS == nil {
		return nil, exception.NewBatchErrorf(taskletName, "a migrator and a migration filesystem are required")
	}
	return &MigrationTasklet{migrator: migrator, migrationFS: migrationFS, cfg: cfg}, nil
}

// Execute runs the configured command once.
func (t *MigrationTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (port.RepeatStatus, error) {
	const taskletName = "migration_tasklet"

	table := FixedAppMigrationsTable
	if t.cfg.IsFramework {
		table = FixedFrameworkMigrationsTable
	}
	dir := t.cfg.MigrationDir
	if dir == "" {
		dir = t.migrator.DatabaseType()
		logger.Debugf("Using DB type '%s' as migration directory.", dir)
	}

	var err error
	switch t.cfg.Command {
	case "up":
		err = t.migrator.Up(ctx, t.migrationFS, dir, table)
	case "down":
		err = t.migrator.Down(ctx, t.migrationFS, dir, table)
	}
	if err != nil {
		return port.RepeatStatusFinished, exception.NewBatchError(taskletName, "migration '"+t.cfg.Command+"' failed", err, false, false)
	}
	stepExecution.ExecutionContext.Put("migration.command", t.cfg.Command)
	stepExecution.ExecutionContext.Put("migration.dir", dir)
	return port.RepeatStatusFinished, nil
}
