package sql

import (
	"context"
	"io/fs"

	"go.uber.org/fx"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/tasklet/migration"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/tasklet/migration/filesystem"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// InitializeSchema applies the framework migrations for the configured database.
func InitializeSchema(ctx context.Context, cfg dbconfig.DatabaseConfig, migrationFS fs.FS) error {
	logger.Infof("Initializing job repository schema (%s).", cfg.Type)
	return migration.NewMigrator(cfg).Up(ctx, migrationFS, cfg.Type, migration.FixedFrameworkMigrationsTable)
}

type schemaParams struct {
	fx.In
	Lifecycle   fx.Lifecycle
	Config      dbconfig.DatabaseConfig
	MigrationFS fs.FS `name:"frameworkMigrationsFS"`
	// DB is requested so the schema is created after the connection is opened.
	DB *gorm.DB
}

func registerSchemaInitialization(p schemaParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return InitializeSchema(ctx, p.Config, p.MigrationFS)
		},
	})
}

// Module provides a GORM-backed repository.JobRepository and creates its tables on
// application start.
var Module = fx.Options(
	filesystem.Module,
	fx.Provide(fx.Annotate(
		NewGormJobRepository,
		fx.As(new(repository.JobRepository)),
	)),
	fx.Invoke(registerSchemaInitialization),
)
