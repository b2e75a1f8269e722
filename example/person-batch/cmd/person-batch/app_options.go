package main

import (
	"go.uber.org/fx"

	"github.com/tigerroll/chunkbatch/example/person-batch/internal/job"
	gormadapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm/mysql"
	_ "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm/postgres"
	_ "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/gorm/sqlite"
	storage "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/local"
	usecase "github.com/tigerroll/chunkbatch/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	support "github.com/tigerroll/chunkbatch/pkg/batch/core/config/support"
	runner "github.com/tigerroll/chunkbatch/pkg/batch/core/job/runner"
	incrementer "github.com/tigerroll/chunkbatch/pkg/batch/core/support/incrementer"
	metrics "github.com/tigerroll/chunkbatch/pkg/batch/infrastructure/metrics"
	inmemoryRepo "github.com/tigerroll/chunkbatch/pkg/batch/infrastructure/repository/inmemory"
	sqlRepo "github.com/tigerroll/chunkbatch/pkg/batch/infrastructure/repository/sql"
	batchlistener "github.com/tigerroll/chunkbatch/pkg/batch/listener"
	logger "github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// GetApplicationOptions builds the fx options of the application. The configuration is
// loaded once up front to choose between the database and in-memory wiring.
func GetApplicationOptions(envFilePath string, embeddedConfig config.EmbeddedConfig) ([]fx.Option, error) {
	cfg, err := config.LoadConfig(envFilePath, embeddedConfig, nil)
	if err != nil {
		return nil, err
	}

	var options []fx.Option
	options = append(options, fx.Supply(
		embeddedConfig,
		fx.Annotated{Name: "envFilePath", Target: envFilePath},
	))
	options = append(options, logger.Module)
	options = append(options, config.Module)
	options = append(options, metrics.Module)
	options = append(options, storage.Module, local.Module, gcs.Module)
	options = append(options, repositoryOptions(cfg)...)
	options = append(options, runner.Module)
	options = append(options, support.Module)
	options = append(options, usecase.Module)
	options = append(options, incrementer.Module)
	options = append(options, batchlistener.Module)
	options = append(options, job.Module)
	return options, nil
}

// repositoryOptions selects the job repository and, when a database is configured,
// the GORM connection the person jobs write through.
func repositoryOptions(cfg *config.Config) []fx.Option {
	if !cfg.Chunkbatch.Database.Enabled() {
		logger.Infof("No database configured; using the in-memory job repository.")
		return []fx.Option{inmemoryRepo.Module}
	}
	if cfg.UsesDatabaseRepository() {
		logger.Infof("Using the %s job repository.", cfg.Chunkbatch.Database.Type)
		return []fx.Option{gormadapter.Module, sqlRepo.Module}
	}
	return []fx.Option{gormadapter.Module, inmemoryRepo.Module}
}
