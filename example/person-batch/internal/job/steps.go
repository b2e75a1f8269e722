package job

import (
	"context"
	"fmt"

	"github.com/tigerroll/chunkbatch/example/person-batch/internal/domain"
	personmigration "github.com/tigerroll/chunkbatch/example/person-batch/internal/migration"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/reader"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/tasklet/migration"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	tasklet "github.com/tigerroll/chunkbatch/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// Job parameters understood besides chunkSize and allowDuplicate.
const (
	InputFileParam   = "inputFile"
	OutputFileParam  = "outputFile"
	OutputDirParam   = "outputDir"
	CompressionParam = "compression"
)

// Defaults, relative to the working directory.
const (
	DefaultInputFile  = "data/test.csv"
	DefaultOutputFile = "output/test-output.csv"
	DefaultExportDir  = "output/person-export"
)

var personColumns = []string{"id", "name", "age", "address"}

func (j *jobs) stepConfig(params model.JobParameters) (config.StepConfig, error) {
	return config.NewStepConfig(params, j.d.Config.Chunkbatch.Batch.ChunkSize)
}

func stringParam(params model.JobParameters, key, def string) string {
	if v, ok := params.GetString(key); ok && v != "" {
		return v
	}
	return def
}

// migratePersonStep applies the person table migrations of the configured database.
func (j *jobs) migratePersonStep() (port.Step, error) {
	t, err := migration.NewMigrationTasklet(
		migration.NewMigrator(j.d.Config.Chunkbatch.Database),
		personmigration.FS(),
		map[string]interface{}{"command": "up"},
	)
	if err != nil {
		return nil, err
	}
	return tasklet.NewTaskletStep("migratePersonStep", t, j.d.Repo, nil), nil
}

func (j *jobs) personCSVReader(params model.JobParameters) (*reader.FlatFileItemReader[domain.Person], error) {
	cfg := reader.DefaultFlatFileReaderConfig()
	cfg.Resource = stringParam(params, InputFileParam, DefaultInputFile)
	cfg.Names = personColumns
	return reader.NewFlatFileItemReader[domain.Person]("csvFileItemReader", cfg, j.d.Resolver, mapPerson)
}

func mapPerson(fs reader.FieldSet) (domain.Person, error) {
	id, err := fs.GetInt("id")
	if err != nil {
		return domain.Person{}, err
	}
	return domain.Person{
		ID:      int64(id),
		Name:    fs.Get("name"),
		Age:     fs.Get("age"),
		Address: fs.Get("address"),
	}, nil
}

// summaryWriter logs one line per chunk.
type summaryWriter[T any] struct {
	name   string
	render func(items []T) string
}

var _ port.ItemWriter[any] = (*summaryWriter[any])(nil)

func (w *summaryWriter[T]) Open(context.Context, model.ExecutionContext) error { return nil }

func (w *summaryWriter[T]) Write(_ context.Context, _ tx.Tx, items []T) error {
	logger.With("writer", w.name).Infof("%s", w.render(items))
	return nil
}

func (w *summaryWriter[T]) Close(context.Context) error { return nil }

func chunkSizeWriter[T any](name string) *summaryWriter[T] {
	return &summaryWriter[T]{name: name, render: func(items []T) string {
		return fmt.Sprintf("chunk item size : %d", len(items))
	}}
}
