package job

import (
	"context"

	"github.com/tigerroll/chunkbatch/example/person-batch/internal/domain"
	compitem "github.com/tigerroll/chunkbatch/pkg/batch/component/item"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/writer"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	itemstep "github.com/tigerroll/chunkbatch/pkg/batch/engine/step/item"
	"github.com/tigerroll/chunkbatch/pkg/batch/listener/logging"
)

const (
	csvHeader = "id,name,age,address"
	csvFooter = "------------------\n"
)

// insertPersonSQL returns the insert statement in the placeholder style of dbType.
func insertPersonSQL(dbType string) string {
	if dbType == "postgres" {
		return "insert into person(name, age, address) values($1, $2, $3)"
	}
	return "insert into person(name, age, address) values(?, ?, ?)"
}

func personArgs(p domain.Person) ([]interface{}, error) {
	return []interface{}{p.Name, p.Age, p.Address}, nil
}

// itemWriterJob writes 100 people to the CSV output and, with a database, inserts them
// once through plain SQL and once through GORM.
func (j *jobs) itemWriterJob(_ context.Context, params model.JobParameters) ([]port.Step, error) {
	sc, err := j.stepConfig(params)
	if err != nil {
		return nil, err
	}

	csvWriter, err := writer.NewFlatFileItemWriter[domain.Person]("csvFileItemWriter", writer.FlatFileWriterConfig{
		Resource:   stringParam(params, OutputFileParam, DefaultOutputFile),
		Delimiter:  ",",
		Header:     csvHeader,
		Footer:     csvFooter,
		AppendMode: true,
		Encoding:   "UTF-8",
	}, j.d.Resolver, func(p domain.Person) ([]string, error) { return p.Fields(), nil })
	if err != nil {
		return nil, err
	}
	steps := []port.Step{
		itemstep.NewChunkStep[domain.Person, domain.Person](
			"csvItemWriterStep",
			compitem.NewListItemReader(domain.NamedPeople(100)),
			nil,
			csvWriter,
			sc.ChunkSize,
			j.d.Repo,
			nil,
		),
	}
	if j.d.DB == nil {
		return logging.Attach(steps...), nil
	}

	migrate, err := j.migratePersonStep()
	if err != nil {
		return nil, err
	}
	sqlWriter, err := writer.NewSQLBatchItemWriter[domain.Person]("jdbcBatchItemWriter", writer.SQLBatchWriterConfig{
		SQL: insertPersonSQL(j.d.Config.Chunkbatch.Database.Type),
	}, personArgs)
	if err != nil {
		return nil, err
	}
	steps = append(steps,
		migrate,
		itemstep.NewChunkStep[domain.Person, domain.Person](
			"jdbcBatchItemWriterStep",
			compitem.NewListItemReader(domain.NamedPeople(100)),
			nil,
			sqlWriter,
			sc.ChunkSize,
			j.d.Repo,
			j.d.TxManager,
		),
		itemstep.NewChunkStep[domain.Person, domain.Person](
			"jpaItemWriterStep",
			compitem.NewListItemReader(domain.NamedPeople(100)),
			nil,
			writer.NewGormItemWriter[domain.Person]("jpaItemWriter", writer.GormWriterConfig{}),
			sc.ChunkSize,
			j.d.Repo,
			j.d.TxManager,
		),
	)
	return logging.Attach(steps...), nil
}
