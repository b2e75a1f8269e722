package job

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tigerroll/chunkbatch/example/person-batch/internal/domain"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/reader"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/writer"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/support/incrementer"
	itemstep "github.com/tigerroll/chunkbatch/pkg/batch/engine/step/item"
	"github.com/tigerroll/chunkbatch/pkg/batch/listener/logging"
)

const selectPeopleSQL = "SELECT id, name, age, address FROM person ORDER BY id"

func scanPerson(rows *sql.Rows) (domain.Person, error) {
	var (
		p            domain.Person
		age, address sql.NullString
	)
	if err := rows.Scan(&p.ID, &p.Name, &age, &address); err != nil {
		return domain.Person{}, err
	}
	p.Age = age.String
	p.Address = address.String
	return p, nil
}

// exportDir returns the part file directory of one launch, keyed by its timestamp.
func exportDir(params model.JobParameters) string {
	dir := stringParam(params, OutputDirParam, DefaultExportDir)
	if ts, ok := params.GetInt64(incrementer.DefaultTimestampKey); ok {
		return fmt.Sprintf("%s/%s=%d", dir, incrementer.DefaultTimestampKey, ts)
	}
	return dir
}

// personExportJob streams the person table into Parquet part files, one per chunk.
func (j *jobs) personExportJob(_ context.Context, params model.JobParameters) ([]port.Step, error) {
	sc, err := j.stepConfig(params)
	if err != nil {
		return nil, err
	}
	sqlDB, err := j.d.DB.DB()
	if err != nil {
		return nil, err
	}

	cursor, err := reader.NewSQLCursorItemReader[domain.Person](sqlDB, "personCursorReader", selectPeopleSQL, nil, scanPerson)
	if err != nil {
		return nil, err
	}
	parquetWriter, err := writer.NewParquetItemWriter[domain.Person]("personParquetWriter", map[string]interface{}{
		"outputBaseDir":   exportDir(params),
		"compressionType": stringParam(params, CompressionParam, "SNAPPY"),
	}, j.d.Resolver, new(domain.Person), nil)
	if err != nil {
		return nil, err
	}
	export := itemstep.NewChunkStep[domain.Person, domain.Person](
		"personExportStep",
		cursor,
		nil,
		parquetWriter,
		sc.ChunkSize,
		j.d.Repo,
		nil,
	)
	return logging.Attach(export), nil
}
