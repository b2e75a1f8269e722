package job

import (
	"context"
	"strings"

	"github.com/tigerroll/chunkbatch/example/person-batch/internal/domain"
	compitem "github.com/tigerroll/chunkbatch/pkg/batch/component/item"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	itemstep "github.com/tigerroll/chunkbatch/pkg/batch/engine/step/item"
	"github.com/tigerroll/chunkbatch/pkg/batch/listener/logging"
)

func namesWriter(name string) *summaryWriter[domain.Person] {
	return &summaryWriter[domain.Person]{name: name, render: func(items []domain.Person) string {
		names := make([]string, len(items))
		for i, p := range items {
			names[i] = p.Name
		}
		return strings.Join(names, ", ")
	}}
}

// itemReaderJob reads people from memory and then from the CSV input, logging their names.
func (j *jobs) itemReaderJob(_ context.Context, params model.JobParameters) ([]port.Step, error) {
	sc, err := j.stepConfig(params)
	if err != nil {
		return nil, err
	}

	people := domain.NamedPeople(10)
	for i := range people {
		people[i].ID = int64(i + 1)
	}
	custom := itemstep.NewChunkStep[domain.Person, domain.Person](
		"customItemReaderStep",
		compitem.NewListItemReader(people),
		nil,
		namesWriter("personNameWriter"),
		sc.ChunkSize,
		j.d.Repo,
		nil,
	)

	csvReader, err := j.personCSVReader(params)
	if err != nil {
		return nil, err
	}
	csvStep := itemstep.NewChunkStep[domain.Person, domain.Person](
		"csvFileStep",
		csvReader,
		nil,
		namesWriter("personNameWriter"),
		sc.ChunkSize,
		j.d.Repo,
		nil,
	)
	return logging.Attach(custom, csvStep), nil
}
