package job

import (
	"context"

	"github.com/tigerroll/chunkbatch/example/person-batch/internal/domain"
	compitem "github.com/tigerroll/chunkbatch/pkg/batch/component/item"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/processor/dedup"
	"github.com/tigerroll/chunkbatch/pkg/batch/component/step/writer"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	itemstep "github.com/tigerroll/chunkbatch/pkg/batch/engine/step/item"
	"github.com/tigerroll/chunkbatch/pkg/batch/listener/logging"
)

var personNames = []string{"이경원", "홍길동", "아무개"}

// savePeople returns 100 people sharing len(personNames) names.
func savePeople() []*domain.Person {
	out := make([]*domain.Person, 100)
	for i := range out {
		out[i] = &domain.Person{
			Name:    personNames[i%len(personNames)],
			Age:     "test age",
			Address: "test address",
		}
	}
	return out
}

// savePersonJob inserts people, dropping those whose name was already seen in the run
// unless allowDuplicate is set.
func (j *jobs) savePersonJob(_ context.Context, params model.JobParameters) ([]port.Step, error) {
	sc, err := j.stepConfig(params)
	if err != nil {
		return nil, err
	}
	migrate, err := j.migratePersonStep()
	if err != nil {
		return nil, err
	}

	validator := dedup.NewDuplicateSuppressingProcessor[domain.Person](func(p *domain.Person) string { return p.Name }, sc.AllowDuplicate)
	save := itemstep.NewChunkStep[*domain.Person, *domain.Person](
		"savePersonStep",
		compitem.NewListItemReader(savePeople()),
		validator,
		writer.NewGormItemWriter[*domain.Person]("personWriter", writer.GormWriterConfig{}),
		sc.ChunkSize,
		j.d.Repo,
		j.d.TxManager,
	)
	save.RegisterStepExecutionListener(validator)
	return logging.Attach(migrate, save), nil
}
