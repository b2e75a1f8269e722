package job

import (
	"context"
	"fmt"

	compitem "github.com/tigerroll/chunkbatch/pkg/batch/component/item"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	itemstep "github.com/tigerroll/chunkbatch/pkg/batch/engine/step/item"
	tasklet "github.com/tigerroll/chunkbatch/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/chunkbatch/pkg/batch/listener/logging"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

func greetings() []string {
	items := make([]string, 100)
	for i := range items {
		items[i] = fmt.Sprintf("%d Hello", i)
	}
	return items
}

// windowTasklet pages through items by hand, size items per invocation. The step's
// RestartOffset is the cursor, so a restarted step continues where it stopped.
type windowTasklet struct {
	items []string
	size  int
}

func (t *windowTasklet) Execute(_ context.Context, se *model.StepExecution) (port.RepeatStatus, error) {
	from := se.RestartOffset
	if from >= len(t.items) {
		return port.RepeatStatusFinished, nil
	}
	to := min(from+t.size, len(t.items))
	logger.Infof("task item size : %d", to-from)
	se.ReadCount += to - from
	if to == len(t.items) {
		return port.RepeatStatusFinished, nil
	}
	return port.RepeatStatusContinuable, nil
}

// chunkProcessingJob does the same work twice: once as a hand-paged tasklet, once
// as a chunk step.
func (j *jobs) chunkProcessingJob(_ context.Context, params model.JobParameters) ([]port.Step, error) {
	sc, err := j.stepConfig(params)
	if err != nil {
		return nil, err
	}

	taskBase := tasklet.NewTaskletStep("taskBaseStep", &windowTasklet{items: greetings(), size: sc.ChunkSize}, j.d.Repo, nil)
	chunkBase := itemstep.NewChunkStep[string, string](
		"chunkBaseStep",
		compitem.NewListItemReader(greetings()),
		compitem.FunctionItemProcessor[string, string](func(_ context.Context, s string) (string, error) {
			return s + ", Spring Batch", nil
		}),
		chunkSizeWriter[string]("chunkItemSizeWriter"),
		sc.ChunkSize,
		j.d.Repo,
		nil,
	)
	return logging.Attach(taskBase, chunkBase), nil
}
