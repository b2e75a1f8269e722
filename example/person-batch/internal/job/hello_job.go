package job

import (
	"context"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	tasklet "github.com/tigerroll/chunkbatch/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/chunkbatch/pkg/batch/listener/logging"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

type helloTasklet struct{}

func (helloTasklet) Execute(ctx context.Context, se *model.StepExecution) (port.RepeatStatus, error) {
	logger.Infof("hello chunkbatch")
	return port.RepeatStatusFinished, nil
}

func (j *jobs) helloJob(_ context.Context, _ model.JobParameters) ([]port.Step, error) {
	return logging.Attach(tasklet.NewTaskletStep("helloStep", helloTasklet{}, j.d.Repo, nil)), nil
}
