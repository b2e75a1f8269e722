// Package job registers the person-batch jobs with the JobRegistry.
//
// Every factory builds fresh readers, processors and writers from the launch
// parameters, so two launches never share item state. Jobs that touch the person
// table are only registered when a database is configured.
package job

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	storage "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	config "github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	support "github.com/tigerroll/chunkbatch/pkg/batch/core/config/support"
	repository "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/chunkbatch/pkg/batch/core/tx"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// Job names.
const (
	HelloJobName           = "helloJob"
	ChunkProcessingJobName = "chunkProcessingJob"
	ItemReaderJobName      = "itemReaderJob"
	ItemWriterJobName      = "itemWriterJob"
	SavePersonJobName      = "savePersonJob"
	PersonExportJobName    = "personExportJob"
)

// Deps are the framework services the jobs are built from.
type Deps struct {
	fx.In
	Registry *support.JobRegistry
	Repo     repository.JobRepository
	Config   *config.Config
	Resolver *storage.Resolver

	// DB and TxManager are absent when no database is configured.
	DB        *gorm.DB              `optional:"true"`
	TxManager tx.TransactionManager `optional:"true"`

	RunID     port.JobParametersIncrementer `name:"runIdIncrementer"`
	Timestamp port.JobParametersIncrementer `name:"timestampIncrementer"`
}

type jobs struct {
	d Deps
}

// Register adds every job the configuration supports to d.Registry.
func Register(d Deps) error {
	j := &jobs{d: d}
	withRunID := support.WithIncrementer(d.RunID)

	if err := d.Registry.Register(HelloJobName, j.helloJob, withRunID); err != nil {
		return err
	}
	if err := d.Registry.Register(ChunkProcessingJobName, j.chunkProcessingJob, withRunID); err != nil {
		return err
	}
	if err := d.Registry.Register(ItemReaderJobName, j.itemReaderJob, withRunID); err != nil {
		return err
	}
	if err := d.Registry.Register(ItemWriterJobName, j.itemWriterJob, withRunID); err != nil {
		return err
	}
	if d.DB == nil {
		logger.Infof("No database configured; %s and %s are not available.", SavePersonJobName, PersonExportJobName)
		return nil
	}
	if err := d.Registry.Register(SavePersonJobName, j.savePersonJob, withRunID); err != nil {
		return err
	}
	return d.Registry.Register(PersonExportJobName, j.personExportJob, support.WithIncrementer(d.Timestamp))
}

// Module registers the jobs on application start-up.
var Module = fx.Options(
	fx.Invoke(Register),
)
