// Command person-batch runs the person batch jobs.
package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	port "github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	support "github.com/tigerroll/chunkbatch/pkg/batch/core/config/support"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// embeddedConfig is the application configuration. ${VAR} placeholders are expanded
// from the environment and the .env file.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

var envFilePath string

var rootCmd = &cobra.Command{
	Use:   "person-batch",
	Short: "Chunk-oriented person batch jobs",
	Long: `person-batch runs the person jobs on the chunkbatch engine.

Examples:
  person-batch jobs
  person-batch run savePersonJob --param allowDuplicate=true
  person-batch run chunkProcessingJob -p chunkSize=20`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Launch a job and wait for it to finish",
	Long: `Launch a job and wait for it to finish.

A launch whose parameters match a FAILED or STOPPED execution restarts it from the
last committed chunk. SIGINT and SIGTERM stop the job at the next chunk boundary.`,
	Args: cobra.ExactArgs(1),
	RunE: runJob,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the registered jobs",
	Args:  cobra.NoArgs,
	RunE:  listJobs,
}

func init() {
	defaultEnv := os.Getenv("ENV_FILE_PATH")
	if defaultEnv == "" {
		defaultEnv = ".env"
	}
	rootCmd.PersistentFlags().StringVar(&envFilePath, "env-file", defaultEnv, "path of the .env file")
	runCmd.Flags().StringArrayP("param", "p", nil, "job parameter as key=value (repeatable)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(jobsCmd)
}

func newApp(populate ...interface{}) (*fx.App, error) {
	options, err := GetApplicationOptions(envFilePath, embeddedConfig)
	if err != nil {
		return nil, err
	}
	app := fx.New(append(options, fx.Populate(populate...))...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]
	pairs, err := cmd.Flags().GetStringArray("param")
	if err != nil {
		return err
	}
	params, err := ParseJobParameters(pairs)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Warnf("Received signal '%v'. Attempting to stop the job...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var launcher port.JobLauncher
	app, err := newApp(&launcher)
	if err != nil {
		return err
	}
	startCtx, startCancel := context.WithTimeout(ctx, app.StartTimeout())
	defer startCancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), app.StopTimeout())
		defer stopCancel()
		if err := app.Stop(stopCtx); err != nil {
			logger.Errorf("Failed to stop application: %v", err)
		}
	}()

	jobExecution, err := launcher.Launch(ctx, jobName, params)
	if err != nil {
		return err
	}
	logger.Infof("Job '%s' (Execution ID: %s) finished with status: %s, ExitStatus: %s",
		jobName, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
	if jobExecution.Status != model.BatchStatusCompleted {
		return fmt.Errorf("job '%s' ended %s", jobName, jobExecution.Status)
	}
	return nil
}

func listJobs(cmd *cobra.Command, _ []string) error {
	var registry *support.JobRegistry
	if _, err := newApp(&registry); err != nil {
		return err
	}
	for _, name := range registry.JobNames() {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
