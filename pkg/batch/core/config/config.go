// Package config holds the application configuration of a chunkbatch program and
// the typed per-step settings decoded from job parameters.
package config

import (
	dbconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/config"
	storageconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/config"
)

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "TRACE"
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// BatchConfig holds configuration specific to the batch processing engine.
type BatchConfig struct {
	// JobName is the job run when none is given on the command line.
	JobName string `yaml:"job_name"`
	// ChunkSize is the default commit interval of chunk-oriented steps.
	ChunkSize int `yaml:"chunk_size"`
	// MetricsAsyncBufferSize is the queue size of the asynchronous metric recorder.
	MetricsAsyncBufferSize int `yaml:"metrics_async_buffer_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG", "TRACE").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig selects the backing implementations of framework services.
type InfrastructureConfig struct {
	// JobRepository is "inmemory" or "database". "database" requires Database to be configured.
	JobRepository string `yaml:"job_repository"`
	// AutoMigrate creates the job repository tables on start.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	// Exporter is "none", "prometheus", "otlp-http" or "otlp-grpc".
	Exporter string `yaml:"exporter"`
	// Endpoint is the OTLP collector endpoint, or the listen address of the
	// Prometheus scrape handler.
	Endpoint string `yaml:"endpoint"`
	// Insecure disables TLS towards the OTLP collector.
	Insecure bool `yaml:"insecure"`
	// IntervalSeconds is the OTLP push interval.
	IntervalSeconds int `yaml:"interval_seconds"`
	// Async records measurements from a background goroutine.
	Async bool `yaml:"async"`
}

// TracingConfig selects the tracing backend.
type TracingConfig struct {
	// Exporter is "none", "otlp-http" or "otlp-grpc".
	Exporter string `yaml:"exporter"`
	// Endpoint is the OTLP collector endpoint.
	Endpoint string `yaml:"endpoint"`
	// Insecure disables TLS towards the OTLP collector.
	Insecure bool `yaml:"insecure"`
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name"`
}

// ChunkbatchConfig holds all configuration under the "chunkbatch" top-level key.
type ChunkbatchConfig struct {
	Batch          BatchConfig                     `yaml:"batch"`
	System         SystemConfig                    `yaml:"system"`
	Infrastructure InfrastructureConfig            `yaml:"infrastructure"`
	Metrics        MetricsConfig                   `yaml:"metrics"`
	Tracing        TracingConfig                   `yaml:"tracing"`
	Database       dbconfig.DatabaseConfig         `yaml:"database"`
	Storage        storageconfig.DatasourcesConfig `yaml:"storage"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Chunkbatch ChunkbatchConfig `yaml:"chunkbatch"`
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Chunkbatch: ChunkbatchConfig{
			Batch: BatchConfig{
				ChunkSize:              DefaultChunkSize,
				MetricsAsyncBufferSize: 100,
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: string(LogLevelInfo)},
			},
			Infrastructure: InfrastructureConfig{
				JobRepository: "inmemory",
			},
			Metrics: MetricsConfig{
				Exporter:        "none",
				IntervalSeconds: 15,
			},
			Tracing: TracingConfig{
				Exporter:    "none",
				ServiceName: "chunkbatch",
			},
			Storage: storageconfig.DatasourcesConfig{},
		},
	}
}

// UsesDatabaseRepository reports whether job metadata goes to the configured database.
func (c *Config) UsesDatabaseRepository() bool {
	return c.Chunkbatch.Infrastructure.JobRepository == "database"
}
