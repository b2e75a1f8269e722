package config

import (
	"go.uber.org/fx"

	dbconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/database/config"
	storageconfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/config"
)

// NewLoggingConfigProvider extracts *LoggingConfig from *Config.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Chunkbatch.System.Logging
}

// NewDatabaseConfigProvider extracts the database settings for the gorm adapter.
func NewDatabaseConfigProvider(cfg *Config) dbconfig.DatabaseConfig {
	return cfg.Chunkbatch.Database
}

// NewDatasourcesConfigProvider extracts the storage settings for the resource resolver.
func NewDatasourcesConfigProvider(cfg *Config) storageconfig.DatasourcesConfig {
	return cfg.Chunkbatch.Storage
}

// Module provides *Config and the configuration slices other modules depend on.
// The application supplies EmbeddedConfig and, optionally, the named "envFilePath".
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(NewDatabaseConfigProvider),
	fx.Provide(NewDatasourcesConfigProvider),
	fx.Provide(fx.Annotate(
		NewOsEnvironmentExpander,
		fx.As(new(EnvironmentExpander)),
	)),
)
