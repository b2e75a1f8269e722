package local

import (
	"go.uber.org/fx"

	storageAdapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/config"
)

// Module contributes the local Provider to the storage Resolver.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		func(cfg storageConfig.DatasourcesConfig) *Provider {
			return NewProvider(cfg["local"])
		},
		fx.As(new(storageAdapter.Provider)),
		fx.ResultTags(`group:"storage_providers"`),
	)),
)
