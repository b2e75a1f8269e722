// Package listener bundles the listener modules that attach to every registered job.
package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/chunkbatch/pkg/batch/listener/logging"
	"github.com/tigerroll/chunkbatch/pkg/batch/listener/notification"
)

// Module aggregates the listener modules.
var Module = fx.Options(
	logging.Module,
	notification.Module,
)
