package support

import (
	"go.uber.org/fx"
)

// Module provides the JobRegistry. Applications register their jobs from an fx.Invoke.
var Module = fx.Options(
	fx.Provide(NewJobRegistry),
)
