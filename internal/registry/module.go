package registry

import (
	"go.uber.org/fx"
)

// Module provides the registry dataset and mapping providers.
var Module = fx.Options(
	fx.Provide(NewDatasetProvider),
	fx.Provide(NewMappingProvider),
)
