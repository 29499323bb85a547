package pipeline

import (
	"go.uber.org/fx"
)

// Module provides the shared dataset catalog.
var Module = fx.Options(
	fx.Provide(NewDatasetCatalog),
)
