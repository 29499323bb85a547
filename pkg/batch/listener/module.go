package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/hourglass/pkg/batch/listener/logging"
	"github.com/tigerroll/hourglass/pkg/batch/listener/metrics"
	"github.com/tigerroll/hourglass/pkg/batch/listener/tracing"
)

// Module aggregates all listener modules of the batch framework.
var Module = fx.Options(
	logging.Module,
	metrics.Module,
	tracing.Module,
)
