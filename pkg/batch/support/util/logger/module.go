package logger

import "go.uber.org/fx"

// Module is an Fx module that installs the application logger as the Fx
// event logger.
var Module = fx.Options(
	fx.WithLogger(NewFxLoggerAdapter),
)
