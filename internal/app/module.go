package app

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	plan "github.com/tigerroll/hourglass/pkg/batch/core/config/plan"
	support "github.com/tigerroll/hourglass/pkg/batch/core/config/support"
	batchlistener "github.com/tigerroll/hourglass/pkg/batch/listener"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// NewJobCompletionSignalerBuilder creates a builder for the listener that
// closes the job-done channel when the job finishes.
func NewJobCompletionSignalerBuilder(jobDoneChan chan struct{}) plan.JobExecutionListenerBuilder {
	return func(
		_ *config.Config,
		_ map[string]string,
	) (port.JobExecutionListener, error) {
		return batchlistener.NewJobCompletionSignaler(jobDoneChan), nil
	}
}

// SignalerBuilderParams receives the named signaler builder from Fx.
type SignalerBuilderParams struct {
	fx.In
	Builder plan.JobExecutionListenerBuilder `name:"jobCompletionSignaler"`
}

// RegisterJobCompletionSignaler registers the signaler builder with the
// JobFactory so the plan definition can reference it by name.
func RegisterJobCompletionSignaler(jf *support.JobFactory, p SignalerBuilderParams) {
	jf.RegisterJobListenerBuilder("jobCompletionSignaler", p.Builder)
	logger.Debugf("Job completion signaler registered with JobFactory.")
}

// Module provides the application-level listener wiring.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewJobCompletionSignalerBuilder, fx.ResultTags(`name:"jobCompletionSignaler"`))),
	fx.Invoke(RegisterJobCompletionSignaler),
)
