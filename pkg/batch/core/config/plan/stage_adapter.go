package plan

import (
	"fmt"
	"reflect"

	coreAdapter "github.com/tigerroll/hourglass/pkg/batch/core/adapter"
	core "github.com/tigerroll/hourglass/pkg/batch/core/application/port"
	config "github.com/tigerroll/hourglass/pkg/batch/core/config"
	model "github.com/tigerroll/hourglass/pkg/batch/core/domain/model"
	step_factory "github.com/tigerroll/hourglass/pkg/batch/engine/step/factory"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// ConvertPlanToPipeline converts a plan Job definition into a model.PlanDefinition
// of executable steps, preserving the declared stage order.
//
// Each stage's tasklet reference is resolved against the registered component
// builders, and stage-level listeners are built and attached to the step.
//
// Parameters:
//
//	jobDef: The plan Job definition to convert.
//	componentBuilders: A map of builders for tasklet components referenced by stages.
//	cfg: The overall application configuration.
//	stepFactory: The factory for creating core step instances.
//	dbResolver: The resource connection resolver handed to component builders.
//	stepListenerBuilders: A map of builders for step execution listeners.
//
// Returns:
//
//	A pointer to the converted model.PlanDefinition and an error if the conversion fails.
func ConvertPlanToPipeline(
	jobDef Job,
	componentBuilders map[string]ComponentBuilder,
	cfg *config.Config,
	stepFactory step_factory.StepFactory,
	dbResolver coreAdapter.ResourceConnectionResolver,
	stepListenerBuilders map[string]StepExecutionListenerBuilder,
) (*model.PlanDefinition, error) {
	module := "plan_converter"
	planDef := model.NewPlanDefinition()

	for _, stage := range jobDef.Stages {
		var stepExecListeners []core.StepExecutionListener
		for _, listenerRef := range stage.Listeners {
			builder, found := stepListenerBuilders[listenerRef.Ref]
			if !found {
				return nil, exception.NewBatchErrorf(module, "StepExecutionListener builder '%s' is not registered", listenerRef.Ref)
			}
			listenerInstance, err := builder(cfg, listenerRef.Properties)
			if err != nil {
				return nil, exception.NewBatchError(module, fmt.Sprintf("Failed to build StepExecutionListener '%s'", listenerRef.Ref), err)
			}
			stepExecListeners = append(stepExecListeners, listenerInstance)
		}

		taskletBuilder, ok := componentBuilders[stage.Tasklet.Ref]
		if !ok {
			return nil, exception.NewBatchErrorf(module, "Tasklet component builder '%s' not found", stage.Tasklet.Ref)
		}
		taskletInstance, err := taskletBuilder(cfg, dbResolver, stage.Tasklet.Properties)
		if err != nil {
			return nil, exception.NewBatchError(module, fmt.Sprintf("Failed to build Tasklet '%s'", stage.Tasklet.Ref), err)
		}
		t, isTasklet := taskletInstance.(core.Tasklet)
		if !isTasklet {
			return nil, exception.NewBatchErrorf(module, "Tasklet '%s' is of incorrect type (Expected: core.Tasklet, Actual: %s)", stage.Tasklet.Ref, reflect.TypeOf(taskletInstance))
		}

		coreStep, err := stepFactory.CreateTaskletStep(stage.ID, t, stepExecListeners)
		if err != nil {
			return nil, exception.NewBatchError(module, fmt.Sprintf("Failed to build stage '%s'", stage.ID), err)
		}

		if err := planDef.AddStage(stage.ID, coreStep); err != nil {
			return nil, exception.NewBatchError(module, fmt.Sprintf("Failed to add stage '%s' to pipeline", stage.ID), err)
		}
		logger.Debugf("Stage '%s' (tasklet '%s') built.", stage.ID, stage.Tasklet.Ref)
	}

	return planDef, nil
}
