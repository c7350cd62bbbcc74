package execution

import (
	"context"

	"github.com/metinsenturk/dagster/pkg/configenv"
	"github.com/metinsenturk/dagster/pkg/dagerr"
	"github.com/metinsenturk/dagster/pkg/pipedef"
	"github.com/metinsenturk/dagster/pkg/plan"
	"github.com/metinsenturk/dagster/pkg/runtimectx"
	"github.com/metinsenturk/dagster/pkg/stepengine"
)

// OutputMarshalSpec names one output of one step to persist after a
// successful externalized run (§4.F, `outputs_to_marshal`).
type OutputMarshalSpec struct {
	Output string
	Path   string
}

// ExecuteExternalizedPlan implements the Externalized Plan Runner (§4.F):
// it validates the requested step keys and input/output names against the
// full plan before opening any context, then runs only the requested
// subset, seeding it from inputsToMarshal and persisting outputsToMarshal
// on success.
//
// inputsToMarshal is step_key -> input_name -> path. outputsToMarshal is
// step_key -> list of {output, path}.
func ExecuteExternalizedPlan(
	ctx context.Context,
	pipeline *pipedef.PipelineDefinition,
	stepKeys []string,
	inputsToMarshal map[string]map[string]string,
	outputsToMarshal map[string][]OutputMarshalSpec,
	rawEnv map[string]interface{},
	meta configenv.ExecutionMetadata,
	throwOnUserError bool,
) ([]plan.StepResult, error) {
	fullPlan, err := plan.BuildPlan(pipeline, nil)
	if err != nil {
		return nil, err
	}

	included := map[string]bool{}
	for _, key := range stepKeys {
		if _, ok := fullPlan.StepByKey(key); !ok {
			return nil, &dagerr.ExecutionStepNotFoundError{StepKey: key}
		}
		included[key] = true
	}

	for stepKey, inputs := range inputsToMarshal {
		step, ok := fullPlan.StepByKey(stepKey)
		if !ok {
			return nil, &dagerr.ExecutionStepNotFoundError{StepKey: stepKey}
		}
		for inputName := range inputs {
			if _, ok := step.InputNamed(inputName); !ok {
				return nil, &dagerr.UnmarshalInputNotFoundError{StepKey: stepKey, InputName: inputName}
			}
		}
	}

	for stepKey, specs := range outputsToMarshal {
		step, ok := fullPlan.StepByKey(stepKey)
		if !ok {
			return nil, &dagerr.ExecutionStepNotFoundError{StepKey: stepKey}
		}
		for _, spec := range specs {
			if _, ok := step.OutputNamed(spec.Output); !ok {
				return nil, &dagerr.MarshalOutputNotFoundError{StepKey: stepKey, OutputName: spec.Output}
			}
		}
	}

	env, err := configenv.CreateTypedEnvironment(pipeline, rawEnv)
	if err != nil {
		return nil, err
	}

	sess, err := runtimectx.Open(ctx, pipeline, env, meta)
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	rctx := sess.Context

	loadedInputs := map[string]map[string]interface{}{}
	for stepKey, inputs := range inputsToMarshal {
		step, _ := fullPlan.StepByKey(stepKey)
		for inputName, path := range inputs {
			inDef, _ := step.InputNamed(inputName)
			strategy := inDef.Type.Strategy
			value, readErr := rctx.Persistence().ReadValue(strategy, path)
			if readErr != nil {
				return nil, dagerr.NewUnmarshalInputError(stepKey, inputName, readErr)
			}
			if loadedInputs[stepKey] == nil {
				loadedInputs[stepKey] = map[string]interface{}{}
			}
			loadedInputs[stepKey][inputName] = value
		}
	}

	subsetPlan, err := plan.BuildPlan(pipeline, &plan.SubsetInfo{
		IncludedStepKeys: included,
		Inputs:           loadedInputs,
	})
	if err != nil {
		return nil, err
	}

	stepResults, runErr := stepengine.Run(ctx, rctx, subsetPlan, throwOnUserError)
	if runErr != nil {
		return stepResults, runErr
	}

	for _, result := range stepResults {
		if !result.Success || result.SuccessData == nil {
			continue
		}
		specs, ok := outputsToMarshal[result.Step.Key]
		if !ok {
			continue
		}
		for _, spec := range specs {
			if spec.Output != result.SuccessData.OutputName {
				continue
			}
			outDef, _ := result.Step.OutputNamed(spec.Output)
			if writeErr := rctx.Persistence().WriteValue(outDef.Type.Strategy, spec.Path, result.SuccessData.Value); writeErr != nil {
				return nil, dagerr.NewMarshalOutputError(result.Step.Key, spec.Output, writeErr)
			}
		}
	}

	return stepResults, nil
}
