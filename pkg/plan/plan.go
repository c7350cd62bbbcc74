// Package plan implements the execution plan data model (§3) and the plan
// builder collaborator (create_execution_plan_core, §4.D/§4.F step 3):
// compiling a pipeline's solids into a topologically ordered list of
// fine-grained execution steps, optionally narrowed and input-seeded by a
// SubsetInfo at step granularity.
package plan

import (
	"fmt"

	"github.com/metinsenturk/dagster/pkg/pipedef"
	"github.com/metinsenturk/dagster/pkg/types"
)

type StepKind string

const (
	InputExpectation  StepKind = "INPUT_EXPECTATION"
	Transform         StepKind = "TRANSFORM"
	OutputExpectation StepKind = "OUTPUT_EXPECTATION"
)

// StepOutputRef names the step and output port an input is wired to
// within the same plan.
type StepOutputRef struct {
	StepKey    string
	OutputName string
}

// StepInput is one resolved input of an ExecutionStep: either wired to an
// upstream step's output, or pre-seeded (subset boundary, §4.F step 3).
type StepInput struct {
	Name     string
	Type     *types.RuntimeType
	Upstream *StepOutputRef
	Seed     interface{}
	HasSeed  bool
}

// StepOutput is one declared output port of an ExecutionStep.
type StepOutput struct {
	Name string
	Type *types.RuntimeType
}

// ExecutionStep is the finest granule of execution (§3): one of
// INPUT_EXPECTATION, TRANSFORM, or OUTPUT_EXPECTATION, bound to one solid.
type ExecutionStep struct {
	Key          string
	Kind         StepKind
	SolidName    string
	Solid        *pipedef.Solid
	Inputs       []StepInput
	Outputs      []StepOutput
	Expectations []pipedef.Expectation // set for *_EXPECTATION steps; all run against the single bound input/output
}

func (s *ExecutionStep) InputNamed(name string) (StepInput, bool) {
	for _, in := range s.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return StepInput{}, false
}

func (s *ExecutionStep) OutputNamed(name string) (StepOutput, bool) {
	for _, out := range s.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return StepOutput{}, false
}

// SuccessData is the payload of a successful TRANSFORM step result.
type SuccessData struct {
	OutputName string
	Value      interface{}
}

// FailureData carries the user error recovered from a failed step, per
// §7's UserError cause-preservation requirement.
type FailureData struct {
	DagsterError error
}

// StepResult is produced, in execution order, by the step engine (§3).
type StepResult struct {
	Step        *ExecutionStep
	Success     bool
	Kind        StepKind
	SuccessData *SuccessData
	FailureData *FailureData
}

// TransformKey, InputExpectationKey and OutputExpectationKey compute the
// step keys BuildPlan assigns, so other packages (the step engine,
// externalized plan runner) can address steps without duplicating the
// naming convention.
func TransformKey(solidName string) string { return solidName + ".transform" }
func InputExpectationKey(solidName, inputName string) string {
	return fmt.Sprintf("%s.input.%s.expectation", solidName, inputName)
}
func OutputExpectationKey(solidName, outputName string) string {
	return fmt.Sprintf("%s.output.%s.expectation", solidName, outputName)
}

func transformStepKey(solidName string) string { return TransformKey(solidName) }
func inputExpectationStepKey(solidName, inputName string) string {
	return InputExpectationKey(solidName, inputName)
}
func outputExpectationStepKey(solidName, outputName string) string {
	return OutputExpectationKey(solidName, outputName)
}

// SubsetInfo seeds the plan builder so excluded upstream steps are
// replaced by pre-supplied input values (§3, §4.F step 3).
type SubsetInfo struct {
	IncludedStepKeys map[string]bool
	Inputs           map[string]map[string]interface{}
}

// ExecutionPlan is a topologically ordered list of ExecutionSteps (§3).
type ExecutionPlan struct {
	Steps      []*ExecutionStep
	SolidOrder []string
	byKey      map[string]*ExecutionStep
	bySolid    map[string][]*ExecutionStep
}

func (p *ExecutionPlan) StepByKey(key string) (*ExecutionStep, bool) {
	s, ok := p.byKey[key]
	return s, ok
}

func (p *ExecutionPlan) StepsForSolid(name string) []*ExecutionStep {
	return p.bySolid[name]
}

// BuildPlan implements create_execution_plan_core (§4.D/§4.F step 3): it
// compiles every solid's declared inputs/outputs into INPUT_EXPECTATION,
// TRANSFORM, and OUTPUT_EXPECTATION steps in the pipeline's topological
// order, wiring each transform input to the producing step's output per
// the dependency structure. When subset is non-nil, only steps whose key
// is in subset.IncludedStepKeys survive; any input whose upstream step was
// elided is instead seeded from subset.Inputs, per invariant 5's step-level
// analogue.
func BuildPlan(pipeline *pipedef.PipelineDefinition, subset *SubsetInfo) (*ExecutionPlan, error) {
	order, err := pipeline.TopologicalSolidNames()
	if err != nil {
		return nil, err
	}

	plan := &ExecutionPlan{
		SolidOrder: order,
		byKey:      map[string]*ExecutionStep{},
		bySolid:    map[string][]*ExecutionStep{},
	}

	include := func(key string) bool {
		if subset == nil {
			return true
		}
		return subset.IncludedStepKeys[key]
	}
	seedFor := func(stepKey, inputName string) (interface{}, bool) {
		if subset == nil {
			return nil, false
		}
		v, ok := subset.Inputs[stepKey][inputName]
		return v, ok
	}

	add := func(step *ExecutionStep) {
		plan.Steps = append(plan.Steps, step)
		plan.byKey[step.Key] = step
		plan.bySolid[step.SolidName] = append(plan.bySolid[step.SolidName], step)
	}

	for _, solidName := range order {
		solid, _ := pipeline.SolidNamed(solidName)
		def := solid.Definition
		transformKey := transformStepKey(solidName)

		for _, inDef := range def.Inputs {
			if len(inDef.Expectations) == 0 {
				continue
			}
			key := inputExpectationStepKey(solidName, inDef.Name)
			if !include(key) {
				continue
			}
			add(&ExecutionStep{
				Key:          key,
				Kind:         InputExpectation,
				SolidName:    solidName,
				Solid:        solid,
				Inputs:       []StepInput{resolveInput(pipeline, plan, solidName, inDef.Name, inDef.Type, seedFor)},
				Expectations: append([]pipedef.Expectation(nil), inDef.Expectations...),
			})
		}

		if !include(transformKey) {
			continue
		}
		inputs := make([]StepInput, 0, len(def.Inputs))
		for _, inDef := range def.Inputs {
			inputs = append(inputs, resolveInput(pipeline, plan, solidName, inDef.Name, inDef.Type, seedFor))
		}
		outputs := make([]StepOutput, 0, len(def.Outputs))
		for _, outDef := range def.Outputs {
			outputs = append(outputs, StepOutput{Name: outDef.Name, Type: outDef.Type})
		}
		add(&ExecutionStep{
			Key:       transformKey,
			Kind:      Transform,
			SolidName: solidName,
			Solid:     solid,
			Inputs:    inputs,
			Outputs:   outputs,
		})

		for _, outDef := range def.Outputs {
			if len(outDef.Expectations) == 0 {
				continue
			}
			key := outputExpectationStepKey(solidName, outDef.Name)
			if !include(key) {
				continue
			}
			add(&ExecutionStep{
				Key:       key,
				Kind:      OutputExpectation,
				SolidName: solidName,
				Solid:     solid,
				Inputs: []StepInput{{
					Name:     outDef.Name,
					Type:     outDef.Type,
					Upstream: &StepOutputRef{StepKey: transformKey, OutputName: outDef.Name},
				}},
				Expectations: append([]pipedef.Expectation(nil), outDef.Expectations...),
			})
		}
	}

	return plan, nil
}

// resolveInput wires a solid's declared input to its producing step's
// output per the pipeline's dependency structure, falling back to a
// subset-seeded value when the producing step was elided or there is no
// upstream dependency at all.
func resolveInput(pipeline *pipedef.PipelineDefinition, plan *ExecutionPlan, solidName, inputName string, t *types.RuntimeType, seedFor func(string, string) (interface{}, bool)) StepInput {
	in := StepInput{Name: inputName, Type: t}
	transformKey := transformStepKey(solidName)

	if out, ok := pipeline.Deps[pipedef.InputHandle{SolidName: solidName, InputName: inputName}]; ok {
		upstreamKey := transformStepKey(out.SolidName)
		if _, stillInPlan := plan.byKey[upstreamKey]; stillInPlan {
			in.Upstream = &StepOutputRef{StepKey: upstreamKey, OutputName: out.OutputName}
			return in
		}
	}
	if v, ok := seedFor(transformKey, inputName); ok {
		in.Seed = v
		in.HasSeed = true
	}
	return in
}
