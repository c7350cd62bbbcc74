// Package execution is the Plan Driver, Externalized Plan Runner, and
// Result Aggregator (§4.E–§4.G): the public entry operations that open a
// scoped context, build and run a plan, and project the step-result
// stream into per-solid and whole-pipeline results.
package execution

import (
	"github.com/metinsenturk/dagster/pkg/dagerr"
	"github.com/metinsenturk/dagster/pkg/pipedef"
	"github.com/metinsenturk/dagster/pkg/plan"
	"github.com/metinsenturk/dagster/pkg/runtimectx"
)

// SolidExecutionResult aggregates every step result belonging to one
// solid, partitioned by step kind (§3, §4.G).
type SolidExecutionResult struct {
	SolidName          string
	Solid              *pipedef.Solid
	InputExpectations  []plan.StepResult
	Transforms         []plan.StepResult
	OutputExpectations []plan.StepResult
}

// Success is the conjunction of every buffered result for this solid.
func (r *SolidExecutionResult) Success() bool {
	for _, group := range [][]plan.StepResult{r.InputExpectations, r.Transforms, r.OutputExpectations} {
		for _, res := range group {
			if !res.Success {
				return false
			}
		}
	}
	return true
}

// TransformedValues returns output-name -> value for every output this
// solid's transform produced, defined iff the solid succeeded and at
// least one transform step ran.
func (r *SolidExecutionResult) TransformedValues() map[string]interface{} {
	if !r.Success() || len(r.Transforms) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(r.Transforms))
	for _, t := range r.Transforms {
		if t.SuccessData != nil {
			values[t.SuccessData.OutputName] = t.SuccessData.Value
		}
	}
	return values
}

// TransformedValue returns the value produced for a single declared
// output. It fails with an invariant violation if the solid's definition
// does not declare that output at all; it returns (nil, nil) — no value,
// no error — if the output is declared but the solid did not succeed.
func (r *SolidExecutionResult) TransformedValue(name string) (interface{}, error) {
	if _, ok := r.Solid.Definition.OutputDef(name); !ok {
		return nil, dagerr.NewInvariantViolation("solid %q declares no output %q", r.SolidName, name)
	}
	if !r.Success() {
		return nil, nil
	}
	for _, t := range r.Transforms {
		if t.SuccessData != nil && t.SuccessData.OutputName == name {
			return t.SuccessData.Value, nil
		}
	}
	return nil, nil
}

// PipelineExecutionResult is the ordered list of SolidExecutionResults,
// the context used, and the run id (§3).
type PipelineExecutionResult struct {
	Results []*SolidExecutionResult
	Context *runtimectx.RuntimeExecutionContext
	RunID   string
}

func (r *PipelineExecutionResult) Success() bool {
	for _, res := range r.Results {
		if !res.Success() {
			return false
		}
	}
	return true
}

func (r *PipelineExecutionResult) ResultForSolid(name string) (*SolidExecutionResult, bool) {
	for _, res := range r.Results {
		if res.SolidName == name {
			return res, true
		}
	}
	return nil, false
}

// Aggregate implements the Result Aggregator (§4.G): it buffers a flat
// stream of StepResults by solid name (the stream may interleave solids,
// invariant 3) then emits a SolidExecutionResult per solid that
// accumulated any results, in the plan's topological solid order.
func Aggregate(p *plan.ExecutionPlan, stream []plan.StepResult) ([]*SolidExecutionResult, error) {
	bySolid := map[string][]plan.StepResult{}
	for _, r := range stream {
		bySolid[r.Step.SolidName] = append(bySolid[r.Step.SolidName], r)
	}

	var out []*SolidExecutionResult
	for _, solidName := range p.SolidOrder {
		results, ok := bySolid[solidName]
		if !ok {
			continue
		}
		agg := &SolidExecutionResult{SolidName: solidName}
		for _, r := range results {
			if r.Step.SolidName != solidName {
				return nil, dagerr.NewInvariantViolation("step result for %q found in solid %q's bucket", r.Step.SolidName, solidName)
			}
			agg.Solid = r.Step.Solid
			switch r.Kind {
			case plan.InputExpectation:
				agg.InputExpectations = append(agg.InputExpectations, r)
			case plan.Transform:
				agg.Transforms = append(agg.Transforms, r)
			case plan.OutputExpectation:
				agg.OutputExpectations = append(agg.OutputExpectations, r)
			}
		}
		out = append(out, agg)
	}
	return out, nil
}
