// Package stepengine is the step-level execution engine collaborator
// (execute_plan_core, §4.E/§4.F step 4): it runs each ExecutionStep of a
// compiled plan against a RuntimeExecutionContext-shaped TransformContext,
// in dependency order, producing a StepResult per step (per output, for
// TRANSFORM steps with more than one declared output).
package stepengine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/metinsenturk/dagster/pkg/dagerr"
	"github.com/metinsenturk/dagster/pkg/events"
	"github.com/metinsenturk/dagster/pkg/pipedef"
	"github.com/metinsenturk/dagster/pkg/plan"
)

// maxConcurrentSteps bounds how many independent steps of one dependency
// level run at once, mirroring the teacher's worker-pool executor.
const maxConcurrentSteps = 4

// eventEmitter is satisfied by RuntimeExecutionContext without this
// package importing pkg/runtimectx; Run depends only on the
// pipedef.TransformContext facade. A tctx that doesn't implement it
// simply emits no step-level events.
type eventEmitter interface {
	Emit(events.Event)
}

func emitStep(tctx pipedef.TransformContext, kind events.Kind, step *plan.ExecutionStep, message string) {
	e, ok := tctx.(eventEmitter)
	if !ok {
		return
	}
	e.Emit(events.Event{
		Kind:    kind,
		RunID:   tctx.RunID(),
		Message: message,
		Payload: map[string]interface{}{"step": step.Key, "kind": string(step.Kind)},
	})
}

// Run implements execute_plan_core: it walks p's steps in dependency
// levels (steps within a level share no dependency edge and may run
// concurrently; levels themselves run strictly in order), invoking each
// step's transform or expectations against tctx. Under throwOnUserError,
// the first user-step failure aborts the run and its *dagerr.UserError is
// returned; otherwise the failure is recorded in the step's StepResult and
// every downstream step that consumes one of its outputs is skipped with
// a cascaded failure result of its own, per §4.E's throw-on-user-error
// semantics and §5's dependency-invalidation note.
func Run(ctx context.Context, tctx pipedef.TransformContext, p *plan.ExecutionPlan, throwOnUserError bool) ([]plan.StepResult, error) {
	levels := levelSteps(p)

	var mu sync.Mutex
	produced := map[string]map[string]interface{}{} // stepKey -> outputName -> value
	failed := map[string]bool{}                      // stepKey -> failed (directly or by cascade)
	var results []plan.StepResult

	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxConcurrentSteps)
		levelResults := make([][]plan.StepResult, len(level))

		for i, step := range level {
			i, step := i, step
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return nil
				default:
				}

				mu.Lock()
				upstreamFailed := anyUpstreamFailed(step, p, failed)
				mu.Unlock()

				if upstreamFailed {
					levelResults[i] = []plan.StepResult{{
						Step:    step,
						Success: false,
						Kind:    step.Kind,
						FailureData: &plan.FailureData{
							DagsterError: fmt.Errorf("step %q skipped: an upstream step failed", step.Key),
						},
					}}
					mu.Lock()
					failed[step.Key] = true
					mu.Unlock()
					return nil
				}

				mu.Lock()
				inputs, err := resolveInputs(step, produced)
				mu.Unlock()
				if err != nil {
					return err
				}

				emitStep(tctx, events.StepStart, step, "")
				stepResults, outputs := runStep(tctx, step, inputs)

				mu.Lock()
				if outputs != nil {
					produced[step.Key] = outputs
				}
				stepFailed := false
				for _, r := range stepResults {
					if !r.Success {
						stepFailed = true
					}
				}
				if stepFailed {
					failed[step.Key] = true
				}
				mu.Unlock()

				if stepFailed {
					emitStep(tctx, events.StepFailure, step, stepResults[len(stepResults)-1].FailureData.DagsterError.Error())
				} else {
					emitStep(tctx, events.StepSuccess, step, "")
				}

				levelResults[i] = stepResults

				if stepFailed && throwOnUserError {
					return stepResults[len(stepResults)-1].FailureData.DagsterError
				}
				return nil
			})
		}

		groupErr := g.Wait()
		for _, rs := range levelResults {
			results = append(results, rs...)
		}
		if groupErr != nil {
			return results, groupErr
		}
	}

	return results, nil
}

func anyUpstreamFailed(step *plan.ExecutionStep, p *plan.ExecutionPlan, failed map[string]bool) bool {
	for _, dep := range dependencyKeys(step, p) {
		if failed[dep] {
			return true
		}
	}
	return false
}

// resolveInputs builds the name->value map passed to a step's transform
// or expectation function, from wired upstream outputs or subset-seeded
// values.
func resolveInputs(step *plan.ExecutionStep, produced map[string]map[string]interface{}) (map[string]interface{}, error) {
	inputs := make(map[string]interface{}, len(step.Inputs))
	for _, in := range step.Inputs {
		switch {
		case in.Upstream != nil:
			outs, ok := produced[in.Upstream.StepKey]
			if !ok {
				return nil, fmt.Errorf("step %q: upstream step %q has no recorded output", step.Key, in.Upstream.StepKey)
			}
			v, ok := outs[in.Upstream.OutputName]
			if !ok {
				return nil, fmt.Errorf("step %q: upstream step %q never produced output %q", step.Key, in.Upstream.StepKey, in.Upstream.OutputName)
			}
			inputs[in.Name] = v
		case in.HasSeed:
			inputs[in.Name] = in.Seed
		default:
			inputs[in.Name] = nil
		}
	}
	return inputs, nil
}

// runStep invokes one step's user code. TRANSFORM steps return one
// StepResult per produced output on success, or a single failed result on
// error; *_EXPECTATION steps run every bound expectation in order and
// return a single result.
func runStep(tctx pipedef.TransformContext, step *plan.ExecutionStep, inputs map[string]interface{}) ([]plan.StepResult, map[string]interface{}) {
	switch step.Kind {
	case plan.Transform:
		outputs, err := step.Solid.Definition.Transform(tctx, inputs)
		if err != nil {
			return []plan.StepResult{{
				Step:        step,
				Success:     false,
				Kind:        step.Kind,
				FailureData: &plan.FailureData{DagsterError: dagerr.NewUserError(step.Key, err)},
			}}, nil
		}
		if len(outputs) == 0 {
			return []plan.StepResult{{Step: step, Success: true, Kind: step.Kind}}, outputs
		}
		names := make([]string, 0, len(outputs))
		for name := range outputs {
			names = append(names, name)
		}
		sort.Strings(names)
		results := make([]plan.StepResult, 0, len(names))
		for _, name := range names {
			results = append(results, plan.StepResult{
				Step:        step,
				Success:     true,
				Kind:        step.Kind,
				SuccessData: &plan.SuccessData{OutputName: name, Value: outputs[name]},
			})
		}
		return results, outputs

	case plan.InputExpectation, plan.OutputExpectation:
		var value interface{}
		if len(step.Inputs) > 0 {
			value = inputs[step.Inputs[0].Name]
		}
		for _, exp := range step.Expectations {
			if err := exp.Fn(tctx, value); err != nil {
				return []plan.StepResult{{
					Step:        step,
					Success:     false,
					Kind:        step.Kind,
					FailureData: &plan.FailureData{DagsterError: dagerr.NewUserError(step.Key, err)},
				}}, nil
			}
		}
		return []plan.StepResult{{Step: step, Success: true, Kind: step.Kind}}, nil

	default:
		return []plan.StepResult{{
			Step:        step,
			Success:     false,
			Kind:        step.Kind,
			FailureData: &plan.FailureData{DagsterError: fmt.Errorf("step %q: unknown step kind %q", step.Key, step.Kind)},
		}}, nil
	}
}

// dependencyKeys returns the step keys step must wait on: every upstream
// step feeding one of its inputs, plus — for a TRANSFORM step — its own
// solid's input-expectation steps, when present in the plan (they must
// run, and pass, first).
func dependencyKeys(step *plan.ExecutionStep, p *plan.ExecutionPlan) []string {
	var deps []string
	for _, in := range step.Inputs {
		if in.Upstream != nil {
			deps = append(deps, in.Upstream.StepKey)
		}
	}
	if step.Kind == plan.Transform {
		for _, in := range step.Inputs {
			key := plan.InputExpectationKey(step.SolidName, in.Name)
			if _, ok := p.StepByKey(key); ok {
				deps = append(deps, key)
			}
		}
	}
	return deps
}

// levelSteps groups p.Steps into dependency levels: level 0 has no
// dependencies, level N depends only on steps in levels < N. p.Steps is
// already topologically ordered by BuildPlan, so a single forward pass
// suffices — every dependency of a step precedes it in iteration order.
func levelSteps(p *plan.ExecutionPlan) [][]*plan.ExecutionStep {
	level := make(map[string]int, len(p.Steps))
	var levels [][]*plan.ExecutionStep

	for _, step := range p.Steps {
		lvl := 0
		for _, dep := range dependencyKeys(step, p) {
			if l, ok := level[dep]; ok && l+1 > lvl {
				lvl = l + 1
			}
		}
		level[step.Key] = lvl
		for len(levels) <= lvl {
			levels = append(levels, nil)
		}
		levels[lvl] = append(levels[lvl], step)
	}
	return levels
}
