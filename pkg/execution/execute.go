package execution

import (
	"context"
	"sync"

	"github.com/metinsenturk/dagster/pkg/configenv"
	"github.com/metinsenturk/dagster/pkg/dagerr"
	"github.com/metinsenturk/dagster/pkg/events"
	"github.com/metinsenturk/dagster/pkg/pipedef"
	"github.com/metinsenturk/dagster/pkg/plan"
	"github.com/metinsenturk/dagster/pkg/runtimectx"
	"github.com/metinsenturk/dagster/pkg/stepengine"
)

// ExecutePipeline implements the synchronous Plan Driver variant (§4.E):
// open a scoped context, build and run the full plan, aggregate results,
// and tear the scope down before returning.
func ExecutePipeline(ctx context.Context, pipeline *pipedef.PipelineDefinition, rawEnv map[string]interface{}, throwOnUserError bool, meta configenv.ExecutionMetadata, solidSubset []string) (*PipelineExecutionResult, error) {
	runPipeline := pipeline
	if len(solidSubset) > 0 {
		sub, err := pipedef.BuildSubPipeline(pipeline, solidSubset)
		if err != nil {
			return nil, err
		}
		runPipeline = sub
	}

	env, err := configenv.CreateTypedEnvironment(runPipeline, rawEnv)
	if err != nil {
		return nil, err
	}

	sess, err := runtimectx.Open(ctx, runPipeline, env, meta)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	return runPlanDriver(ctx, runPipeline, sess, throwOnUserError)
}

// runPlanDriver is the inner routine shared by ExecutePipeline and
// ExecutePipelineIterator (§4.E): emit pipeline_start, build the plan,
// check the first-step invariant, run it, aggregate, and emit
// pipeline_success/pipeline_failure.
func runPlanDriver(ctx context.Context, pipeline *pipedef.PipelineDefinition, sess *runtimectx.Session, throwOnUserError bool) (*PipelineExecutionResult, error) {
	rctx := sess.Context
	rctx.Emit(events.Event{Kind: events.PipelineStart, RunID: rctx.RunID()})

	p, err := plan.BuildPlan(pipeline, nil)
	if err != nil {
		rctx.Emit(events.Event{Kind: events.PipelineFailure, RunID: rctx.RunID(), Message: err.Error()})
		return nil, err
	}

	if len(p.Steps) == 0 {
		rctx.Logger().Debugf("pipeline %q compiled to zero steps; no nodes to execute", pipeline.Name)
		rctx.Emit(events.Event{Kind: events.PipelineSuccess, RunID: rctx.RunID()})
		return &PipelineExecutionResult{Results: nil, Context: rctx, RunID: rctx.RunID()}, nil
	}

	if len(p.Steps[0].Inputs) != 0 {
		err := dagerr.NewInvariantViolation("first topologically ordered step %q has inputs; a source step must have none", p.Steps[0].Key)
		rctx.Emit(events.Event{Kind: events.PipelineFailure, RunID: rctx.RunID(), Message: err.Error()})
		return nil, err
	}

	stepResults, runErr := stepengine.Run(ctx, rctx, p, throwOnUserError)
	if runErr != nil {
		rctx.Emit(events.Event{Kind: events.PipelineFailure, RunID: rctx.RunID(), Message: runErr.Error()})
		return nil, runErr
	}

	solidResults, err := Aggregate(p, stepResults)
	if err != nil {
		rctx.Emit(events.Event{Kind: events.PipelineFailure, RunID: rctx.RunID(), Message: err.Error()})
		return nil, err
	}

	result := &PipelineExecutionResult{Results: solidResults, Context: rctx, RunID: rctx.RunID()}
	if result.Success() {
		rctx.Emit(events.Event{Kind: events.PipelineSuccess, RunID: rctx.RunID()})
	} else {
		rctx.Emit(events.Event{Kind: events.PipelineFailure, RunID: rctx.RunID()})
	}
	return result, nil
}

// ResultStream is the streaming Plan Driver variant's handle (§4.E
// execute_pipeline_iterator, §9 "iterator that keeps the scope open"):
// Results yields per-solid results once the run completes; the scoped
// context stays open until the caller fully drains Results or calls
// Close explicitly. Abandoning the stream — walking away without draining
// Results and without calling Close — leaks the background goroutine and
// the open scope; Close is safe to call, in a defer, regardless of how
// much of Results was consumed, and returns the run or teardown error.
type ResultStream struct {
	Results <-chan *SolidExecutionResult

	sess   *runtimectx.Session
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	runErr error
}

// Close abandons the run if it hasn't finished — cancelling the context
// the background goroutine runs under so it unblocks whether or not the
// caller ever drained Results — then waits for that goroutine to exit and
// releases the underlying scope. Safe to call multiple times, safe to
// call after the stream has already drained to completion on its own,
// and safe to call having read zero, some, or all of Results: it never
// depends on the caller having cancelled anything itself.
func (s *ResultStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	if closeErr := s.sess.Close(); closeErr != nil && s.runErr == nil {
		return closeErr
	}
	return s.runErr
}

// ExecutePipelineIterator implements the streaming Plan Driver variant
// (§4.E): it runs the same inner routine as ExecutePipeline in a
// background goroutine and hands per-solid results to the caller over a
// channel, deferring scope teardown until the stream is drained or
// explicitly closed. The inner routine runs the whole plan and aggregates
// its results before the first one is sent, so no result is delivered
// before every step has finished.
func ExecutePipelineIterator(ctx context.Context, pipeline *pipedef.PipelineDefinition, rawEnv map[string]interface{}, throwOnUserError bool, meta configenv.ExecutionMetadata, solidSubset []string) (*ResultStream, error) {
	runPipeline := pipeline
	if len(solidSubset) > 0 {
		sub, err := pipedef.BuildSubPipeline(pipeline, solidSubset)
		if err != nil {
			return nil, err
		}
		runPipeline = sub
	}

	env, err := configenv.CreateTypedEnvironment(runPipeline, rawEnv)
	if err != nil {
		return nil, err
	}

	sess, err := runtimectx.Open(ctx, runPipeline, env, meta)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	out := make(chan *SolidExecutionResult)
	done := make(chan struct{})
	stream := &ResultStream{Results: out, sess: sess, cancel: cancel, done: done}

	go func() {
		defer cancel()
		defer close(done)
		defer close(out)

		result, runErr := runPlanDriver(runCtx, runPipeline, sess, throwOnUserError)
		if runErr != nil {
			stream.runErr = runErr
		} else {
			for _, r := range result.Results {
				select {
				case out <- r:
				case <-runCtx.Done():
					// Either the caller cancelled ctx directly, or Close
					// abandoned the run on our behalf. Only the former is
					// reported, as the caller's own ctx error; Close then
					// releases the scope.
					if ctx.Err() != nil {
						stream.runErr = ctx.Err()
					}
					return
				}
			}
		}
		// Every result has been handed over (or the run failed before
		// producing any): release the scope now rather than waiting for
		// Close, which then finds nothing left to tear down.
		if closeErr := sess.Close(); closeErr != nil && stream.runErr == nil {
			stream.runErr = closeErr
		}
	}()

	return stream, nil
}
