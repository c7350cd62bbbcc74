package execution

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/metinsenturk/dagster/pkg/configenv"
	"github.com/metinsenturk/dagster/pkg/examples"
)

func TestExecutePipelineRunsETLToCompletion(t *testing.T) {
	pipeline, err := examples.NewETLPipeline()
	if err != nil {
		t.Fatalf("NewETLPipeline: %v", err)
	}

	result, err := ExecutePipeline(context.Background(), pipeline, nil, true, configenv.ExecutionMetadata{}, nil)
	if err != nil {
		t.Fatalf("ExecutePipeline: %v", err)
	}
	if !result.Success() {
		t.Fatal("expected the pipeline to succeed")
	}

	loadResult, ok := result.ResultForSolid("load")
	if !ok {
		t.Fatal("no result recorded for solid \"load\"")
	}
	sum, err := loadResult.TransformedValue("result")
	if err != nil {
		t.Fatalf("TransformedValue: %v", err)
	}
	// extract seeds 1..5, transform doubles, load sums: 2+4+6+8+10 = 30.
	if sum != 30.0 {
		t.Fatalf("got sum %v, want 30", sum)
	}
}

func TestExecutePipelineSubsetRejectsUnseededUpstream(t *testing.T) {
	pipeline, err := examples.NewETLPipeline()
	if err != nil {
		t.Fatalf("NewETLPipeline: %v", err)
	}

	_, err = ExecutePipeline(context.Background(), pipeline, nil, true, configenv.ExecutionMetadata{}, []string{"transform", "load"})
	if err == nil {
		t.Fatal("expected an error: transform's \"raw\" input has no wiring and no seed when extract is excluded")
	}
}

func TestExecutePipelineRejectsOverlappingTags(t *testing.T) {
	pipeline, err := examples.NewETLPipeline()
	if err != nil {
		t.Fatalf("NewETLPipeline: %v", err)
	}

	meta := configenv.ExecutionMetadata{Tags: map[string]string{"stage": "override"}}
	if _, err := ExecutePipeline(context.Background(), pipeline, nil, true, meta, nil); err == nil {
		t.Fatal("expected an invariant violation: \"stage\" is set by both the context and execution metadata")
	}
}

func TestExecutePipelineIteratorStreamsAllSolidResults(t *testing.T) {
	pipeline, err := examples.NewETLPipeline()
	if err != nil {
		t.Fatalf("NewETLPipeline: %v", err)
	}

	stream, err := ExecutePipelineIterator(context.Background(), pipeline, nil, true, configenv.ExecutionMetadata{}, nil)
	if err != nil {
		t.Fatalf("ExecutePipelineIterator: %v", err)
	}

	var names []string
	for r := range stream.Results {
		names = append(names, r.SolidName)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := []string{"extract", "transform", "load"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestResultStreamCloseDoesNotDeadlockOnPartialDrain(t *testing.T) {
	pipeline, err := examples.NewETLPipeline()
	if err != nil {
		t.Fatalf("NewETLPipeline: %v", err)
	}

	stream, err := ExecutePipelineIterator(context.Background(), pipeline, nil, true, configenv.ExecutionMetadata{}, nil)
	if err != nil {
		t.Fatalf("ExecutePipelineIterator: %v", err)
	}

	// Abandon the stream after a single item instead of draining it, and
	// without separately cancelling the context passed to
	// ExecutePipelineIterator. Close must still return: it cancels the
	// run on the caller's behalf rather than blocking forever on the
	// background goroutine's blocked channel send.
	<-stream.Results

	closed := make(chan error, 1)
	go func() { closed <- stream.Close() }()

	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close deadlocked after the stream was abandoned mid-drain")
	}
}

func TestExecuteExternalizedPlanRejectsUnknownStepKey(t *testing.T) {
	pipeline, err := examples.NewETLPipeline()
	if err != nil {
		t.Fatalf("NewETLPipeline: %v", err)
	}

	_, err = ExecuteExternalizedPlan(context.Background(), pipeline, []string{"ghost.transform"}, nil, nil, nil, configenv.ExecutionMetadata{}, true)
	if err == nil {
		t.Fatal("expected ExecutionStepNotFoundError for an unknown step key")
	}
}

func TestExecuteExternalizedPlanRoundTripsMarshalledBoundaryValues(t *testing.T) {
	pipeline, err := examples.NewETLPipeline()
	if err != nil {
		t.Fatalf("NewETLPipeline: %v", err)
	}

	dir := t.TempDir()
	rawPath := filepath.Join(dir, "raw.json")
	resultPath := filepath.Join(dir, "result.json")

	// Prime with a full run through the normal entry point, then write
	// "raw" to disk with an externalized run of extract alone that
	// marshals its output, the way a caller staging a later stage would.
	full, err := ExecutePipeline(context.Background(), pipeline, nil, true, configenv.ExecutionMetadata{}, nil)
	if err != nil {
		t.Fatalf("priming ExecutePipeline: %v", err)
	}
	extractResult, ok := full.ResultForSolid("extract")
	if !ok {
		t.Fatal("no result for solid \"extract\"")
	}
	rawValue, err := extractResult.TransformedValue("raw")
	if err != nil {
		t.Fatalf("TransformedValue: %v", err)
	}

	writePipeline, err := examples.NewETLPipeline()
	if err != nil {
		t.Fatalf("NewETLPipeline: %v", err)
	}
	_, err = ExecuteExternalizedPlan(
		context.Background(),
		writePipeline,
		[]string{"extract.transform"},
		nil,
		map[string][]OutputMarshalSpec{"extract.transform": {{Output: "raw", Path: rawPath}}},
		nil,
		configenv.ExecutionMetadata{},
		true,
	)
	if err != nil {
		t.Fatalf("ExecuteExternalizedPlan (write raw): %v", err)
	}
	_ = rawValue

	readPipeline, err := examples.NewETLPipeline()
	if err != nil {
		t.Fatalf("NewETLPipeline: %v", err)
	}
	results, err := ExecuteExternalizedPlan(
		context.Background(),
		readPipeline,
		[]string{"transform.transform", "load.transform"},
		map[string]map[string]string{"transform.transform": {"raw": rawPath}},
		map[string][]OutputMarshalSpec{"load.transform": {{Output: "result", Path: resultPath}}},
		nil,
		configenv.ExecutionMetadata{},
		true,
	)
	if err != nil {
		t.Fatalf("ExecuteExternalizedPlan (read raw, write result): %v", err)
	}

	var sawLoadResult bool
	for _, r := range results {
		if r.Step.Key == "load.transform" && r.Success {
			sawLoadResult = true
		}
	}
	if !sawLoadResult {
		t.Fatal("expected a successful result for load.transform")
	}
}
