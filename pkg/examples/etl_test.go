package examples

import (
	"context"
	"testing"

	"github.com/metinsenturk/dagster/pkg/configenv"
	"github.com/metinsenturk/dagster/pkg/execution"
)

func TestNewETLPipelineRunsAndClosesTheStoreResource(t *testing.T) {
	pipeline, err := NewETLPipeline()
	if err != nil {
		t.Fatalf("NewETLPipeline: %v", err)
	}

	result, err := execution.ExecutePipeline(context.Background(), pipeline, nil, true, configenv.ExecutionMetadata{}, nil)
	if err != nil {
		t.Fatalf("ExecutePipeline: %v", err)
	}
	if !result.Success() {
		t.Fatal("expected the pipeline to succeed")
	}

	store, ok := result.Context.Resources().(Store)
	if !ok {
		t.Fatalf("got resources of type %T, want Store", result.Context.Resources())
	}
	if store.Memory == nil {
		t.Fatal("expected the \"store\" resource to have been acquired")
	}
	if store.Memory.Opened {
		t.Fatal("expected the store to be torn down (Opened == false) once the run's scope is closed")
	}
	if len(store.Memory.Log) != 1 {
		t.Fatalf("got log %v, want exactly one entry recorded by the transform solid", store.Memory.Log)
	}
}
