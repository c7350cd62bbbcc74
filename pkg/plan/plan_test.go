package plan

import (
	"testing"

	"github.com/metinsenturk/dagster/pkg/pipedef"
	"github.com/metinsenturk/dagster/pkg/types"
)

func expectOK(_ pipedef.TransformContext, _ interface{}) error { return nil }

func chainPipeline(t *testing.T) *pipedef.PipelineDefinition {
	t.Helper()
	extract := &pipedef.SolidDefinition{
		Name:    "extract",
		Outputs: []pipedef.OutputDefinition{{Name: "raw", Type: types.NewRuntimeType("raw", nil)}},
	}
	transform := &pipedef.SolidDefinition{
		Name: "transform",
		Inputs: []pipedef.InputDefinition{
			{Name: "raw", Type: types.NewRuntimeType("raw", nil), Expectations: []pipedef.Expectation{{Name: "not-nil", Fn: expectOK}}},
		},
		Outputs: []pipedef.OutputDefinition{
			{Name: "doubled", Type: types.NewRuntimeType("doubled", nil), Expectations: []pipedef.Expectation{{Name: "positive", Fn: expectOK}}},
		},
	}
	load := &pipedef.SolidDefinition{
		Name:   "load",
		Inputs: []pipedef.InputDefinition{{Name: "doubled", Type: types.NewRuntimeType("doubled", nil)}},
	}

	solids := []*pipedef.Solid{
		{Name: "extract", Definition: extract},
		{Name: "transform", Definition: transform},
		{Name: "load", Definition: load},
	}
	deps := pipedef.DependencyStructure{
		{SolidName: "transform", InputName: "raw"}: {SolidName: "extract", OutputName: "raw"},
		{SolidName: "load", InputName: "doubled"}:  {SolidName: "transform", OutputName: "doubled"},
	}
	p, err := pipedef.NewPipelineDefinition("etl", solids, deps, nil, nil)
	if err != nil {
		t.Fatalf("NewPipelineDefinition: %v", err)
	}
	return p
}

func TestBuildPlanEmitsExpectedSteps(t *testing.T) {
	pipeline := chainPipeline(t)
	p, err := BuildPlan(pipeline, nil)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	wantKeys := []string{
		TransformKey("extract"),
		InputExpectationKey("transform", "raw"),
		TransformKey("transform"),
		OutputExpectationKey("transform", "doubled"),
		TransformKey("load"),
	}
	if len(p.Steps) != len(wantKeys) {
		t.Fatalf("got %d steps, want %d: %v", len(p.Steps), len(wantKeys), stepKeys(p))
	}
	for i, want := range wantKeys {
		if p.Steps[i].Key != want {
			t.Fatalf("step %d: got %q, want %q (full: %v)", i, p.Steps[i].Key, want, stepKeys(p))
		}
	}
}

func TestBuildPlanWiresUpstreamOutputs(t *testing.T) {
	pipeline := chainPipeline(t)
	p, err := BuildPlan(pipeline, nil)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	transformStep, ok := p.StepByKey(TransformKey("transform"))
	if !ok {
		t.Fatal("transform step not found")
	}
	in, ok := transformStep.InputNamed("raw")
	if !ok {
		t.Fatal("transform step has no input \"raw\"")
	}
	if in.Upstream == nil || in.Upstream.StepKey != TransformKey("extract") || in.Upstream.OutputName != "raw" {
		t.Fatalf("got upstream %+v, want extract.transform/raw", in.Upstream)
	}
}

func TestBuildPlanSeedsInputWhenUpstreamStepExcluded(t *testing.T) {
	pipeline := chainPipeline(t)
	subset := &SubsetInfo{
		IncludedStepKeys: map[string]bool{
			TransformKey("transform"): true,
			TransformKey("load"):      true,
		},
		Inputs: map[string]map[string]interface{}{
			TransformKey("transform"): {"raw": []interface{}{1.0, 2.0}},
		},
	}
	p, err := BuildPlan(pipeline, subset)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	transformStep, ok := p.StepByKey(TransformKey("transform"))
	if !ok {
		t.Fatal("transform step not found")
	}
	in, ok := transformStep.InputNamed("raw")
	if !ok {
		t.Fatal("missing input \"raw\"")
	}
	if in.Upstream != nil {
		t.Fatalf("expected no upstream wiring once extract is excluded, got %+v", in.Upstream)
	}
	if !in.HasSeed {
		t.Fatal("expected the input to be seeded from SubsetInfo.Inputs")
	}

	if _, ok := p.StepByKey(TransformKey("extract")); ok {
		t.Fatal("extract's transform step should have been excluded from the subset plan")
	}
}

func stepKeys(p *ExecutionPlan) []string {
	keys := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		keys[i] = s.Key
	}
	return keys
}
