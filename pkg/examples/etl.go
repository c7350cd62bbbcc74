// Package examples wires a small, runnable pipeline — extract, transform,
// load over a slice of integers — used by cmd/dagsterctl and by the
// execution-core tests as a concrete PipelineDefinition. It exercises a
// scoped resource (an in-memory store with recorded setup/teardown) and a
// single context definition, the way a real caller would wire their own
// solids against this package's public types.
package examples

import (
	"fmt"

	"github.com/metinsenturk/dagster/pkg/pipedef"
	"github.com/metinsenturk/dagster/pkg/scope"
	"github.com/metinsenturk/dagster/pkg/types"
)

// Store is the typed resources aggregate the "default" context definition
// builds: one named resource, "store".
type Store struct {
	Memory *MemStore
}

// MemStore is a trivial in-memory key/value resource demonstrating
// setup/teardown scoping (Testable Property 3): Opened flips true on
// acquisition and false on teardown, and solids append to Log while it is
// open.
type MemStore struct {
	Opened bool
	Log    []string
}

func (m *MemStore) Record(entry string) {
	m.Log = append(m.Log, entry)
}

// memStoreResourceDef declares the "store" resource: setup allocates the
// MemStore, teardown marks it closed.
var memStoreResourceDef = pipedef.ResourceDefinition{
	Name: "store",
	Factory: func(pipedef.ResourceCreationInfo) scope.Factory {
		return scope.Scoped(
			func() (interface{}, error) {
				return &MemStore{Opened: true}, nil
			},
			func(v interface{}) error {
				v.(*MemStore).Opened = false
				return nil
			},
		)
	},
}

// DefaultContextDefinition is the pipeline's sole context definition: no
// user config, one declared resource, tagged "stage": "demo".
var DefaultContextDefinition = &pipedef.ContextDefinition{
	Name: "default",
	Factory: func(info pipedef.ContextCreationInfo) (scope.Factory, error) {
		return scope.Direct(func() (interface{}, error) {
			return pipedef.ExecutionContext{
				Tags: map[string]string{"stage": "demo"},
			}, nil
		}), nil
	},
	Resources: []pipedef.ResourceDefinition{memStoreResourceDef},
	ResourcesType: func(named map[string]interface{}) (interface{}, error) {
		store, ok := named["store"].(*MemStore)
		if !ok {
			return nil, fmt.Errorf("examples: resource %q missing or wrong type", "store")
		}
		return Store{Memory: store}, nil
	},
}

var extractDef = &pipedef.SolidDefinition{
	Name: "extract",
	Outputs: []pipedef.OutputDefinition{
		{Name: "raw", Type: types.Any},
	},
	Transform: func(ctx pipedef.TransformContext, _ map[string]interface{}) (map[string]interface{}, error) {
		ctx.Logger().Infof("extract: producing seed values")
		return map[string]interface{}{"raw": []interface{}{1.0, 2.0, 3.0, 4.0, 5.0}}, nil
	},
}

var transformDef = &pipedef.SolidDefinition{
	Name: "transform",
	Inputs: []pipedef.InputDefinition{
		{Name: "raw", Type: types.Any},
	},
	Outputs: []pipedef.OutputDefinition{
		{Name: "doubled", Type: types.Any},
	},
	Transform: func(ctx pipedef.TransformContext, inputs map[string]interface{}) (map[string]interface{}, error) {
		raw, _ := inputs["raw"].([]interface{})
		doubled := make([]interface{}, 0, len(raw))
		for _, v := range raw {
			f, _ := v.(float64)
			doubled = append(doubled, f*2)
		}
		if store, ok := ctx.Resources().(Store); ok && store.Memory != nil {
			store.Memory.Record(fmt.Sprintf("doubled %d values", len(doubled)))
		}
		return map[string]interface{}{"doubled": doubled}, nil
	},
}

var loadDef = &pipedef.SolidDefinition{
	Name: "load",
	Inputs: []pipedef.InputDefinition{
		{Name: "doubled", Type: types.Any},
	},
	Outputs: []pipedef.OutputDefinition{
		{Name: "result", Type: types.Any},
	},
	Transform: func(ctx pipedef.TransformContext, inputs map[string]interface{}) (map[string]interface{}, error) {
		doubled, _ := inputs["doubled"].([]interface{})
		var sum float64
		for _, v := range doubled {
			f, _ := v.(float64)
			sum += f
		}
		ctx.Logger().Successf("load: wrote sum %v", sum)
		return map[string]interface{}{"result": sum}, nil
	},
}

// NewETLPipeline builds the extract -> transform -> load pipeline.
func NewETLPipeline() (*pipedef.PipelineDefinition, error) {
	solids := []*pipedef.Solid{
		{Name: "extract", Definition: extractDef},
		{Name: "transform", Definition: transformDef},
		{Name: "load", Definition: loadDef},
	}
	deps := pipedef.DependencyStructure{
		{SolidName: "transform", InputName: "raw"}: {SolidName: "extract", OutputName: "raw"},
		{SolidName: "load", InputName: "doubled"}:   {SolidName: "transform", OutputName: "doubled"},
	}
	contextDefs := map[string]*pipedef.ContextDefinition{
		"default": DefaultContextDefinition,
	}
	return pipedef.NewPipelineDefinition("etl", solids, deps, contextDefs, nil)
}
