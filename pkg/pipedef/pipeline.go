// Package pipedef holds the pipeline data model: solids, their
// dependency structure, and the context/resource definitions a pipeline
// offers for its environment to select.
package pipedef

import (
	"fmt"
	"sort"

	"github.com/metinsenturk/dagster/pkg/logger"
	"github.com/metinsenturk/dagster/pkg/scope"
	"github.com/metinsenturk/dagster/pkg/types"
)

// OutputHandle names one output port of one solid instance.
type OutputHandle struct {
	SolidName  string
	OutputName string
}

// InputHandle names one input port of one solid instance.
type InputHandle struct {
	SolidName string
	InputName string
}

func (h OutputHandle) String() string { return fmt.Sprintf("%s.%s", h.SolidName, h.OutputName) }
func (h InputHandle) String() string  { return fmt.Sprintf("%s.%s", h.SolidName, h.InputName) }

// TransformContext is the facade a solid's transform and expectation
// functions see. RuntimeExecutionContext (pkg/runtimectx) implements it
// structurally — this package never imports pkg/runtimectx, avoiding a
// cycle, since Go interface satisfaction needs no import from the
// implementer back to the definer.
type TransformContext interface {
	RunID() string
	Logger() *logger.Logger
	Resources() interface{}
	Tags() map[string]string
}

// Expectation is a named check run either on a declared input before a
// transform runs (an input expectation) or on a declared output after it
// runs (an output expectation).
type Expectation struct {
	Name string
	Fn   func(ctx TransformContext, value interface{}) error
}

// InputDefinition declares one input port of a solid definition.
type InputDefinition struct {
	Name         string
	Type         *types.RuntimeType
	Expectations []Expectation
}

// OutputDefinition declares one output port of a solid definition.
type OutputDefinition struct {
	Name         string
	Type         *types.RuntimeType
	Expectations []Expectation
}

// TransformFunc is a solid's compute step: given resolved input values,
// it produces named output values.
type TransformFunc func(ctx TransformContext, inputs map[string]interface{}) (map[string]interface{}, error)

// SolidDefinition is the reusable template a Solid instance points to. A
// single definition may be instantiated multiple times under distinct
// solid names within one pipeline.
type SolidDefinition struct {
	Name      string
	Inputs    []InputDefinition
	Outputs   []OutputDefinition
	Transform TransformFunc
}

func (d *SolidDefinition) InputDef(name string) (InputDefinition, bool) {
	for _, in := range d.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputDefinition{}, false
}

func (d *SolidDefinition) OutputDef(name string) (OutputDefinition, bool) {
	for _, out := range d.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return OutputDefinition{}, false
}

// Solid is a named instance of a SolidDefinition within one pipeline.
type Solid struct {
	Name       string
	Definition *SolidDefinition
}

// DependencyStructure maps each input handle to the output handle that
// feeds it. An input with no entry has no upstream dependency within the
// pipeline (it must be satisfied some other way, e.g. SubsetInfo.Inputs).
type DependencyStructure map[InputHandle]OutputHandle

// ResourceCreationInfo is passed to a ResourceFactory.
type ResourceCreationInfo struct {
	Config interface{}
	RunID  string
}

// ResourceFactory builds the scope.Factory for one named resource, given
// its validated config and the active run id.
type ResourceFactory func(info ResourceCreationInfo) scope.Factory

// ResourceDefinition is one resource a ContextDefinition declares.
type ResourceDefinition struct {
	Name         string
	Factory      ResourceFactory
	ConfigSchema interface{}
}

// ExecutionContext is the shape a user context factory returns: declared
// loggers, declared resources (empty when the context definition itself
// declares resources — those are built externally), and tags.
type ExecutionContext struct {
	Loggers   []*logger.Logger
	Resources map[string]interface{}
	Tags      map[string]string
}

// ContextCreationInfo is passed to a ContextFactory.
type ContextCreationInfo struct {
	Config   interface{}
	Pipeline *PipelineDefinition
	RunID    string
}

// ContextFactory builds the scope.Factory yielding exactly one
// ExecutionContext for the duration of a run.
type ContextFactory func(info ContextCreationInfo) (scope.Factory, error)

// ResourcesConstructor keyword-constructs a context definition's typed
// resources aggregate from the named, already-acquired resource objects.
type ResourcesConstructor func(named map[string]interface{}) (interface{}, error)

// ContextDefinition is a template declaring how to construct a runtime
// context: the user factory, any declared resources, and how their
// resources aggregate is assembled.
type ContextDefinition struct {
	Name          string
	Factory       ContextFactory
	Resources     []ResourceDefinition
	ResourcesType ResourcesConstructor
}

func (cd *ContextDefinition) ResourceDef(name string) (ResourceDefinition, bool) {
	for _, r := range cd.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return ResourceDefinition{}, false
}

// PipelineDefinition is an immutable DAG of solids plus its dependency
// structure and the context definitions it offers.
type PipelineDefinition struct {
	Name               string
	solids             []*Solid
	byName             map[string]*Solid
	Deps               DependencyStructure
	ContextDefinitions map[string]*ContextDefinition
	EnvironmentSchema  interface{}
}

// NewPipelineDefinition builds a PipelineDefinition, validating invariant
// 1 of the data model: every dependency must reference a solid present in
// the pipeline.
func NewPipelineDefinition(name string, solids []*Solid, deps DependencyStructure, contextDefs map[string]*ContextDefinition, envSchema interface{}) (*PipelineDefinition, error) {
	byName := make(map[string]*Solid, len(solids))
	for _, s := range solids {
		byName[s.Name] = s
	}
	for in, out := range deps {
		if _, ok := byName[in.SolidName]; !ok {
			return nil, fmt.Errorf("dependency structure references unknown solid %q (input side)", in.SolidName)
		}
		if _, ok := byName[out.SolidName]; !ok {
			return nil, fmt.Errorf("dependency structure references unknown solid %q (output side)", out.SolidName)
		}
	}
	return &PipelineDefinition{
		Name:               name,
		solids:             append([]*Solid(nil), solids...),
		byName:             byName,
		Deps:               deps,
		ContextDefinitions: contextDefs,
		EnvironmentSchema:  envSchema,
	}, nil
}

// Solids returns the pipeline's solids in declaration order.
func (p *PipelineDefinition) Solids() []*Solid {
	return append([]*Solid(nil), p.solids...)
}

// SolidNamed looks up a solid instance by name.
func (p *PipelineDefinition) SolidNamed(name string) (*Solid, bool) {
	s, ok := p.byName[name]
	return s, ok
}

// TopologicalSolidNames returns solid names ordered so that every solid
// appears after all solids whose outputs feed one of its inputs. Ties are
// broken by declaration order for determinism.
func (p *PipelineDefinition) TopologicalSolidNames() ([]string, error) {
	indexOf := make(map[string]int, len(p.solids))
	for i, s := range p.solids {
		indexOf[s.Name] = i
	}

	deps := make(map[string]map[string]bool, len(p.solids))
	for _, s := range p.solids {
		deps[s.Name] = map[string]bool{}
	}
	for in, out := range p.Deps {
		if in.SolidName == out.SolidName {
			return nil, fmt.Errorf("solid %q depends on itself", in.SolidName)
		}
		deps[in.SolidName][out.SolidName] = true
	}

	visited := make(map[string]int) // 0=unvisited 1=visiting 2=done
	order := make([]string, 0, len(p.solids))

	names := make([]string, len(p.solids))
	for i, s := range p.solids {
		names[i] = s.Name
	}
	sort.Slice(names, func(i, j int) bool { return indexOf[names[i]] < indexOf[names[j]] })

	var visit func(name string) error
	visit = func(name string) error {
		switch visited[name] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("cycle detected involving solid %q", name)
		}
		visited[name] = 1
		upstream := make([]string, 0, len(deps[name]))
		for dep := range deps[name] {
			upstream = append(upstream, dep)
		}
		sort.Slice(upstream, func(i, j int) bool { return indexOf[upstream[i]] < indexOf[upstream[j]] })
		for _, dep := range upstream {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visited[name] = 2
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// BuildSubPipeline implements the Subset Builder (§4.D): it produces a
// derived pipeline containing only the named solids, rewriting the
// dependency structure so that an input edge survives iff its producing
// solid is also in the subset (invariant 5). solidNames may contain
// duplicates; they are collapsed. The original pipeline is never mutated.
func BuildSubPipeline(p *PipelineDefinition, solidNames []string) (*PipelineDefinition, error) {
	keep := map[string]bool{}
	var ordered []string
	for _, n := range solidNames {
		if !keep[n] {
			keep[n] = true
			ordered = append(ordered, n)
		}
	}

	kept := make([]*Solid, 0, len(ordered))
	for _, n := range ordered {
		s, ok := p.byName[n]
		if !ok {
			return nil, fmt.Errorf("build sub pipeline: unknown solid %q", n)
		}
		kept = append(kept, s)
	}

	newDeps := make(DependencyStructure, len(p.Deps))
	for in, out := range p.Deps {
		if !keep[in.SolidName] {
			continue
		}
		if keep[out.SolidName] {
			newDeps[in] = out
		}
		// else: dropped — caller must seed this input via SubsetInfo.Inputs.
	}

	return NewPipelineDefinition(p.Name, kept, newDeps, p.ContextDefinitions, p.EnvironmentSchema)
}
