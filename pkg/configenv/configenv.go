// Package configenv implements the Config Typing Adapter (§4.A): turning
// a raw environment mapping into a validated EnvironmentConfig, or
// raising a structured ConfigEvaluationError. The real configuration type
// system and evaluator are an external collaborator in the distilled
// spec; CreateTypedEnvironment is this module's concrete stand-in,
// evaluating inline and walking the raw tree with gjson/sjson path
// expressions the way the teacher's
// pkg/runner/helpers patches nested manifests.
package configenv

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/metinsenturk/dagster/pkg/dagerr"
	"github.com/metinsenturk/dagster/pkg/events"
	"github.com/metinsenturk/dagster/pkg/logger"
	"github.com/metinsenturk/dagster/pkg/pipedef"
)

// ResourceConfig is the validated per-resource slice of the environment:
// `resources.<name>.config`.
type ResourceConfig struct {
	Config interface{}
}

// ContextConfig is the validated `context` slice of the environment: the
// selected context definition's name, its config, its resources, and the
// single-entry persistence selector.
type ContextConfig struct {
	Name        string
	Config      interface{}
	Resources   map[string]ResourceConfig
	Persistence map[string]interface{}
}

// EnvironmentConfig is the validated configuration environment (§3). Raw
// is the original mapping, preserved for telemetry.
type EnvironmentConfig struct {
	Context ContextConfig
	Raw     map[string]interface{}
}

// ExecutionMetadata is optional caller-supplied run identity and
// side-channel hooks (§3).
type ExecutionMetadata struct {
	RunID         string
	Tags          map[string]string
	EventCallback events.Sink
	Loggers       []*logger.Logger
}

// CreateTypedEnvironment implements §4.A: it validates rawEnv against
// pipeline's environment schema (here, against the pipeline's declared
// context definitions), returning a typed EnvironmentConfig or a
// *dagerr.ConfigEvaluationError.
func CreateTypedEnvironment(pipeline *pipedef.PipelineDefinition, rawEnv map[string]interface{}) (*EnvironmentConfig, error) {
	if rawEnv == nil {
		rawEnv = map[string]interface{}{}
	}

	raw, err := json.Marshal(rawEnv)
	if err != nil {
		return nil, dagerr.NewInvariantViolation("raw environment is not serializable: %v", err)
	}

	var evalErrs []dagerr.EvaluationError

	contextName := gjson.GetBytes(raw, "context.name").String()
	if contextName == "" {
		if len(pipeline.ContextDefinitions) == 1 {
			for name := range pipeline.ContextDefinitions {
				contextName = name
			}
			raw, _ = sjson.SetBytes(raw, "context.name", contextName)
		} else {
			evalErrs = append(evalErrs, dagerr.EvaluationError{
				Path:    "context.name",
				Message: "must be set; pipeline declares more than one context definition",
			})
		}
	}

	if contextName != "" {
		if _, ok := pipeline.ContextDefinitions[contextName]; !ok {
			evalErrs = append(evalErrs, dagerr.EvaluationError{
				Path:    "context.name",
				Message: fmt.Sprintf("unknown context definition %q", contextName),
			})
		}
	}

	if len(evalErrs) > 0 {
		return nil, dagerr.NewConfigEvaluationError(pipeline.Name, evalErrs, rawEnv)
	}

	contextDef := pipeline.ContextDefinitions[contextName]

	cc := ContextConfig{
		Name:        contextName,
		Config:      rawToInterface(gjson.GetBytes(raw, "context.config")),
		Resources:   map[string]ResourceConfig{},
		Persistence: map[string]interface{}{},
	}

	resourcesResult := gjson.GetBytes(raw, "context.resources")
	if resourcesResult.Exists() {
		resourcesResult.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if _, declared := contextDef.ResourceDef(name); !declared {
				evalErrs = append(evalErrs, dagerr.EvaluationError{
					Path:    fmt.Sprintf("context.resources.%s", name),
					Message: "references an undeclared resource",
				})
				return true
			}
			cc.Resources[name] = ResourceConfig{Config: rawToInterface(value.Get("config"))}
			return true
		})
	}

	persistenceResult := gjson.GetBytes(raw, "context.persistence")
	if persistenceResult.Exists() {
		persistenceResult.ForEach(func(key, value gjson.Result) bool {
			cc.Persistence[key.String()] = rawToInterface(value)
			return true
		})
	}

	if len(evalErrs) > 0 {
		return nil, dagerr.NewConfigEvaluationError(pipeline.Name, evalErrs, rawEnv)
	}

	return &EnvironmentConfig{Context: cc, Raw: rawEnv}, nil
}

func rawToInterface(r gjson.Result) interface{} {
	if !r.Exists() {
		return nil
	}
	return r.Value()
}
