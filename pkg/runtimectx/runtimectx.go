// Package runtimectx implements the Context Builder (§4.B) and Resource
// Scope Manager (§4.C): scoped construction of the system-owned
// RuntimeExecutionContext that carries run id, loggers, resources, tags,
// event callback, and persistence policy through one pipeline or
// externalized run.
package runtimectx

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/metinsenturk/dagster/pkg/configenv"
	"github.com/metinsenturk/dagster/pkg/dagerr"
	"github.com/metinsenturk/dagster/pkg/events"
	"github.com/metinsenturk/dagster/pkg/logger"
	"github.com/metinsenturk/dagster/pkg/persistence"
	"github.com/metinsenturk/dagster/pkg/pipedef"
	"github.com/metinsenturk/dagster/pkg/scope"
)

// RuntimeExecutionContext is the constructed, system-owned context
// carried through execution (§3). Its lifetime is exactly the scoped
// region of a pipeline or externalized run.
type RuntimeExecutionContext struct {
	goCtx         context.Context
	runID         string
	log           *logger.Logger
	resources     interface{}
	tags          map[string]string
	eventCallback events.Sink
	rawConfig     map[string]interface{}
	persistence   persistence.Policy
}

func (c *RuntimeExecutionContext) RunID() string                 { return c.runID }
func (c *RuntimeExecutionContext) Logger() *logger.Logger         { return c.log }
func (c *RuntimeExecutionContext) Resources() interface{}         { return c.resources }
func (c *RuntimeExecutionContext) Tags() map[string]string         { return copyTags(c.tags) }
func (c *RuntimeExecutionContext) GoContext() context.Context      { return c.goCtx }
func (c *RuntimeExecutionContext) RawConfig() map[string]interface{} {
	return c.rawConfig
}
func (c *RuntimeExecutionContext) Persistence() persistence.Policy { return c.persistence }

// Emit forwards an event to the configured sink, defaulting to a no-op.
func (c *RuntimeExecutionContext) Emit(e events.Event) {
	sink := c.eventCallback
	if sink == nil {
		sink = events.Nop()
	}
	sink.Emit(e)
}

// WithGoContext returns a shallow copy of c with a replaced Go context,
// used to propagate cancellation into concurrently executing steps.
func (c *RuntimeExecutionContext) WithGoContext(goCtx context.Context) *RuntimeExecutionContext {
	cp := *c
	cp.goCtx = goCtx
	return &cp
}

var _ pipedef.TransformContext = (*RuntimeExecutionContext)(nil)

func copyTags(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Session owns the teardown stack for one opened context; Close releases
// every acquired resource in reverse order, then drives the user context
// factory's own teardown to completion (§4.B step 7).
type Session struct {
	Context *RuntimeExecutionContext
	stack   scope.Stack
}

// Close unwinds the scope: resources release in LIFO order first, then
// the user context generator's teardown runs last (it acquired first).
// Every registered teardown runs even if an earlier one fails; the first
// error encountered is returned.
func (s *Session) Close() error {
	return s.stack.Close()
}

// Open implements §4.B: selecting the named context definition, invoking
// its user factory, entering the resource scope (§4.C), merging loggers
// and tags, and binding the single persistence policy. On any failure
// after partial acquisition, everything acquired so far is torn down in
// reverse order before the error is returned.
func Open(goCtx context.Context, pipeline *pipedef.PipelineDefinition, env *configenv.EnvironmentConfig, meta configenv.ExecutionMetadata) (*Session, error) {
	contextDef, ok := pipeline.ContextDefinitions[env.Context.Name]
	if !ok {
		return nil, dagerr.NewInvariantViolation("no context definition named %q on pipeline %q", env.Context.Name, pipeline.Name)
	}

	runID := meta.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	sess := &Session{}
	ok = false
	defer func() {
		if !ok {
			sess.stack.Close()
		}
	}()

	factory, err := contextDef.Factory(pipedef.ContextCreationInfo{
		Config:   env.Context.Config,
		Pipeline: pipeline,
		RunID:    runID,
	})
	if err != nil {
		return nil, err
	}
	acquired, err := factory()
	if err != nil {
		return nil, err
	}
	sess.stack.Push(acquired.Teardown)

	userCtx, isUserCtx := acquired.Value.(pipedef.ExecutionContext)
	if !isUserCtx {
		return nil, dagerr.NewInvariantViolation("context factory for %q did not yield an ExecutionContext", env.Context.Name)
	}

	resources, err := enterResourceScope(&sess.stack, contextDef, env, runID, userCtx)
	if err != nil {
		return nil, err
	}

	loggers := append([]*logger.Logger{}, userCtx.Loggers...)
	var eventCallback events.Sink
	if meta.EventCallback != nil {
		// event_callback wins over explicit extra loggers when both are set
		// (§9 open question — resolved as documented in DESIGN.md).
		eventCallback = meta.EventCallback
	} else if len(meta.Loggers) > 0 {
		loggers = append(loggers, meta.Loggers...)
	}
	if len(loggers) == 0 {
		loggers = append(loggers, logger.Get())
	}
	// Tee fans every declared logger's call out to its own core, rather
	// than discarding all but the first; every logger the context or the
	// caller's execution metadata named actually receives output.
	mergedLogger := logger.Tee(loggers...).With("run_id", runID)

	tags, err := mergeTags(pipeline.Name, userCtx.Tags, meta.Tags)
	if err != nil {
		return nil, err
	}

	persistenceKey, persistenceValue, err := singlePersistenceEntry(env.Context.Persistence)
	if err != nil {
		return nil, err
	}
	policy, ok2 := persistence.Build(persistenceKey)
	if !ok2 {
		return nil, dagerr.NewInvariantViolation("unsupported persistence key %q", persistenceKey)
	}
	_ = persistenceValue

	sess.Context = &RuntimeExecutionContext{
		goCtx:         goCtx,
		runID:         runID,
		log:           mergedLogger,
		resources:     resources,
		tags:          tags,
		eventCallback: eventCallback,
		rawConfig:     env.Raw,
		persistence:   policy,
	}
	ok = true
	return sess, nil
}

// enterResourceScope implements §4.C. If the context definition declares
// no resources, the user context's own resources pass through unchanged.
// Otherwise the user context must have returned none, and each declared
// resource is acquired in order and pushed onto the shared teardown stack
// so that release happens LIFO alongside the user context's own teardown.
func enterResourceScope(stack *scope.Stack, contextDef *pipedef.ContextDefinition, env *configenv.EnvironmentConfig, runID string, userCtx pipedef.ExecutionContext) (interface{}, error) {
	if len(contextDef.Resources) == 0 {
		return userCtx.Resources, nil
	}
	if len(userCtx.Resources) != 0 {
		return nil, dagerr.NewInvariantViolation(
			"context %q declares resources; its user factory must not also return resources", contextDef.Name)
	}

	named := make(map[string]interface{}, len(contextDef.Resources))
	for _, rd := range contextDef.Resources {
		rc := env.Context.Resources[rd.Name]
		factory := rd.Factory(pipedef.ResourceCreationInfo{Config: rc.Config, RunID: runID})
		acquired, err := factory()
		if err != nil {
			return nil, fmt.Errorf("acquiring resource %q: %w", rd.Name, err)
		}
		stack.Push(acquired.Teardown)
		named[rd.Name] = acquired.Value
	}

	if contextDef.ResourcesType == nil {
		return named, nil
	}
	return contextDef.ResourcesType(named)
}

// mergeTags implements §4.B step 5: {"pipeline": name} ∪ user_tags ∪
// meta_tags, failing on overlap between user and metadata tag keys
// (invariant 4), with the pipeline key never overridable.
func mergeTags(pipelineName string, userTags, metaTags map[string]string) (map[string]string, error) {
	for k := range userTags {
		if _, clash := metaTags[k]; clash {
			return nil, dagerr.NewInvariantViolation("tag key %q set by both the user context and execution metadata", k)
		}
	}
	merged := map[string]string{"pipeline": pipelineName}
	for k, v := range userTags {
		merged[k] = v
	}
	for k, v := range metaTags {
		merged[k] = v
	}
	return merged, nil
}

// singlePersistenceEntry returns the one selected persistence key. An
// empty mapping selects "file"; a mapping with more than one entry is an
// invariant violation.
func singlePersistenceEntry(m map[string]interface{}) (string, interface{}, error) {
	if len(m) == 0 {
		return "file", nil, nil
	}
	if len(m) != 1 {
		return "", nil, dagerr.NewInvariantViolation("context.persistence must have exactly one entry, got %d", len(m))
	}
	for k, v := range m {
		return k, v, nil
	}
	return "", nil, dagerr.NewInvariantViolation("unreachable")
}
