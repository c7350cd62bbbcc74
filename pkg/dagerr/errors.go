// Package dagerr carries the execution core's error taxonomy: distinct
// failure kinds for framework invariant violations, configuration
// evaluation failures, externalized-plan lookups, and boundary
// marshalling, each wrapping its underlying cause where the spec calls
// for cause preservation.
package dagerr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// InvariantViolation signals framework/API misuse: a missing solid, an
// overlapping tag key, an unsupported persistence key, an empty result
// list. It is surfaced to the caller unwrapped.
type InvariantViolation struct {
	Message string
}

func NewInvariantViolation(format string, args ...interface{}) *InvariantViolation {
	return &InvariantViolation{Message: fmt.Sprintf(format, args...)}
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Message)
}

// EvaluationError is one structured complaint from the config evaluator
// about a single path in the raw environment mapping.
type EvaluationError struct {
	Path    string
	Message string
}

func (e EvaluationError) String() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ConfigEvaluationError is raised when the raw environment mapping fails
// to typecheck against a pipeline's environment schema. It carries the
// pipeline name, the full list of structured errors, the original raw
// value, and a formatted, numbered multi-line summary.
type ConfigEvaluationError struct {
	PipelineName string
	Errors       []EvaluationError
	RawEnv       interface{}
}

func NewConfigEvaluationError(pipelineName string, errs []EvaluationError, rawEnv interface{}) *ConfigEvaluationError {
	return &ConfigEvaluationError{PipelineName: pipelineName, Errors: errs, RawEnv: rawEnv}
}

func (e *ConfigEvaluationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "pipeline %q: %d config evaluation error(s):", e.PipelineName, len(e.Errors))
	for i, ee := range e.Errors {
		fmt.Fprintf(&sb, "\n\t%d) %s", i+1, ee.String())
	}
	return sb.String()
}

// ExecutionStepNotFoundError is raised when an externalized-plan request
// references a step key that does not exist in the plan.
type ExecutionStepNotFoundError struct {
	StepKey string
}

func (e *ExecutionStepNotFoundError) Error() string {
	return fmt.Sprintf("execution step %q not found in plan", e.StepKey)
}

// UnmarshalInputNotFoundError is raised when an externalized-plan request
// references an input name that does not exist on an otherwise-known step.
type UnmarshalInputNotFoundError struct {
	StepKey   string
	InputName string
}

func (e *UnmarshalInputNotFoundError) Error() string {
	return fmt.Sprintf("step %q declares no input %q to unmarshal", e.StepKey, e.InputName)
}

// MarshalOutputNotFoundError is raised when an externalized-plan request
// references an output name that does not exist on an otherwise-known step.
type MarshalOutputNotFoundError struct {
	StepKey    string
	OutputName string
}

func (e *MarshalOutputNotFoundError) Error() string {
	return fmt.Sprintf("step %q declares no output %q to marshal", e.StepKey, e.OutputName)
}

// UnmarshalInputError wraps a persistence-policy failure while reading a
// seeded input, preserving the original cause.
type UnmarshalInputError struct {
	StepKey   string
	InputName string
	cause     error
}

func NewUnmarshalInputError(stepKey, inputName string, cause error) *UnmarshalInputError {
	return &UnmarshalInputError{StepKey: stepKey, InputName: inputName, cause: errors.WithStack(cause)}
}

func (e *UnmarshalInputError) Error() string {
	return fmt.Sprintf("unmarshalling input %q for step %q: %v", e.InputName, e.StepKey, e.cause)
}

func (e *UnmarshalInputError) Unwrap() error { return e.cause }
func (e *UnmarshalInputError) Cause() error  { return errors.Cause(e.cause) }

// MarshalOutputError wraps a persistence-policy failure while writing a
// produced output, preserving the original cause.
type MarshalOutputError struct {
	StepKey    string
	OutputName string
	cause      error
}

func NewMarshalOutputError(stepKey, outputName string, cause error) *MarshalOutputError {
	return &MarshalOutputError{StepKey: stepKey, OutputName: outputName, cause: errors.WithStack(cause)}
}

func (e *MarshalOutputError) Error() string {
	return fmt.Sprintf("marshalling output %q for step %q: %v", e.OutputName, e.StepKey, e.cause)
}

func (e *MarshalOutputError) Unwrap() error { return e.cause }
func (e *MarshalOutputError) Cause() error  { return errors.Cause(e.cause) }

// UserError wraps a failure raised by user transform or expectation code
// during step execution. It preserves the original cause chain so a
// caller that inspects StepResult.FailureData.DagsterError can recover it.
type UserError struct {
	StepKey string
	cause   error
}

func NewUserError(stepKey string, cause error) *UserError {
	return &UserError{StepKey: stepKey, cause: errors.WithStack(cause)}
}

func (e *UserError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.StepKey, e.cause)
}

func (e *UserError) Unwrap() error { return e.cause }
func (e *UserError) Cause() error  { return errors.Cause(e.cause) }
