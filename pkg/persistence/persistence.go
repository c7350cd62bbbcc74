// Package persistence implements the PersistencePolicy capability used at
// externalized plan boundaries: reading and writing a single boundary
// value through a runtime type's serialization strategy.
package persistence

import (
	"fmt"
	"os"

	"github.com/metinsenturk/dagster/pkg/types"
)

// Policy reads/writes boundary values of an externalized plan. Exactly
// one policy is bound to any RuntimeExecutionContext (invariant 2).
type Policy interface {
	ReadValue(strategy types.SerializationStrategy, location string) (interface{}, error)
	WriteValue(strategy types.SerializationStrategy, location string, value interface{}) error
}

// FilePolicy reads/writes one serialized value per filesystem path. There
// is no framework-owned on-disk layout: paths are caller-provided.
type FilePolicy struct{}

func NewFilePolicy() Policy { return FilePolicy{} }

func (FilePolicy) ReadValue(strategy types.SerializationStrategy, location string) (interface{}, error) {
	if strategy == nil {
		return nil, fmt.Errorf("file persistence: no serialization strategy declared for %q", location)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, err
	}
	return strategy.Deserialize(data)
}

func (FilePolicy) WriteValue(strategy types.SerializationStrategy, location string, value interface{}) error {
	if strategy == nil {
		return fmt.Errorf("file persistence: no serialization strategy declared for %q", location)
	}
	data, err := strategy.Serialize(value)
	if err != nil {
		return err
	}
	return os.WriteFile(location, data, 0o644)
}

// Build constructs the single configured persistence policy from the
// validated environment's single-entry `context.persistence` mapping
// (§4.B step 6). Any key other than "file" is an invariant violation,
// enforced by the caller (pkg/runtimectx), not here.
func Build(key string) (Policy, bool) {
	switch key {
	case "file":
		return NewFilePolicy(), true
	default:
		return nil, false
	}
}
