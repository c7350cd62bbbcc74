// Package types describes the runtime type tags attached to solid input
// and output ports, and the serialization strategies used to marshal
// their values across an externalized plan boundary.
package types

import "encoding/json"

// SerializationStrategy turns a value into bytes and back. Runtime types
// that are used at an externalized plan boundary must declare one.
type SerializationStrategy interface {
	Name() string
	Serialize(value interface{}) ([]byte, error)
	Deserialize(data []byte) (interface{}, error)
}

// RuntimeType is the named type tag carried by an input or output
// definition. SerializationStrategy is nil for types never used across
// an externalized boundary.
type RuntimeType struct {
	Name        string
	Strategy    SerializationStrategy
	Description string
}

// NewRuntimeType builds a RuntimeType, defaulting to the JSON strategy
// when none is supplied.
func NewRuntimeType(name string, strategy SerializationStrategy) *RuntimeType {
	if strategy == nil {
		strategy = JSONStrategy{}
	}
	return &RuntimeType{Name: name, Strategy: strategy}
}

// Any is the permissive default runtime type: JSON-serializable values of
// any shape, used by solids that don't declare a more specific type.
var Any = NewRuntimeType("Any", JSONStrategy{})

// JSONStrategy is the default SerializationStrategy, backing the shipped
// `file` persistence policy.
type JSONStrategy struct{}

func (JSONStrategy) Name() string { return "json" }

func (JSONStrategy) Serialize(value interface{}) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONStrategy) Deserialize(data []byte) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
