package cmd

import (
	"os"

	"gopkg.in/yaml.v3"
)

// loadRawEnvironment reads a YAML environment file into the raw mapping
// CreateTypedEnvironment validates. An empty path yields the default
// single-context environment (the pipeline declares exactly one context
// definition, so context.name may be omitted).
func loadRawEnvironment(path string) (map[string]interface{}, error) {
	if path == "" {
		return map[string]interface{}{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
