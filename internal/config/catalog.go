package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelSpec describes the token limits of one model in the catalog file.
type ModelSpec struct {
	ContextWindow   int `yaml:"context_window"`
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

// ModelCatalog maps model identifiers to their token limits. It is loaded
// once at startup and treated as immutable afterwards.
type ModelCatalog map[string]ModelSpec

// LoadModelCatalog reads a YAML model catalog. A missing path returns an
// empty catalog so deployments without one fall back to the configured
// defaults.
func LoadModelCatalog(path string) (ModelCatalog, error) {
	if path == "" {
		return ModelCatalog{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog %s: %w", path, err)
	}
	var catalog ModelCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog %s: %w", path, err)
	}
	return catalog, nil
}

// BudgetFor computes the input token budget for a model: its context window
// minus reserved output tokens and prompt overhead. Models absent from the
// catalog use the configured defaults.
func (c *Config) BudgetFor(catalog ModelCatalog, model string) int {
	window := c.AI.ContextWindow
	output := c.AI.MaxOutputTokens
	if spec, ok := catalog[model]; ok {
		if spec.ContextWindow > 0 {
			window = spec.ContextWindow
		}
		if spec.MaxOutputTokens > 0 {
			output = spec.MaxOutputTokens
		}
	}
	budget := window - output - c.AI.PromptOverhead
	if budget < 0 {
		return 0
	}
	return budget
}
