package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"workflow-content/internal/models"
)

//go:embed steps.json
var defaultSteps []byte

// Registry answers control and output schema lookups by step type.
type Registry struct {
	version string
	steps   map[models.StepType]StepDefinition
}

// Default returns the registry built from the embedded step definitions.
func Default() (*Registry, error) {
	var reg StepRegistry
	if err := json.Unmarshal(defaultSteps, &reg); err != nil {
		return nil, fmt.Errorf("decode embedded step registry: %w", err)
	}
	return New(&reg)
}

// LoadRegistry reads a registry file and overlays its definitions on the
// embedded ones. An empty path yields the embedded registry.
func LoadRegistry(path string) (*Registry, error) {
	r, err := Default()
	if err != nil || path == "" {
		return r, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var overlay StepRegistry
	if err := json.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("decode step registry %s: %w", path, err)
	}
	if err := r.add(overlay.Steps); err != nil {
		return nil, err
	}
	if overlay.Version != "" {
		r.version = overlay.Version
	}
	return r, nil
}

func New(reg *StepRegistry) (*Registry, error) {
	r := &Registry{version: reg.Version, steps: map[models.StepType]StepDefinition{}}
	if err := r.add(reg.Steps); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) add(steps []StepDefinition) error {
	for _, s := range steps {
		if s.Type == "" {
			return fmt.Errorf("step definition %q has no type", s.DisplayName)
		}
		if s.ControlSchema == nil {
			s.ControlSchema = map[string]interface{}{"type": "object", "additionalProperties": true}
		}
		r.steps[s.Type] = s
	}
	return nil
}

func (r *Registry) Version() string { return r.version }

func (r *Registry) Lookup(stepType models.StepType) (StepDefinition, bool) {
	s, ok := r.steps[stepType]
	return s, ok
}

func (r *Registry) ControlSchema(stepType models.StepType) (map[string]interface{}, bool) {
	s, ok := r.steps[stepType]
	if !ok {
		return nil, false
	}
	return s.ControlSchema, true
}

func (r *Registry) UISchema(stepType models.StepType) (map[string]interface{}, bool) {
	s, ok := r.steps[stepType]
	if !ok || s.UISchema == nil {
		return nil, false
	}
	return s.UISchema, true
}

// OutputSchema reports false for step types that expose no output.
func (r *Registry) OutputSchema(stepType models.StepType) (map[string]interface{}, bool) {
	s, ok := r.steps[stepType]
	if !ok || s.OutputSchema == nil {
		return nil, false
	}
	return s.OutputSchema, true
}
