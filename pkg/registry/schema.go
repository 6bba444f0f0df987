package registry

import "workflow-content/internal/models"

type StepRegistry struct {
	Version     string           `json:"version"`
	LastUpdated string           `json:"lastUpdated"`
	Steps       []StepDefinition `json:"steps"`
}

// StepDefinition describes the editable controls of one step type and the
// data the step exposes to the steps after it.
type StepDefinition struct {
	Type          models.StepType        `json:"type"`
	DisplayName   string                 `json:"displayName"`
	Description   string                 `json:"description,omitempty"`
	Category      string                 `json:"category"`
	ControlSchema map[string]interface{} `json:"controlSchema"`
	UISchema      map[string]interface{} `json:"uiSchema,omitempty"`
	OutputSchema  map[string]interface{} `json:"outputSchema,omitempty"`
	Tags          []string               `json:"tags,omitempty"`
}
