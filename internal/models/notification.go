// internal/models/notification.go
package models

// StepType identifies the channel or action a workflow step performs.
type StepType string

const (
	StepTypeEmail   StepType = "email"
	StepTypeInApp   StepType = "in_app"
	StepTypeSMS     StepType = "sms"
	StepTypePush    StepType = "push"
	StepTypeChat    StepType = "chat"
	StepTypeDigest  StepType = "digest"
	StepTypeDelay   StepType = "delay"
	StepTypeCustom  StepType = "custom"
	StepTypeTrigger StepType = "trigger"
)

// IsChannel reports whether the step delivers a message to a subscriber.
func (t StepType) IsChannel() bool {
	switch t {
	case StepTypeEmail, StepTypeInApp, StepTypeSMS, StepTypePush, StepTypeChat:
		return true
	}
	return false
}

// WorkflowOrigin tells whether a workflow was authored in the dashboard or in user code.
type WorkflowOrigin string

const (
	OriginDashboard WorkflowOrigin = "dashboard"
	OriginExternal  WorkflowOrigin = "external"
)

type Workflow struct {
	ID             string                 `json:"_id"`
	WorkflowID     string                 `json:"workflowId"`
	OrganizationID string                 `json:"organizationId"`
	Name           string                 `json:"name"`
	Origin         WorkflowOrigin         `json:"origin"`
	PayloadSchema  map[string]interface{} `json:"payloadSchema,omitempty"`
	Steps          []Step                 `json:"steps"`
}

type Step struct {
	ID            string                 `json:"_id"`
	StepID        string                 `json:"stepId"`
	Name          string                 `json:"name"`
	Type          StepType               `json:"type"`
	ControlValues map[string]interface{} `json:"controlValues,omitempty"`
	OutputSchema  map[string]interface{} `json:"outputSchema,omitempty"`
}

// StepIndex returns the position of the step with the given internal or external id, or -1.
func (w *Workflow) StepIndex(stepID string) int {
	for i, s := range w.Steps {
		if s.ID == stepID || s.StepID == stepID {
			return i
		}
	}
	return -1
}

// FindStep returns the step with the given internal or external id.
func (w *Workflow) FindStep(stepID string) (*Step, bool) {
	idx := w.StepIndex(stepID)
	if idx < 0 {
		return nil, false
	}
	return &w.Steps[idx], true
}
