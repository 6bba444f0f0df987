package validatestepcontent

import "workflow-content/internal/models"

// Input identifies the step to validate. ControlValues replaces the stored
// values when the editor sends unsaved changes.
type Input struct {
	OrganizationID string                 `json:"organizationId"`
	WorkflowID     string                 `json:"workflowId"`
	StepID         string                 `json:"stepId"`
	ControlValues  map[string]interface{} `json:"controlValues,omitempty"`
	PreviewPayload map[string]interface{} `json:"previewPayload,omitempty"`
}

type Output struct {
	StepID             string                 `json:"stepId"`
	StepType           models.StepType        `json:"stepType"`
	FinalPayload       map[string]interface{} `json:"finalPayload"`
	FinalControlValues map[string]interface{} `json:"finalControlValues"`
	Issues             models.Issues          `json:"issues"`
	HasIssues          bool                   `json:"hasIssues"`
}
