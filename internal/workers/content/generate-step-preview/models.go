package generatesteppreview

import (
	"workflow-content/internal/content/preview"
	"workflow-content/internal/models"
)

type Input struct {
	OrganizationID string                 `json:"organizationId"`
	WorkflowID     string                 `json:"workflowId"`
	StepID         string                 `json:"stepId"`
	ControlValues  map[string]interface{} `json:"controlValues,omitempty"`
	PreviewPayload map[string]interface{} `json:"previewPayload,omitempty"`
}

// Output mirrors the preview response the editor renders.
type Output struct {
	Result                preview.RenderResult   `json:"result"`
	PreviewPayloadExample map[string]interface{} `json:"previewPayloadExample"`
	Issues                models.Issues          `json:"issues"`
}
