package models

// IssueType classifies a content problem found on a control value.
type IssueType string

const (
	IssueMissingValue             IssueType = "MISSING_VALUE"
	IssueIllegalVariable          IssueType = "ILLEGAL_VARIABLE_IN_CONTROL_VALUE"
	IssueMissingVariableInPayload IssueType = "MISSING_VARIABLE_IN_PAYLOAD"
	IssueTierLimitExceeded        IssueType = "TIER_LIMIT_EXCEEDED"
)

type ContentIssue struct {
	IssueType    IssueType `json:"issueType"`
	Message      string    `json:"message"`
	VariableName string    `json:"variableName,omitempty"`
}

// Issues maps a control field path to the problems found on it.
type Issues map[string][]ContentIssue

// ValidatedContentResponse is recomputed on every edit and never patched incrementally.
type ValidatedContentResponse struct {
	FinalPayload       map[string]interface{} `json:"finalPayload"`
	FinalControlValues map[string]interface{} `json:"finalControlValues"`
	Issues             Issues                 `json:"issues"`
}

// HasIssues reports whether any field carries at least one issue.
func (r *ValidatedContentResponse) HasIssues() bool {
	for _, list := range r.Issues {
		if len(list) > 0 {
			return true
		}
	}
	return false
}
