// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeControlValueShapeInvalid ErrorCode = "CONTROL_VALUE_SHAPE_INVALID"
	ErrCodeDocumentSchemaInvalid    ErrorCode = "DOCUMENT_SCHEMA_INVALID"
	ErrCodePayloadDepthExceeded     ErrorCode = "PAYLOAD_DEPTH_EXCEEDED"
	ErrCodeControlSchemaInvalid     ErrorCode = "CONTROL_SCHEMA_INVALID"

	ErrCodeWorkflowNotFound     ErrorCode = "WORKFLOW_NOT_FOUND"
	ErrCodeStepNotFound         ErrorCode = "STEP_NOT_FOUND"
	ErrCodeOrganizationNotFound ErrorCode = "ORGANIZATION_NOT_FOUND"
	ErrCodeTierLookupFailed     ErrorCode = "TIER_LOOKUP_FAILED"

	ErrCodeBridgeExecutionFailed ErrorCode = "BRIDGE_EXECUTION_FAILED"
	ErrCodePreviewFailed         ErrorCode = "PREVIEW_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"

	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrCodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout              ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound     ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewControlValueShapeInvalidError(details string) *StandardError {
	return newError(ErrCodeControlValueShapeInvalid, "Control values contain an unsupported value", details, false)
}

func NewDocumentSchemaInvalidError(details string) *StandardError {
	return newError(ErrCodeDocumentSchemaInvalid, "Rich-text document is malformed", details, false)
}

func NewPayloadDepthExceededError(details string) *StandardError {
	return newError(ErrCodePayloadDepthExceeded, "Payload nesting is too deep", details, false)
}

func NewControlSchemaInvalidError(details string) *StandardError {
	return newError(ErrCodeControlSchemaInvalid, "Control schema cannot be compiled", details, false)
}

func NewWorkflowNotFoundError(workflowID string) *StandardError {
	return newError(ErrCodeWorkflowNotFound, "Workflow not found", fmt.Sprintf("workflow '%s' does not exist", workflowID), false)
}

func NewStepNotFoundError(stepID string) *StandardError {
	return newError(ErrCodeStepNotFound, "Step not found", fmt.Sprintf("step '%s' is not part of the workflow", stepID), false)
}

func NewOrganizationNotFoundError(organizationID string) *StandardError {
	return newError(ErrCodeOrganizationNotFound, "Organization not found", fmt.Sprintf("organization '%s' does not exist", organizationID), false)
}

// NewTierLookupFailedError is retryable: the lookup depends on postgres and redis.
func NewTierLookupFailedError(err error) *StandardError {
	return newError(ErrCodeTierLookupFailed, "Could not determine the organization tier", err.Error(), true)
}

// NewBridgeExecutionFailedError keeps the upstream message so the editor can show it unchanged.
func NewBridgeExecutionFailedError(message string, status int) *StandardError {
	e := newError(ErrCodeBridgeExecutionFailed, message, "", status >= 500 || status == 0)
	return e.WithMetadata("status", status)
}

func NewPreviewFailedError(err error) *StandardError {
	return newError(ErrCodePreviewFailed, "Preview generation failed", err.Error(), false)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection failed", err.Error(), true)
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, fmt.Sprintf("Query '%s' failed", queryType), err.Error(), true)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalServiceError, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), details, false)
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeTierLookupFailed,
		ErrCodeExternalServiceError:
		return 3

	case ErrCodeBridgeExecutionFailed,
		ErrCodeTimeout:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
// BPMN codes are the internal codes.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CONTROL") || strings.Contains(codeStr, "DOCUMENT") || strings.Contains(codeStr, "PAYLOAD"):
		return "CONTENT"
	case strings.Contains(codeStr, "BRIDGE") || strings.Contains(codeStr, "PREVIEW"):
		return "PREVIEW"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	case strings.Contains(codeStr, "TIER"):
		return "TIER"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
