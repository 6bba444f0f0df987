package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const CodeRequired = "REQUIRED"

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError is one schema violation. Field uses dots for properties and
// [n] for array positions; it is empty for violations on the document root.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Value   interface{} `json:"-"`
}

// ValidateDocument validates data against a JSON schema and collects every
// violation instead of stopping at the first one.
func ValidateDocument(schema, data map[string]interface{}) (*ValidationResult, error) {
	if len(schema) == 0 {
		return &ValidationResult{Valid: true}, nil
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, convertError(desc))
	}
	return &ValidationResult{Valid: result.Valid(), Errors: errs}, nil
}

func convertError(desc gojsonschema.ResultError) ValidationError {
	field := FieldPath(desc.Field())
	code := strings.ToUpper(desc.Type())
	value := desc.Value()

	switch desc.Type() {
	case "required", "additional_property_not_allowed":
		if prop, ok := desc.Details()["property"].(string); ok && field != prop && !strings.HasSuffix(field, "."+prop) {
			if field == "" {
				field = prop
			} else {
				field = field + "." + prop
			}
		}
	}
	if code == CodeRequired {
		value = nil
	}
	return ValidationError{Field: field, Message: desc.Description(), Code: code, Value: value}
}

// FieldPath converts a gojsonschema field such as "actions.0.label" or
// "(root)" into "actions[0].label" or "".
func FieldPath(field string) string {
	if field == "" || field == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
		return ""
	}
	var b strings.Builder
	for i, seg := range strings.Split(field, ".") {
		if _, err := strconv.Atoi(seg); err == nil && i > 0 {
			b.WriteString("[" + seg + "]")
			continue
		}
		if i > 0 {
			b.WriteString(".")
		}
		b.WriteString(seg)
	}
	return b.String()
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}
