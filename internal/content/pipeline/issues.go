package pipeline

import (
	"fmt"
	"strings"

	"workflow-content/internal/content/controls"
	"workflow-content/internal/content/paths"
	"workflow-content/internal/content/placeholders"
	"workflow-content/internal/content/variables"
	"workflow-content/internal/models"
)

func illegalVariableIssues(validated map[string]*placeholders.Validated) models.Issues {
	issues := models.Issues{}
	for field, v := range validated {
		for placeholder, reason := range v.ProblematicPlaceholders {
			message := reason
			if reason == placeholders.MsgNotSupported {
				message = fmt.Sprintf("Variable %s is not supported.", placeholder)
			}
			issues[field] = append(issues[field], models.ContentIssue{
				IssueType:    models.IssueIllegalVariable,
				Message:      message,
				VariableName: placeholder,
			})
		}
	}
	return issues
}

// missingPayloadIssues reports payload variables that the synthesized payload
// provides but an explicit preview payload leaves out.
func missingPayloadIssues(validated map[string]*placeholders.Validated, defaults, preview map[string]interface{}) models.Issues {
	issues := models.Issues{}
	if len(preview) == 0 {
		return issues
	}

	report := func(field, placeholder string) {
		path := variables.TrimBraces(placeholder)
		if !strings.HasPrefix(path, "payload.") {
			return
		}
		if !paths.Has(defaults, path) || paths.Has(preview, path) {
			return
		}
		issues[field] = append(issues[field], models.ContentIssue{
			IssueType:    models.IssueMissingVariableInPayload,
			Message:      fmt.Sprintf("Variable %s is missing in payload", path),
			VariableName: placeholder,
		})
	}

	for field, v := range validated {
		if field == placeholders.PayloadSchemaDefaultsKey {
			continue
		}
		for placeholder := range v.ValidRegularPlaceholdersToDefaultValue {
			report(field, placeholder)
		}
		for iterable := range v.ValidNestedForPlaceholders {
			report(field, iterable)
		}
	}
	return issues
}

// missingControlIssues reports every control with a schema default that the
// submitted values leave out. Such keys pass schema validation through the
// default, so this is the only place they surface.
func missingControlIssues(controlSchema, values map[string]interface{}) models.Issues {
	issues := models.Issues{}
	required := map[string]bool{}
	for _, key := range controls.Required(controlSchema) {
		required[key] = true
	}
	for key := range controls.Defaults(controlSchema) {
		if v, ok := values[key]; ok && v != nil {
			continue
		}
		message := fmt.Sprintf("%s is not set, the default value is used", upperFirst(key))
		if required[key] {
			message = requiredMessage(key)
		}
		issues[key] = append(issues[key], models.ContentIssue{
			IssueType: models.IssueMissingValue,
			Message:   message,
		})
	}
	return issues
}

func requiredMessage(field string) string {
	if field == "" {
		return "Value is required"
	}
	return upperFirst(field) + " is required"
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
