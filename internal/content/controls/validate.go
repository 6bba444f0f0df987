package controls

import (
	"fmt"
	"sort"
	"strings"

	"workflow-content/internal/common/validation"
	"workflow-content/internal/models"
)

// Validate checks values against the control schema and maps each violation to
// a content issue keyed by field path. Violations on empty values are reported
// as missing values rather than illegal content.
func Validate(controlSchema, values map[string]interface{}) (models.Issues, error) {
	result, err := validation.ValidateDocument(controlSchema, values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidControlSchema, err)
	}

	issues := models.Issues{}
	seen := map[string]bool{}
	for _, e := range result.Errors {
		var issue models.ContentIssue
		if e.Code == validation.CodeRequired || isEmpty(e.Value) {
			issue = models.ContentIssue{IssueType: models.IssueMissingValue, Message: requiredMessage(e.Field)}
		} else {
			issue = models.ContentIssue{IssueType: models.IssueIllegalVariable, Message: e.Message}
		}

		dedupe := e.Field + "\x00" + string(issue.IssueType) + "\x00" + issue.Message
		if seen[dedupe] {
			continue
		}
		seen[dedupe] = true
		issues[e.Field] = append(issues[e.Field], issue)
	}
	return issues, nil
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func requiredMessage(field string) string {
	name := field
	if i := strings.LastIndexAny(name, ".]"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		name = field
	}
	if name == "" {
		return "Value is required"
	}
	return strings.ToUpper(name[:1]) + name[1:] + " is required"
}

// Defaults extracts the default of every property the control schema declares,
// nesting object defaults like the values they describe.
func Defaults(controlSchema map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	props, _ := controlSchema["properties"].(map[string]interface{})
	for name, raw := range props {
		prop, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if def, ok := prop["default"]; ok {
			out[name] = def
			continue
		}
		if nested := Defaults(prop); len(nested) > 0 {
			out[name] = nested
		}
	}
	return out
}

// Required lists the top-level properties the control schema requires, sorted.
func Required(controlSchema map[string]interface{}) []string {
	var out []string
	switch req := controlSchema["required"].(type) {
	case []interface{}:
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, req...)
	}
	sort.Strings(out)
	return out
}
