// Package controls normalizes and validates the control values of a step.
package controls

import (
	"strconv"
	"strings"

	"workflow-content/internal/models"
)

// EmptyDocument is the rich-text body used when an email body was left empty.
const EmptyDocument = `{"type":"doc","content":[{"type":"paragraph"}]}`

// Sanitizer reduces control values to the canonical shape of one step type.
type Sanitizer interface {
	Sanitize(values map[string]interface{}) map[string]interface{}
}

type shape struct {
	keys      []string
	normalize func(map[string]interface{})
}

func (s shape) Sanitize(values map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	if s.keys == nil {
		for k, v := range values {
			if v != nil {
				out[k] = cloneValue(v)
			}
		}
	} else {
		for _, k := range s.keys {
			if v, ok := values[k]; ok && v != nil {
				out[k] = cloneValue(v)
			}
		}
	}
	if s.normalize != nil {
		s.normalize(out)
	}
	return out
}

var sanitizers = map[models.StepType]Sanitizer{
	models.StepTypeEmail: shape{
		keys:      []string{"subject", "body", "editorType", "layoutId", "disableOutputSanitization", "skip"},
		normalize: normalizeEmail,
	},
	models.StepTypeInApp: shape{
		keys:      []string{"subject", "body", "avatar", "primaryAction", "secondaryAction", "redirect", "data", "disableOutputSanitization", "skip"},
		normalize: normalizeInApp,
	},
	models.StepTypeSMS:  shape{keys: []string{"body", "skip"}},
	models.StepTypePush: shape{keys: []string{"subject", "body", "skip"}},
	models.StepTypeChat: shape{keys: []string{"body", "skip"}},
	models.StepTypeDigest: shape{
		keys:      []string{"amount", "unit", "digestKey", "cron", "lookBackWindow", "skip"},
		normalize: normalizeDigest,
	},
	models.StepTypeDelay: shape{
		keys:      []string{"type", "amount", "unit", "skip"},
		normalize: normalizeDelay,
	},
	models.StepTypeCustom:  shape{},
	models.StepTypeTrigger: shape{},
}

// Sanitize returns a copy of values in the canonical shape of stepType.
// Unknown step types keep every non-nil value.
func Sanitize(values map[string]interface{}, stepType models.StepType) map[string]interface{} {
	s, ok := sanitizers[stepType]
	if !ok {
		s = shape{}
	}
	return s.Sanitize(values)
}

func normalizeEmail(v map[string]interface{}) {
	if editor, _ := v["editorType"].(string); editor == "html" {
		return
	}
	// only an absent or blank body is replaced; other shapes are left for the
	// collector to reject
	switch body := v["body"].(type) {
	case nil:
		v["body"] = EmptyDocument
	case string:
		if strings.TrimSpace(body) == "" {
			v["body"] = EmptyDocument
		}
	}
}

func normalizeInApp(v map[string]interface{}) {
	for _, key := range []string{"primaryAction", "secondaryAction"} {
		action, ok := v[key].(map[string]interface{})
		if !ok {
			delete(v, key)
			continue
		}
		if label, _ := action["label"].(string); strings.TrimSpace(label) == "" {
			delete(v, key)
		}
	}
	if redirect, ok := v["redirect"].(map[string]interface{}); ok {
		if url, _ := redirect["url"].(string); url == "" {
			delete(v, "redirect")
		}
	}
}

func normalizeDigest(v map[string]interface{}) {
	if cron, _ := v["cron"].(string); cron != "" {
		delete(v, "amount")
		delete(v, "unit")
		delete(v, "lookBackWindow")
		return
	}
	coerceNumber(v, "amount")
	if window, ok := v["lookBackWindow"].(map[string]interface{}); ok {
		coerceNumber(window, "amount")
	}
}

func normalizeDelay(v map[string]interface{}) {
	if _, ok := v["type"]; !ok {
		v["type"] = "regular"
	}
	coerceNumber(v, "amount")
}

// coerceNumber turns a numeric string under key into a number. Placeholders
// and other text are left for schema validation to report.
func coerceNumber(v map[string]interface{}, key string) {
	s, ok := v[key].(string)
	if !ok {
		return
	}
	s = strings.TrimSpace(s)
	if s == "" {
		delete(v, key)
		return
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		v[key] = f
	}
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	}
	return v
}
