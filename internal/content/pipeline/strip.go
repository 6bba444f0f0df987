package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"workflow-content/internal/content/document"
	"workflow-content/internal/content/placeholders"
	"workflow-content/internal/content/variables"
)

// stripProblematic removes every problematic placeholder from the string leaves
// of values, including text inside rich-text documents. Plain strings are
// trimmed afterwards.
func stripProblematic(values map[string]interface{}, validated map[string]*placeholders.Validated) (map[string]interface{}, error) {
	patterns := problematicPatterns(validated)
	remove := func(s string) string {
		for _, re := range patterns {
			s = re.ReplaceAllString(s, "")
		}
		return s
	}

	out, err := stripValue(values, remove, len(patterns) > 0)
	if err != nil {
		return nil, err
	}
	m, _ := out.(map[string]interface{})
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

func problematicPatterns(validated map[string]*placeholders.Validated) []*regexp.Regexp {
	reasons := map[string]string{}
	for _, v := range validated {
		for placeholder, reason := range v.ProblematicPlaceholders {
			reasons[placeholder] = reason
		}
	}
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	patterns := make([]*regexp.Regexp, 0, len(keys))
	for _, k := range keys {
		if reasons[k] == placeholders.MsgNotSupported {
			patterns = append(patterns, variables.PlaceholderPattern(k))
		} else {
			patterns = append(patterns, regexp.MustCompile(regexp.QuoteMeta(k)))
		}
	}
	return patterns
}

func stripValue(v interface{}, remove func(string) string, active bool) (interface{}, error) {
	switch t := v.(type) {
	case string:
		if document.IsStringified(t) {
			if !active {
				return t, nil
			}
			doc, err := document.Parse(t)
			if err != nil {
				return nil, err
			}
			return document.Marshal(document.MapText(doc, remove))
		}
		return strings.TrimSpace(remove(t)), nil
	case map[string]interface{}:
		if document.IsDocument(t) {
			if !active {
				return t, nil
			}
			doc, err := document.Parse(t)
			if err != nil {
				return nil, err
			}
			return document.ToMap(document.MapText(doc, remove))
		}
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			s, err := stripValue(item, remove, active)
			if err != nil {
				return nil, err
			}
			out[k] = s
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			s, err := stripValue(item, remove, active)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil
	}
	return v, nil
}
