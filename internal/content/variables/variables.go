// Package variables extracts template variable references from {{ }} outputs.
package variables

import (
	"regexp"
	"strings"
)

const (
	// MsgMissingNamespace is reported for single-token variables such as {{name}}.
	MsgMissingNamespace = "Variables must include a namespace (e.g. payload.%s)"
	// MsgContainsSpaces is reported when an identifier chain is split by whitespace.
	MsgContainsSpaces = "Variables with spaces are not supported"
	// MsgInvalidExpression is reported when the expression is not a variable reference.
	MsgInvalidExpression = "Invalid variable expression"
)

var outputPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Variable is a single reference found in a template. Name is the canonical
// dot-path for valid references; for grammar failures it is the raw output text.
type Variable struct {
	Name    string `json:"name"`
	Context string `json:"context,omitempty"`
	Message string `json:"message,omitempty"`
	// Source is the {{ ... }} occurrence the variable was read from.
	Source string `json:"-"`
	// Filters is the raw filter chain after the first top-level pipe.
	Filters string `json:"-"`
}

type Result struct {
	ValidVariables   []Variable `json:"validVariables"`
	InvalidVariables []Variable `json:"invalidVariables"`
}

// Placeholder returns the normalized placeholder literal for a valid variable.
func (v Variable) Placeholder() string {
	return "{{" + v.Name + "}}"
}

// Segments splits a canonical dot-path into its segments.
func Segments(name string) []string {
	if name == "" {
		return nil
	}
	return strings.Split(name, ".")
}

// TrimBraces strips a surrounding {{ }} and whitespace from a placeholder literal.
func TrimBraces(placeholder string) string {
	s := strings.TrimSpace(placeholder)
	if strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") {
		s = s[2 : len(s)-2]
	}
	if i := indexTopLevelPipe(s); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// PlaceholderPattern matches every textual spelling of the placeholder: any inner
// whitespace, an optional filter chain, and numeric segments written as .0 or [0].
func PlaceholderPattern(placeholder string) *regexp.Regexp {
	name := TrimBraces(placeholder)
	var b strings.Builder
	b.WriteString(`\{\{-?\s*`)
	for i, seg := range strings.Split(name, ".") {
		if isIndex(seg) {
			b.WriteString(`(?:\.` + seg + `|\[` + seg + `\])`)
			continue
		}
		if i > 0 {
			b.WriteString(`\.`)
		}
		for j, word := range strings.Fields(seg) {
			if j > 0 {
				b.WriteString(`\s+`)
			}
			b.WriteString(regexp.QuoteMeta(word))
		}
	}
	b.WriteString(`\s*(?:\|[^{}]*)?-?\}\}`)
	return regexp.MustCompile(b.String())
}

func isIndex(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
