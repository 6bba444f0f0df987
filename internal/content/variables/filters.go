package variables

import "strings"

// DefaultValue returns the argument of a `default:` filter in a filter chain.
func DefaultValue(filters string) (string, bool) {
	for filters != "" {
		part := filters
		if i := indexTopLevelPipe(filters); i >= 0 {
			part, filters = filters[:i], filters[i+1:]
		} else {
			filters = ""
		}

		name, arg, found := strings.Cut(strings.TrimSpace(part), ":")
		if !found || strings.TrimSpace(name) != "default" {
			continue
		}
		arg = strings.TrimSpace(arg)
		if comma := indexTopLevelComma(arg); comma >= 0 {
			arg = strings.TrimSpace(arg[:comma])
		}
		return unquote(arg), true
	}
	return "", false
}

func indexTopLevelComma(s string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == ',':
			return i
		}
	}
	return -1
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
