// Package paths reads dot-paths such as payload.items[0].name out of JSON-shaped data.
package paths

import (
	"strconv"
	"strings"
)

// Split turns "a.b[0].c" or "a.b.0.c" into ["a" "b" "0" "c"].
func Split(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")
	parts := strings.Split(path, ".")
	out := parts[:0]
	for _, p := range parts {
		p = strings.Trim(p, `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Index reports whether a segment addresses an array element.
func Index(seg string) (int, bool) {
	if seg == "" {
		return 0, false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(seg)
	return n, err == nil
}

// Get walks data along path. Maps are indexed by key, slices by numeric segment.
func Get(data interface{}, path string) (interface{}, bool) {
	cur := data
	for _, seg := range Split(path) {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []interface{}:
			idx, ok := Index(seg)
			if !ok || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Has reports whether path resolves to a value, including an explicit nil.
func Has(data interface{}, path string) bool {
	_, ok := Get(data, path)
	return ok
}
