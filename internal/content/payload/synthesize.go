// Package payload builds example payloads for previews from validated placeholders.
package payload

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"workflow-content/internal/content/paths"
	"workflow-content/internal/content/placeholders"
	"workflow-content/internal/content/variables"
)

// MaxDepth bounds the nesting of synthesized payloads.
const MaxDepth = 10

// MaxArrayLength bounds arrays built from numeric segments. A node with a
// larger index keeps its children as object keys.
const MaxArrayLength = 100

var ErrDepthExceeded = errors.New("PAYLOAD_DEPTH_EXCEEDED")

type entry struct {
	def      string
	concrete bool
	iterable bool
}

// Synthesize turns every valid placeholder into a nested example object. A leaf
// holds the recorded default or, without one, the placeholder text itself.
// Numeric segments become array positions and loop iterables become one
// element arrays.
func Synthesize(validated map[string]*placeholders.Validated) (map[string]interface{}, error) {
	entries := map[string]*entry{}
	add := func(key, def string, iterable bool) {
		path := variables.TrimBraces(key)
		e, ok := entries[path]
		if !ok {
			e = &entry{def: def}
			entries[path] = e
		}
		if def != key && !e.concrete {
			e.def, e.concrete = def, true
		}
		e.iterable = e.iterable || iterable
	}

	fields := make([]string, 0, len(validated))
	for f := range validated {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		v := validated[f]
		for _, key := range sortedKeys(v.ValidRegularPlaceholdersToDefaultValue) {
			add(key, v.ValidRegularPlaceholdersToDefaultValue[key], false)
		}
		for _, iterable := range sortedKeys(v.ValidNestedForPlaceholders) {
			add(iterable, iterable, true)
			children := v.ValidNestedForPlaceholders[iterable]
			for _, key := range sortedKeys(children) {
				add(key, children[key], false)
			}
		}
	}

	root := &tree{}
	for _, path := range sortedKeys(entries) {
		segs := paths.Split(path)
		if len(segs) > MaxDepth {
			return nil, fmt.Errorf("%w: %s has %d segments, limit is %d", ErrDepthExceeded, path, len(segs), MaxDepth)
		}
		e := entries[path]
		root.insert(segs, e.def, e.iterable)
	}

	out, _ := root.value().(map[string]interface{})
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}

type tree struct {
	children map[string]*tree
	order    []string
	leaf     interface{}
	hasLeaf  bool
	array    bool
}

func (t *tree) child(seg string) *tree {
	if t.children == nil {
		t.children = map[string]*tree{}
	}
	c, ok := t.children[seg]
	if !ok {
		c = &tree{}
		t.children[seg] = c
		t.order = append(t.order, seg)
	}
	return c
}

func (t *tree) insert(segs []string, def string, iterable bool) {
	cur := t
	for _, seg := range segs {
		if _, ok := paths.Index(seg); ok && (len(cur.children) == 0 || cur.array) {
			cur.array = true
		}
		cur = cur.child(seg)
	}
	if iterable {
		cur.array = true
		cur.child("0")
		return
	}
	if !cur.hasLeaf {
		cur.leaf, cur.hasLeaf = def, true
	}
}

func (t *tree) value() interface{} {
	if len(t.children) == 0 {
		if t.array {
			return []interface{}{}
		}
		if t.hasLeaf {
			return t.leaf
		}
		return map[string]interface{}{}
	}

	if size, ok := t.arraySize(); ok {
		out := make([]interface{}, size)
		for _, seg := range t.order {
			idx, _ := paths.Index(seg)
			out[idx] = t.children[seg].value()
		}
		return out
	}

	out := make(map[string]interface{}, len(t.children))
	for seg, c := range t.children {
		out[seg] = c.value()
	}
	return out
}

// arraySize reports the length of an array node. Nodes mixing numeric and
// named children, or indexing past MaxArrayLength, are treated as objects.
func (t *tree) arraySize() (int, bool) {
	if !t.array {
		return 0, false
	}
	size := 0
	for _, seg := range t.order {
		idx, ok := paths.Index(seg)
		if !ok || idx >= MaxArrayLength {
			return 0, false
		}
		if idx+1 > size {
			size = idx + 1
		}
	}
	return size, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Placeholder returns the literal stand-in used for an unknown value at path.
func Placeholder(path string) string {
	return "{{" + strings.TrimSpace(path) + "}}"
}
