package document

import (
	"fmt"
	"strings"
)

// Hydrate rewrites structural nodes into plain Liquid-parseable content. Loop
// nodes become paragraphs that keep their each attribute and variable nodes
// become text nodes holding the {{ }} output. The input is left untouched.
func Hydrate(doc *Node) *Node {
	if doc == nil {
		return nil
	}
	out := doc.shallow()
	switch {
	case doc.IsLoop():
		out.Type = TypeParagraph
	case doc.Type == TypeVariable:
		out.Type = TypeText
		out.Text = variableOutput(doc)
		delete(out.Attrs, AttrID)
		delete(out.Attrs, AttrFallback)
		if len(out.Attrs) == 0 {
			out.Attrs = nil
		}
	}
	if doc.Content != nil {
		out.Content = make([]*Node, 0, len(doc.Content))
		for _, c := range doc.Content {
			out.Content = append(out.Content, Hydrate(c))
		}
	}
	return out
}

func variableOutput(n *Node) string {
	id, _ := n.attr(AttrID)
	id = Unwrap(id)
	fallback, ok := n.attr(AttrFallback)
	if !ok {
		return "{{" + id + "}}"
	}
	if strings.Contains(fallback, "'") {
		return fmt.Sprintf(`{{ %s | default: "%s" }}`, id, fallback)
	}
	return fmt.Sprintf("{{ %s | default: '%s' }}", id, fallback)
}

// Unwrap strips a surrounding {{ }} from an attribute reference.
func Unwrap(ref string) string {
	s := strings.TrimSpace(ref)
	if strings.HasPrefix(s, "{{") && strings.HasSuffix(s, "}}") {
		s = strings.TrimSpace(s[2 : len(s)-2])
	}
	return s
}

// Fragment is a piece of template text found in a document together with the
// iterables of the loops enclosing it, outermost first. Iterable marks the
// {{ }} reference of a loop's own iterable.
type Fragment struct {
	Text     string
	Loops    []string
	Iterable bool
}

// Fragments lists every template-bearing string in the document: text nodes,
// loop iterables, show conditions and string attributes holding {{ }} outputs.
func Fragments(doc *Node) []Fragment {
	var out []Fragment
	collectFragments(doc, nil, &out)
	return out
}

func collectFragments(n *Node, loops []string, out *[]Fragment) {
	if n == nil {
		return
	}
	if n.Type == TypeVariable {
		*out = append(*out, Fragment{Text: variableOutput(n), Loops: loops})
	}
	if n.Text != "" {
		*out = append(*out, Fragment{Text: n.Text, Loops: loops})
	}
	if key, ok := n.attr(AttrShowIfKey); ok {
		*out = append(*out, Fragment{Text: "{{" + Unwrap(key) + "}}", Loops: loops})
	}
	for _, k := range sortedKeys(n.Attrs) {
		switch k {
		case AttrShowIfKey, AttrEach, AttrID, AttrFallback:
			continue
		}
		if s, ok := n.Attrs[k].(string); ok && strings.Contains(s, "{{") {
			*out = append(*out, Fragment{Text: s, Loops: loops})
		}
	}

	childLoops := loops
	if each, ok := n.attr(AttrEach); ok {
		iterable := Unwrap(each)
		*out = append(*out, Fragment{Text: "{{" + iterable + "}}", Loops: loops, Iterable: true})
		childLoops = append(append([]string(nil), loops...), iterable)
	}
	for _, c := range n.Content {
		collectFragments(c, childLoops, out)
	}
}

// MapText returns a copy of doc with fn applied to every text and string attribute.
func MapText(doc *Node, fn func(string) string) *Node {
	if doc == nil {
		return nil
	}
	out := doc.shallow()
	if out.Text != "" {
		out.Text = fn(out.Text)
	}
	for k, v := range out.Attrs {
		if s, ok := v.(string); ok {
			out.Attrs[k] = fn(s)
		}
	}
	if doc.Content != nil {
		out.Content = make([]*Node, len(doc.Content))
		for i, c := range doc.Content {
			out.Content[i] = MapText(c, fn)
		}
	}
	return out
}
