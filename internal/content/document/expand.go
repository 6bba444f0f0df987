package document

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"workflow-content/internal/content/liquid"
	"workflow-content/internal/content/paths"
)

var outputPattern = regexp.MustCompile(`\{\{[^{}]*\}\}`)

// Expander resolves loops and show conditions against concrete data.
type Expander struct {
	engine *liquid.Engine
}

func NewExpander(engine *liquid.Engine) *Expander {
	return &Expander{engine: engine}
}

// Expand returns a new tree in which every loop node is replaced by one copy of
// its content per element of the iterable, with references into the iterable
// indexed, and every conditional node is either dropped or kept without its
// condition. doc is never modified.
func (x *Expander) Expand(doc *Node, data map[string]interface{}) (*Node, error) {
	if doc == nil || doc.Type != TypeDoc {
		return nil, fmt.Errorf("%w: root node must be a doc", ErrInvalidDocument)
	}
	content, err := x.expandNodes(doc.Content, data)
	if err != nil {
		return nil, err
	}
	out := doc.shallow()
	out.Content = content
	return out, nil
}

func (x *Expander) expandNodes(nodes []*Node, data map[string]interface{}) ([]*Node, error) {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		expanded, err := x.expandNode(n, data)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

func (x *Expander) expandNode(n *Node, data map[string]interface{}) ([]*Node, error) {
	node := n.shallow()
	if key, ok := node.attr(AttrShowIfKey); ok {
		show, err := x.engine.Truthy(key, data)
		if err != nil {
			return nil, err
		}
		if !show {
			return nil, nil
		}
		delete(node.Attrs, AttrShowIfKey)
	}

	if each, ok := node.attr(AttrEach); ok {
		return x.expandLoop(node, Unwrap(each), data)
	}

	if node.Content != nil {
		content, err := x.expandNodes(node.Content, data)
		if err != nil {
			return nil, err
		}
		node.Content = content
	}
	return []*Node{node}, nil
}

func (x *Expander) expandLoop(loop *Node, iterable string, data map[string]interface{}) ([]*Node, error) {
	count := iterationCount(data, iterable)
	children := loop.Content

	var wrapper *Node
	if len(children) == 1 && isList(children[0]) && len(children[0].Content) == 1 {
		wrapper = children[0].shallow()
		children = children[0].Content
	}

	inOutput := referencePattern(iterable)
	var items []*Node
	for i := 0; i < count; i++ {
		for _, c := range children {
			clone := indexReferences(c, iterable, inOutput, i)
			expanded, err := x.expandNode(clone, data)
			if err != nil {
				return nil, err
			}
			items = append(items, expanded...)
		}
	}

	if wrapper != nil {
		wrapper.Content = items
		if wrapper.Content == nil {
			wrapper.Content = []*Node{}
		}
		return []*Node{wrapper}, nil
	}
	return items, nil
}

// iterationCount is 1 for a missing iterable so previews show a single example row.
func iterationCount(data map[string]interface{}, iterable string) int {
	v, ok := paths.Get(data, iterable)
	if !ok || v == nil {
		return 1
	}
	arr, ok := v.([]interface{})
	if !ok {
		return 0
	}
	return len(arr)
}

// referencePattern matches iterable inside a Liquid output when it is not part
// of a longer path.
func referencePattern(iterable string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^\w.\[\]])` + regexp.QuoteMeta(iterable) + `([^\w\-\[]|$)`)
}

// indexReferences deep-clones n, rewriting references that start with the
// iterable path into their indexed form path[i]. inOutput is referencePattern(iterable).
func indexReferences(n *Node, iterable string, inOutput *regexp.Regexp, i int) *Node {
	indexed := fmt.Sprintf("%s[%d]", iterable, i)

	rewriteText := func(s string) string {
		if !strings.Contains(s, "{{") {
			return s
		}
		return outputPattern.ReplaceAllStringFunc(s, func(out string) string {
			return inOutput.ReplaceAllString(out, "${1}"+indexed+"${2}")
		})
	}
	rewriteRef := func(s string) string {
		ref := Unwrap(s)
		if ref == iterable || strings.HasPrefix(ref, iterable+".") {
			return indexed + ref[len(iterable):]
		}
		return s
	}

	var walk func(*Node) *Node
	walk = func(n *Node) *Node {
		out := n.shallow()
		out.Text = rewriteText(out.Text)
		for k, v := range out.Attrs {
			s, ok := v.(string)
			if !ok {
				continue
			}
			switch k {
			case AttrID, AttrEach, AttrShowIfKey:
				out.Attrs[k] = rewriteRef(s)
			default:
				out.Attrs[k] = rewriteText(s)
			}
		}
		if n.Content != nil {
			out.Content = make([]*Node, len(n.Content))
			for j, c := range n.Content {
				out.Content[j] = walk(c)
			}
		}
		return out
	}
	return walk(n)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
