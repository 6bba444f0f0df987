// Package schema models the JSON-Schema tree of variables a step may reference.
package schema

import (
	"encoding/json"
	"fmt"

	"workflow-content/internal/content/paths"
)

const (
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
)

// Node is the subset of JSON Schema the variable resolver reads and writes.
// AdditionalProperties is nil when the keyword is absent.
type Node struct {
	Type                 string           `json:"type,omitempty"`
	Properties           map[string]*Node `json:"properties,omitempty"`
	Items                *Node            `json:"items,omitempty"`
	Required             []string         `json:"required,omitempty"`
	AdditionalProperties *bool            `json:"-"`
	Default              interface{}      `json:"default,omitempty"`
	Format               string           `json:"format,omitempty"`
	Enum                 []interface{}    `json:"enum,omitempty"`
	Description          string           `json:"description,omitempty"`
}

type nodeAlias Node

type nodeJSON struct {
	nodeAlias
	Type                 json.RawMessage `json:"type,omitempty"`
	AdditionalProperties json.RawMessage `json:"additionalProperties,omitempty"`
}

// UnmarshalJSON accepts "type" as a string or a list (the first non-null entry
// wins) and "additionalProperties" as a boolean or a schema, which counts as true.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Node(raw.nodeAlias)

	if len(raw.Type) > 0 {
		var single string
		if err := json.Unmarshal(raw.Type, &single); err == nil {
			n.Type = single
		} else {
			var many []string
			if err := json.Unmarshal(raw.Type, &many); err != nil {
				return fmt.Errorf("schema type: %w", err)
			}
			for _, t := range many {
				if t != "null" {
					n.Type = t
					break
				}
			}
		}
	}

	if len(raw.AdditionalProperties) > 0 {
		var b bool
		if err := json.Unmarshal(raw.AdditionalProperties, &b); err == nil {
			n.AdditionalProperties = &b
		} else {
			t := true
			n.AdditionalProperties = &t
		}
	}
	return nil
}

func (n Node) MarshalJSON() ([]byte, error) {
	out := struct {
		nodeAlias
		AdditionalProperties *bool `json:"additionalProperties,omitempty"`
	}{nodeAlias: nodeAlias(n), AdditionalProperties: n.AdditionalProperties}
	return json.Marshal(out)
}

// FromMap decodes a JSON-shaped schema value.
func FromMap(m map[string]interface{}) (*Node, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var n Node
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ToMap encodes the node back into a JSON-shaped value.
func (n *Node) ToMap() (map[string]interface{}, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func Object(props map[string]*Node, additional bool) *Node {
	if props == nil {
		props = map[string]*Node{}
	}
	return &Node{Type: TypeObject, Properties: props, AdditionalProperties: Bool(additional)}
}

func Bool(b bool) *bool {
	return &b
}

// AllowsAdditional reports whether undeclared properties are accepted below n.
func (n *Node) AllowsAdditional() bool {
	return n.AdditionalProperties != nil && *n.AdditionalProperties
}

func (n *Node) isArray() bool {
	return n.Type == TypeArray || (n.Type == "" && n.Items != nil)
}

// Resolve walks path through the tree. legal is false when some segment is
// neither declared nor covered by an ancestor with additionalProperties true.
// declared is the schema node the full path lands on, or nil when the path was
// accepted through additionalProperties.
func (n *Node) Resolve(path string) (declared *Node, legal bool) {
	cur := n
	for _, seg := range paths.Split(path) {
		if cur == nil {
			return nil, false
		}
		if cur.isArray() {
			if _, ok := paths.Index(seg); ok || seg == "first" || seg == "last" {
				if cur.Items == nil {
					return nil, true
				}
				cur = cur.Items
				continue
			}
			if seg == "size" {
				return &Node{Type: TypeInteger}, true
			}
			return nil, false
		}
		if child, ok := cur.Properties[seg]; ok {
			cur = child
			continue
		}
		if cur.AllowsAdditional() {
			return nil, true
		}
		return nil, false
	}
	return cur, true
}

// Defaults collects the declared default of every leaf as dot-path -> value.
func (n *Node) Defaults() map[string]interface{} {
	out := map[string]interface{}{}
	n.collectDefaults("", out)
	return out
}

func (n *Node) collectDefaults(prefix string, out map[string]interface{}) {
	if n == nil {
		return
	}
	if n.Default != nil && prefix != "" {
		out[prefix] = n.Default
		return
	}
	for name, child := range n.Properties {
		p := name
		if prefix != "" {
			p = prefix + "." + name
		}
		child.collectDefaults(p, out)
	}
}
