// Package document handles the rich-text node tree used for email bodies:
// envelope validation, hydration into Liquid text and loop/condition expansion.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	TypeDoc         = "doc"
	TypeParagraph   = "paragraph"
	TypeText        = "text"
	TypeVariable    = "variable"
	TypeFor         = "for"
	TypeEach        = "each"
	TypeRepeat      = "repeat"
	TypeOrderedList = "orderedList"
	TypeBulletList  = "bulletList"

	AttrID        = "id"
	AttrFallback  = "fallback"
	AttrEach      = "each"
	AttrShowIfKey = "showIfKey"
)

// ErrInvalidDocument is returned when a value does not match the document envelope.
var ErrInvalidDocument = errors.New("DOCUMENT_SCHEMA_INVALID")

type Node struct {
	Type    string                   `json:"type"`
	Attrs   map[string]interface{}   `json:"attrs,omitempty"`
	Content []*Node                  `json:"content,omitempty"`
	Text    string                   `json:"text,omitempty"`
	Marks   []map[string]interface{} `json:"marks,omitempty"`
}

const envelopeSchema = `{
  "type": "object",
  "required": ["type", "content"],
  "properties": {
    "type": {"enum": ["doc"]},
    "content": {"type": "array", "items": {"$ref": "#/definitions/node"}}
  },
  "definitions": {
    "node": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"type": "string"},
        "attrs": {"type": ["object", "null"]},
        "text": {"type": "string"},
        "marks": {"type": "array"},
        "content": {"type": "array", "items": {"$ref": "#/definitions/node"}}
      }
    }
  }
}`

var envelope = mustSchema(envelopeSchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("document envelope schema: %v", err))
	}
	return s
}

// Parse accepts a serialized document or its decoded map form and validates the envelope.
func Parse(raw interface{}) (*Node, error) {
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case map[string]interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		data = b
	case *Node:
		if v == nil {
			return nil, fmt.Errorf("%w: nil document", ErrInvalidDocument)
		}
		return v.Clone(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidDocument, raw)
	}

	result, err := envelope.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			msgs[i] = desc.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}

	var doc Node
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &doc, nil
}

// IsStringified reports whether s is a serialized document.
func IsStringified(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.Contains(s, `"doc"`) {
		return false
	}
	var probe map[string]interface{}
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return false
	}
	return IsDocument(probe)
}

// IsDocument reports whether v is a document either serialized or decoded.
func IsDocument(v interface{}) bool {
	switch d := v.(type) {
	case string:
		return IsStringified(d)
	case map[string]interface{}:
		if d["type"] != TypeDoc {
			return false
		}
		_, ok := d["content"].([]interface{})
		return ok
	case *Node:
		return d != nil && d.Type == TypeDoc
	}
	return false
}

// Marshal serializes the document to its JSON string form.
func Marshal(doc *Node) (string, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToMap converts the document into its decoded JSON form.
func ToMap(doc *Node) (map[string]interface{}, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Clone returns a deep copy that shares nothing with n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := n.shallow()
	if n.Content != nil {
		out.Content = make([]*Node, len(n.Content))
		for i, c := range n.Content {
			out.Content[i] = c.Clone()
		}
	}
	return out
}

// shallow copies n with its own attrs and marks but the same children slice.
func (n *Node) shallow() *Node {
	out := &Node{Type: n.Type, Text: n.Text, Content: n.Content}
	if n.Attrs != nil {
		out.Attrs = deepCopyMap(n.Attrs)
	}
	if n.Marks != nil {
		out.Marks = make([]map[string]interface{}, len(n.Marks))
		for i, m := range n.Marks {
			out.Marks[i] = deepCopyMap(m)
		}
	}
	return out
}

func (n *Node) attr(key string) (string, bool) {
	if n.Attrs == nil {
		return "", false
	}
	s, ok := n.Attrs[key].(string)
	return s, ok && s != ""
}

// IsLoop reports whether the node repeats its content per iterable element.
func (n *Node) IsLoop() bool {
	switch n.Type {
	case TypeFor, TypeEach, TypeRepeat:
		return true
	}
	return false
}

func isList(n *Node) bool {
	return n.Type == TypeOrderedList || n.Type == TypeBulletList
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	}
	return v
}
