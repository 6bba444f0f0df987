// Package placeholders collects the {{ }} placeholders of a step's control
// values and checks them against the step's variable schema.
package placeholders

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"workflow-content/internal/content/document"
	"workflow-content/internal/content/schema"
	"workflow-content/internal/content/variables"
)

// PayloadSchemaDefaultsKey is the synthetic field holding placeholders already
// satisfied by a declared payload schema.
const PayloadSchemaDefaultsKey = "_payloadSchemaDefaults"

// ErrUnsupportedControlValue is returned for a leaf that is neither a primitive
// nor a rich-text document.
var ErrUnsupportedControlValue = errors.New("CONTROL_VALUE_SHAPE_INVALID")

// Aggregation holds the placeholders found in one control-value leaf. Regular
// placeholders map to their inline default, or to themselves when none is
// given. Nested placeholders are those used inside a loop body relative to the
// loop iterable, written with an explicit .0 index. Sources maps such an
// indexed key back to the placeholder as the author wrote it.
type Aggregation struct {
	RegularPlaceholdersToDefaultValue map[string]string            `json:"regularPlaceholdersToDefaultValue"`
	NestedForPlaceholders             map[string]map[string]string `json:"nestedForPlaceholders"`
	InvalidPlaceholders               map[string]string            `json:"invalidPlaceholders,omitempty"`
	Sources                           map[string]string            `json:"sources,omitempty"`
}

// Source returns the authored spelling of key.
func (a *Aggregation) Source(key string) string {
	if s, ok := a.Sources[key]; ok {
		return s
	}
	return key
}

func newAggregation() *Aggregation {
	return &Aggregation{
		RegularPlaceholdersToDefaultValue: map[string]string{},
		NestedForPlaceholders:             map[string]map[string]string{},
		InvalidPlaceholders:               map[string]string{},
		Sources:                           map[string]string{},
	}
}

// Options tunes collection. PayloadSchema is set for externally authored
// workflows whose payload is described by user code.
type Options struct {
	PayloadSchema *schema.Node
}

type Collector struct {
	parser *variables.Parser
}

func NewCollector(parser *variables.Parser) *Collector {
	return &Collector{parser: parser}
}

// Collect returns one aggregation per flattened control-value leaf.
func (c *Collector) Collect(values map[string]interface{}, opts Options) (map[string]*Aggregation, error) {
	out := map[string]*Aggregation{}
	err := flatten("", values, func(path string, leaf interface{}) error {
		agg, err := c.collectLeaf(leaf)
		if err != nil {
			return fmt.Errorf("control value %q: %w", path, err)
		}
		out[path] = agg
		return nil
	})
	if err != nil {
		return nil, err
	}

	if opts.PayloadSchema != nil {
		extractSchemaDefaults(out, opts.PayloadSchema)
	}
	return out, nil
}

// References implements schema.ReferenceSource.
func (c *Collector) References(values map[string]interface{}) ([]schema.Reference, error) {
	aggs, err := c.Collect(values, Options{})
	if err != nil {
		return nil, err
	}
	var refs []schema.Reference
	for _, agg := range aggs {
		for key, def := range agg.RegularPlaceholdersToDefaultValue {
			refs = append(refs, reference(key, def, false))
		}
		for iterable, children := range agg.NestedForPlaceholders {
			refs = append(refs, reference(iterable, iterable, true))
			for key, def := range children {
				refs = append(refs, reference(key, def, false))
			}
		}
	}
	return refs, nil
}

func reference(key, def string, iterable bool) schema.Reference {
	ref := schema.Reference{Path: variables.TrimBraces(key), Iterable: iterable}
	if def != key {
		ref.Default = def
	}
	return ref
}

func (c *Collector) collectLeaf(leaf interface{}) (*Aggregation, error) {
	agg := newAggregation()
	switch v := leaf.(type) {
	case nil:
		return agg, nil
	case string:
		if document.IsStringified(v) {
			return c.collectDocument(v)
		}
		c.addText(agg, v, nil, false)
	case map[string]interface{}:
		return c.collectDocument(v)
	case bool:
		c.addText(agg, strconv.FormatBool(v), nil, false)
	case float64:
		c.addText(agg, strconv.FormatFloat(v, 'f', -1, 64), nil, false)
	case int, int32, int64, float32:
		c.addText(agg, fmt.Sprint(v), nil, false)
	case json.Number:
		c.addText(agg, v.String(), nil, false)
	default:
		return nil, fmt.Errorf("%w: unexpected %T", ErrUnsupportedControlValue, leaf)
	}
	return agg, nil
}

func (c *Collector) collectDocument(raw interface{}) (*Aggregation, error) {
	doc, err := document.Parse(raw)
	if err != nil {
		return nil, err
	}
	agg := newAggregation()
	for _, frag := range document.Fragments(document.Hydrate(doc)) {
		c.addText(agg, frag.Text, frag.Loops, frag.Iterable)
	}
	return agg, nil
}

func (c *Collector) addText(agg *Aggregation, text string, loops []string, iterable bool) {
	result := c.parser.Parse(text)
	for _, v := range result.InvalidVariables {
		agg.InvalidPlaceholders[v.Source] = v.Message
	}

	indexed := indexLoops(loops)
	for _, v := range result.ValidVariables {
		key := v.Placeholder()
		def, ok := variables.DefaultValue(v.Filters)
		if !ok {
			def = key
		}

		loop, name := enclosingLoop(v.Name, loops, indexed)
		if name != v.Name {
			agg.Sources["{{"+name+"}}"] = key
		}
		if iterable {
			if _, seen := agg.NestedForPlaceholders["{{"+name+"}}"]; !seen {
				agg.NestedForPlaceholders["{{"+name+"}}"] = map[string]string{}
			}
			continue
		}
		if loop == "" {
			if _, seen := agg.RegularPlaceholdersToDefaultValue[key]; !seen || ok {
				agg.RegularPlaceholdersToDefaultValue[key] = def
			}
			continue
		}

		loopKey := "{{" + loop + "}}"
		children := agg.NestedForPlaceholders[loopKey]
		if children == nil {
			children = map[string]string{}
			agg.NestedForPlaceholders[loopKey] = children
		}
		childKey := "{{" + name + "}}"
		if !ok {
			def = childKey
		}
		children[childKey] = def
	}
}

// indexLoops rewrites each loop iterable so that references into an enclosing
// loop carry its .0 index, e.g. [a.items a.items.tags] -> [a.items a.items.0.tags].
func indexLoops(loops []string) []string {
	out := make([]string, len(loops))
	for i, l := range loops {
		name := canonical(l)
		for j := i - 1; j >= 0; j-- {
			if rest, ok := strings.CutPrefix(name, canonical(loops[j])+"."); ok {
				name = out[j] + ".0." + rest
				break
			}
		}
		out[i] = name
	}
	return out
}

// enclosingLoop finds the innermost loop whose iterable prefixes name and
// returns that loop's indexed iterable with the indexed variable name.
func enclosingLoop(name string, loops, indexed []string) (iterable, indexedName string) {
	for i := len(loops) - 1; i >= 0; i-- {
		if rest, ok := strings.CutPrefix(name, canonical(loops[i])+"."); ok {
			return indexed[i], indexed[i] + ".0." + rest
		}
	}
	return "", name
}

func canonical(path string) string {
	return strings.ReplaceAll(strings.ReplaceAll(path, "[", "."), "]", "")
}

// extractSchemaDefaults moves placeholders covered by a declared payload schema
// property into the synthetic PayloadSchemaDefaultsKey aggregation, seeded with
// every default the schema declares.
func extractSchemaDefaults(aggs map[string]*Aggregation, payloadSchema *schema.Node) {
	synthetic := newAggregation()
	for path, value := range payloadSchema.Defaults() {
		synthetic.RegularPlaceholdersToDefaultValue["{{payload."+path+"}}"] = stringify(value)
	}

	for _, agg := range aggs {
		for key, def := range agg.RegularPlaceholdersToDefaultValue {
			rest, ok := strings.CutPrefix(variables.TrimBraces(key), "payload.")
			if !ok {
				continue
			}
			declared, legal := payloadSchema.Resolve(rest)
			if !legal || declared == nil {
				continue
			}
			delete(agg.RegularPlaceholdersToDefaultValue, key)
			if _, exists := synthetic.RegularPlaceholdersToDefaultValue[key]; !exists {
				synthetic.RegularPlaceholdersToDefaultValue[key] = def
			}
		}
	}
	aggs[PayloadSchemaDefaultsKey] = synthetic
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// flatten visits every leaf of values. Arrays contribute [n] segments and
// rich-text documents are leaves.
func flatten(prefix string, value interface{}, visit func(string, interface{}) error) error {
	switch v := value.(type) {
	case map[string]interface{}:
		if prefix != "" && document.IsDocument(v) {
			return visit(prefix, v)
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			if err := flatten(p, v[k], visit); err != nil {
				return err
			}
		}
		return nil
	case []interface{}:
		for i, item := range v {
			if err := flatten(fmt.Sprintf("%s[%d]", prefix, i), item, visit); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(prefix, value)
}
