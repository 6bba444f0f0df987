package placeholders

import (
	"workflow-content/internal/content/schema"
	"workflow-content/internal/content/variables"
)

// MsgNotSupported is the reason recorded for a variable the schema does not expose.
const MsgNotSupported = "Variable is not supported."

// Validated splits an aggregation into placeholders that resolve against the
// variable schema and problematic ones keyed by placeholder text.
type Validated struct {
	ValidRegularPlaceholdersToDefaultValue map[string]string            `json:"validRegularPlaceholdersToDefaultValue"`
	ValidNestedForPlaceholders             map[string]map[string]string `json:"validNestedForPlaceholders"`
	ProblematicPlaceholders                map[string]string            `json:"problematicPlaceholders"`
}

// Validate checks every placeholder of every field against root. Placeholders
// rejected by the parser stay problematic without a schema lookup.
func Validate(root *schema.Node, aggregations map[string]*Aggregation) map[string]*Validated {
	out := make(map[string]*Validated, len(aggregations))
	for field, agg := range aggregations {
		v := &Validated{
			ValidRegularPlaceholdersToDefaultValue: map[string]string{},
			ValidNestedForPlaceholders:             map[string]map[string]string{},
			ProblematicPlaceholders:                map[string]string{},
		}
		for raw, reason := range agg.InvalidPlaceholders {
			v.ProblematicPlaceholders[raw] = reason
		}

		for key, def := range agg.RegularPlaceholdersToDefaultValue {
			if legal(root, key) {
				v.ValidRegularPlaceholdersToDefaultValue[key] = def
			} else {
				v.ProblematicPlaceholders[key] = MsgNotSupported
			}
		}

		// loop placeholders are checked in indexed form but reported as written
		for iterable, children := range agg.NestedForPlaceholders {
			if !legal(root, iterable) {
				v.ProblematicPlaceholders[agg.Source(iterable)] = MsgNotSupported
				continue
			}
			valid := map[string]string{}
			for key, def := range children {
				if legal(root, key) {
					valid[key] = def
				} else {
					v.ProblematicPlaceholders[agg.Source(key)] = MsgNotSupported
				}
			}
			v.ValidNestedForPlaceholders[iterable] = valid
		}
		out[field] = v
	}
	return out
}

func legal(root *schema.Node, placeholder string) bool {
	if root == nil {
		return false
	}
	_, ok := root.Resolve(variables.TrimBraces(placeholder))
	return ok
}
