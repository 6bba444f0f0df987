package schema

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"workflow-content/internal/content/paths"
	"workflow-content/internal/models"
)

var ErrStepNotFound = errors.New("STEP_NOT_FOUND")

// Reference is a variable path used somewhere in a workflow. Default is empty
// when no example value is known. Iterable marks loop targets.
type Reference struct {
	Path     string
	Default  string
	Iterable bool
}

// ReferenceSource lists the variable references found in a step's control values.
type ReferenceSource interface {
	References(values map[string]interface{}) ([]Reference, error)
}

// OutputSchemaProvider returns the runtime output schema of a step type.
type OutputSchemaProvider interface {
	OutputSchema(stepType models.StepType) (map[string]interface{}, bool)
}

type Resolver struct {
	outputs    OutputSchemaProvider
	references ReferenceSource
}

func NewResolver(outputs OutputSchemaProvider, references ReferenceSource) *Resolver {
	return &Resolver{outputs: outputs, references: references}
}

// Resolve builds the variable schema available to stepID: the subscriber, the
// outputs of every step before it and the workflow payload.
func (r *Resolver) Resolve(wf *models.Workflow, stepID string) (*Node, error) {
	idx := wf.StepIndex(stepID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}

	refs, err := r.collect(wf.Steps)
	if err != nil {
		return nil, err
	}

	steps, err := r.stepsSchema(wf.Steps[:idx])
	if err != nil {
		return nil, err
	}

	payload, err := payloadSchema(wf.PayloadSchema, refs)
	if err != nil {
		return nil, err
	}

	return Object(map[string]*Node{
		"subscriber": subscriberSchema(refs),
		"steps":      steps,
		"payload":    payload,
	}, false), nil
}

func (r *Resolver) collect(steps []models.Step) ([]Reference, error) {
	if r.references == nil {
		return nil, nil
	}
	var refs []Reference
	for _, s := range steps {
		found, err := r.references.References(s.ControlValues)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", s.StepID, err)
		}
		refs = append(refs, found...)
	}
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Path != refs[j].Path {
			return refs[i].Path < refs[j].Path
		}
		if refs[i].Iterable != refs[j].Iterable {
			return refs[i].Iterable
		}
		return refs[i].Default < refs[j].Default
	})
	return refs, nil
}

func (r *Resolver) stepsSchema(previous []models.Step) (*Node, error) {
	props := make(map[string]*Node, len(previous))
	for _, s := range previous {
		out, err := r.outputSchema(s)
		if err != nil {
			return nil, fmt.Errorf("output schema of step %s: %w", s.StepID, err)
		}
		props[s.StepID] = out
	}
	return Object(props, false), nil
}

func (r *Resolver) outputSchema(s models.Step) (*Node, error) {
	raw := s.OutputSchema
	if len(raw) == 0 && r.outputs != nil {
		raw, _ = r.outputs.OutputSchema(s.Type)
	}
	if len(raw) == 0 {
		return Object(nil, false), nil
	}
	return FromMap(raw)
}

func subscriberSchema(refs []Reference) *Node {
	data := Object(nil, true)
	for _, ref := range refs {
		if rest, ok := strings.CutPrefix(ref.Path, "subscriber.data."); ok {
			insert(data, paths.Split(rest), ref)
		}
	}

	return &Node{
		Type: TypeObject,
		Properties: map[string]*Node{
			"subscriberId": {Type: TypeString},
			"firstName":    {Type: TypeString},
			"lastName":     {Type: TypeString},
			"email":        {Type: TypeString, Format: "email"},
			"phone":        {Type: TypeString},
			"avatar":       {Type: TypeString},
			"locale":       {Type: TypeString},
			"isOnline":     {Type: TypeBoolean},
			"lastOnlineAt": {Type: TypeString, Format: "date-time"},
			"data":         data,
		},
		Required:             []string{"subscriberId", "firstName", "lastName", "email"},
		AdditionalProperties: Bool(false),
	}
}

func payloadSchema(persisted map[string]interface{}, refs []Reference) (*Node, error) {
	if len(persisted) > 0 {
		n, err := FromMap(persisted)
		if err != nil {
			return nil, fmt.Errorf("payload schema: %w", err)
		}
		return n, nil
	}

	root := Object(nil, true)
	for _, ref := range refs {
		if rest, ok := strings.CutPrefix(ref.Path, "payload."); ok {
			insert(root, paths.Split(rest), ref)
		}
	}
	return root, nil
}

// insert adds the reference below parent. Numeric segments turn their parent
// into an array and a container always wins over a scalar leaf.
func insert(parent *Node, segs []string, ref Reference) {
	cur := parent
	for i, seg := range segs {
		last := i == len(segs)-1
		next := ""
		if !last {
			next = segs[i+1]
		}

		if cur.isArray() {
			if _, ok := paths.Index(seg); !ok {
				return
			}
			if cur.Items == nil || !isContainer(cur.Items) {
				cur.Items = containerFor(next, last, ref)
			}
			cur = cur.Items
			continue
		}

		if cur.Properties == nil {
			cur.Properties = map[string]*Node{}
		}
		child, ok := cur.Properties[seg]
		switch {
		case !ok:
			child = containerFor(next, last, ref)
			cur.Properties[seg] = child
		case !last && !isContainer(child):
			child = containerFor(next, false, ref)
			cur.Properties[seg] = child
		case last && ref.Iterable && child.Type != TypeArray:
			child = containerFor(next, true, ref)
			cur.Properties[seg] = child
		}
		cur = child
	}
}

func containerFor(next string, last bool, ref Reference) *Node {
	switch {
	case last && ref.Iterable:
		return &Node{Type: TypeArray, Items: Object(nil, true)}
	case last:
		return leafFor(ref.Default)
	}
	if _, ok := paths.Index(next); ok {
		return &Node{Type: TypeArray}
	}
	return Object(nil, true)
}

func isContainer(n *Node) bool {
	return n.Type == TypeObject || n.Type == TypeArray
}

// leafFor infers a scalar type from an example default.
func leafFor(def string) *Node {
	switch {
	case def == "":
		return &Node{Type: TypeString}
	case def == "true" || def == "false":
		return &Node{Type: TypeBoolean, Default: def == "true"}
	}
	if f, err := strconv.ParseFloat(def, 64); err == nil {
		return &Node{Type: TypeNumber, Default: f}
	}
	return &Node{Type: TypeString, Default: def}
}
