package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-content/internal/models"
)

type staticOutputs map[models.StepType]map[string]interface{}

func (s staticOutputs) OutputSchema(t models.StepType) (map[string]interface{}, bool) {
	m, ok := s[t]
	return m, ok
}

type staticReferences map[string][]Reference

// References keys fixtures by the "key" control value of each step.
func (s staticReferences) References(values map[string]interface{}) ([]Reference, error) {
	key, _ := values["key"].(string)
	return s[key], nil
}

func TestNode_UnmarshalJSON(t *testing.T) {
	var n Node
	err := json.Unmarshal([]byte(`{
		"type": ["null", "object"],
		"properties": {
			"meta": {"type": "object", "additionalProperties": {"type": "string"}},
			"strict": {"type": "object", "additionalProperties": false}
		}
	}`), &n)
	require.NoError(t, err)

	assert.Equal(t, TypeObject, n.Type)
	assert.Nil(t, n.AdditionalProperties)
	assert.True(t, n.Properties["meta"].AllowsAdditional())
	require.NotNil(t, n.Properties["strict"].AdditionalProperties)
	assert.False(t, n.Properties["strict"].AllowsAdditional())

	out, err := json.Marshal(n.Properties["strict"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","additionalProperties":false}`, string(out))
}

func TestNode_Resolve(t *testing.T) {
	root := Object(map[string]*Node{
		"payload": {
			Type: TypeObject,
			Properties: map[string]*Node{
				"orderId": {Type: TypeString},
				"items": {Type: TypeArray, Items: Object(map[string]*Node{
					"name": {Type: TypeString},
				}, false)},
				"meta": Object(nil, true),
			},
			AdditionalProperties: Bool(false),
		},
	}, false)

	tests := []struct {
		name         string
		path         string
		wantLegal    bool
		wantDeclared bool
	}{
		{name: "declared leaf", path: "payload.orderId", wantLegal: true, wantDeclared: true},
		{name: "array element", path: "payload.items.0.name", wantLegal: true, wantDeclared: true},
		{name: "bracket index", path: "payload.items[1].name", wantLegal: true, wantDeclared: true},
		{name: "first element", path: "payload.items.first.name", wantLegal: true, wantDeclared: true},
		{name: "array size", path: "payload.items.size", wantLegal: true, wantDeclared: true},
		{name: "unknown item field", path: "payload.items.0.price", wantLegal: false},
		{name: "non index on array", path: "payload.items.name", wantLegal: false},
		{name: "unknown payload field", path: "payload.missing", wantLegal: false},
		{name: "unknown namespace", path: "tenant.id", wantLegal: false},
		{name: "additional properties at any depth", path: "payload.meta.a.b.c.d", wantLegal: true},
		{name: "below a scalar", path: "payload.orderId.x", wantLegal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			declared, legal := root.Resolve(tt.path)
			assert.Equal(t, tt.wantLegal, legal)
			assert.Equal(t, tt.wantDeclared, declared != nil)
		})
	}
}

func TestNode_Defaults(t *testing.T) {
	n, err := FromMap(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":  map[string]interface{}{"type": "string", "default": "Ann"},
			"count": map[string]interface{}{"type": "number"},
			"address": map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"city": map[string]interface{}{"type": "string", "default": "Rome"}},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"name": "Ann", "address.city": "Rome"}, n.Defaults())
}

func createTestWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:     "wf-1",
		Origin: models.OriginDashboard,
		Steps: []models.Step{
			{ID: "s1", StepID: "in-app-step", Type: models.StepTypeInApp, ControlValues: map[string]interface{}{"key": "first"}},
			{ID: "s2", StepID: "digest-step", Type: models.StepTypeDigest, ControlValues: map[string]interface{}{"key": "second"}},
			{ID: "s3", StepID: "email-step", Type: models.StepTypeEmail, ControlValues: map[string]interface{}{"key": "third"}},
		},
	}
}

func createTestResolver() *Resolver {
	outputs := staticOutputs{
		models.StepTypeInApp: {
			"type":                 "object",
			"properties":           map[string]interface{}{"seen": map[string]interface{}{"type": "boolean"}},
			"additionalProperties": false,
		},
	}
	refs := staticReferences{
		"first": {{Path: "payload.orderId", Default: "123"}},
		"third": {
			{Path: "payload.items", Iterable: true},
			{Path: "payload.items.0.name"},
			{Path: "payload.vip", Default: "true"},
			{Path: "subscriber.data.plan"},
		},
	}
	return NewResolver(outputs, refs)
}

func TestResolver_Resolve(t *testing.T) {
	r := createTestResolver()
	wf := createTestWorkflow()

	root, err := r.Resolve(wf, "email-step")
	require.NoError(t, err)

	steps := root.Properties["steps"]
	assert.Contains(t, steps.Properties, "in-app-step")
	assert.Contains(t, steps.Properties, "digest-step")
	assert.NotContains(t, steps.Properties, "email-step")

	_, legal := root.Resolve("steps.in-app-step.seen")
	assert.True(t, legal)
	_, legal = root.Resolve("steps.digest-step.eventCount")
	assert.False(t, legal, "steps without a declared output expose nothing")

	payload := root.Properties["payload"]
	assert.True(t, payload.AllowsAdditional())
	assert.Equal(t, TypeNumber, payload.Properties["orderId"].Type)
	assert.Equal(t, TypeBoolean, payload.Properties["vip"].Type)
	items := payload.Properties["items"]
	assert.Equal(t, TypeArray, items.Type)
	require.NotNil(t, items.Items)
	assert.Equal(t, TypeString, items.Items.Properties["name"].Type)

	_, legal = root.Resolve("subscriber.data.plan")
	assert.True(t, legal)
	_, legal = root.Resolve("subscriber.unknown")
	assert.False(t, legal)
	_, legal = root.Resolve("subscriber.data.anything.deep")
	assert.True(t, legal)
}

func TestResolver_PreviousStepsOnly(t *testing.T) {
	r := createTestResolver()

	root, err := r.Resolve(createTestWorkflow(), "in-app-step")
	require.NoError(t, err)
	assert.Empty(t, root.Properties["steps"].Properties)
}

func TestResolver_PersistedPayloadSchema(t *testing.T) {
	wf := createTestWorkflow()
	wf.PayloadSchema = map[string]interface{}{
		"type":                 "object",
		"properties":           map[string]interface{}{"orderId": map[string]interface{}{"type": "string"}},
		"additionalProperties": false,
	}

	root, err := createTestResolver().Resolve(wf, "s3")
	require.NoError(t, err)

	_, legal := root.Resolve("payload.orderId")
	assert.True(t, legal)
	_, legal = root.Resolve("payload.vip")
	assert.False(t, legal)
}

func TestResolver_StepNotFound(t *testing.T) {
	_, err := createTestResolver().Resolve(createTestWorkflow(), "nope")
	assert.ErrorIs(t, err, ErrStepNotFound)
}

func TestResolver_Stable(t *testing.T) {
	r := createTestResolver()
	wf := createTestWorkflow()

	first, err := r.Resolve(wf, "email-step")
	require.NoError(t, err)
	second, err := r.Resolve(wf, "email-step")
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, string(a), string(b))
}
