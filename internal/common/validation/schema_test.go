package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"subject": map[string]interface{}{"type": "string", "minLength": 1},
			"actions": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{"label": map[string]interface{}{"type": "string"}},
					"required":   []interface{}{"label"},
				},
			},
		},
		"required": []interface{}{"subject"},
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]interface{}
		wantValid  bool
		wantFields []string
	}{
		{
			name:      "valid",
			data:      map[string]interface{}{"subject": "Hi"},
			wantValid: true,
		},
		{
			name:       "missing required",
			data:       map[string]interface{}{},
			wantFields: []string{"subject"},
		},
		{
			name:       "nested required in array",
			data:       map[string]interface{}{"subject": "Hi", "actions": []interface{}{map[string]interface{}{}}},
			wantFields: []string{"actions[0].label"},
		},
		{
			name:       "all errors collected",
			data:       map[string]interface{}{"subject": "", "actions": []interface{}{map[string]interface{}{"label": 3}}},
			wantFields: []string{"subject", "actions[0].label"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ValidateDocument(createTestSchema(), tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid)

			var fields []string
			for _, e := range result.Errors {
				fields = append(fields, e.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestValidateDocument_RequiredCode(t *testing.T) {
	result, err := ValidateDocument(createTestSchema(), map[string]interface{}{})
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeRequired, result.Errors[0].Code)
	assert.True(t, result.HasErrors("subject"))
}

func TestValidateDocument_EmptySchema(t *testing.T) {
	result, err := ValidateDocument(nil, map[string]interface{}{"x": 1})
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestFieldPath(t *testing.T) {
	assert.Equal(t, "", FieldPath("(root)"))
	assert.Equal(t, "subject", FieldPath("subject"))
	assert.Equal(t, "actions[0].label", FieldPath("actions.0.label"))
}

func TestGetErrorsForField(t *testing.T) {
	vr := &ValidationResult{Errors: []ValidationError{
		{Field: "actions[0].label"},
		{Field: "actions.count"},
		{Field: "subject"},
	}}
	assert.Len(t, vr.GetErrorsForField("actions"), 2)
	assert.Equal(t, []string{"actions[0].label: ", "actions.count: ", "subject: "}, vr.GetErrorMessages())
}
