package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"payload", "items", "0", "name"}, Split("payload.items[0].name"))
	assert.Equal(t, []string{"payload", "items", "0", "name"}, Split("payload.items.0.name"))
	assert.Equal(t, []string{"a", "b c"}, Split(`a["b c"]`))
	assert.Nil(t, Split("  "))
}

func TestGet(t *testing.T) {
	data := map[string]interface{}{
		"payload": map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"name": "first"},
			},
			"empty": nil,
		},
	}

	v, ok := Get(data, "payload.items[0].name")
	assert.True(t, ok)
	assert.Equal(t, "first", v)

	_, ok = Get(data, "payload.items.1.name")
	assert.False(t, ok)

	_, ok = Get(data, "payload.items.name")
	assert.False(t, ok)

	assert.True(t, Has(data, "payload.empty"))
	assert.False(t, Has(data, "payload.missing"))
}
