package payload

// DeepMerge returns a new map holding base overlaid with override. Nested maps
// are merged recursively; any other value from override replaces the base value.
// Neither input is modified.
func DeepMerge(base, override map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		out[k] = clone(v)
	}
	for k, v := range override {
		if src, ok := v.(map[string]interface{}); ok {
			if dst, ok := out[k].(map[string]interface{}); ok {
				out[k] = DeepMerge(dst, src)
				continue
			}
		}
		out[k] = clone(v)
	}
	return out
}

func clone(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = clone(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = clone(item)
		}
		return out
	}
	return v
}
