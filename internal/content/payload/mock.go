package payload

import (
	"fmt"

	"workflow-content/internal/content/schema"
)

// MockFromSchema produces an example value for node. Declared defaults win;
// strings fall back to the placeholder text of their path so unresolved values
// stay visible in a preview.
func MockFromSchema(node *schema.Node, path string) (interface{}, error) {
	return mock(node, path, 0)
}

func mock(node *schema.Node, path string, depth int) (interface{}, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: schema at %s nests deeper than %d", ErrDepthExceeded, path, MaxDepth)
	}
	if node == nil {
		return Placeholder(path), nil
	}
	if node.Default != nil {
		return clone(node.Default), nil
	}
	if len(node.Enum) > 0 {
		return clone(node.Enum[0]), nil
	}

	switch node.Type {
	case schema.TypeObject, "":
		if node.Type == "" && node.Properties == nil {
			if node.Items != nil {
				return mockArray(node, path, depth)
			}
			return Placeholder(path), nil
		}
		out := make(map[string]interface{}, len(node.Properties))
		for _, name := range sortedKeys(node.Properties) {
			v, err := mock(node.Properties[name], path+"."+name, depth+1)
			if err != nil {
				return nil, err
			}
			out[name] = v
		}
		return out, nil
	case schema.TypeArray:
		return mockArray(node, path, depth)
	case schema.TypeNumber, schema.TypeInteger:
		return 0, nil
	case schema.TypeBoolean:
		return true, nil
	}
	return Placeholder(path), nil
}

func mockArray(node *schema.Node, path string, depth int) (interface{}, error) {
	if node.Items == nil {
		return []interface{}{}, nil
	}
	item, err := mock(node.Items, path+".0", depth+1)
	if err != nil {
		return nil, err
	}
	return []interface{}{item}, nil
}
