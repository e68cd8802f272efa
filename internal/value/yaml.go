package value

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FromYAMLNode converts a parsed YAML node into a Value tree, preserving
// mapping key order exactly as written in the source file. Configuration
// loaders use this (rather than unmarshaling into map[string]interface{})
// so that action payload templates render their keys in declaration order,
// per the "maps are ordered" rendering guarantee.
func FromYAMLNode(node *yaml.Node) (Value, error) {
	if node == nil {
		return NewNull(), nil
	}
	// Document nodes wrap a single child; unwrap transparently.
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return NewNull(), nil
		}
		return FromYAMLNode(node.Content[0])
	}

	switch node.Kind {
	case yaml.MappingNode:
		b := NewMapBuilder()
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			valNode := node.Content[i+1]
			val, err := FromYAMLNode(valNode)
			if err != nil {
				return Value{}, err
			}
			b.Set(keyNode.Value, val)
		}
		return b.Build(), nil
	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for _, child := range node.Content {
			val, err := FromYAMLNode(child)
			if err != nil {
				return Value{}, err
			}
			items = append(items, val)
		}
		return NewArray(items), nil
	case yaml.ScalarNode:
		return scalarFromYAML(node)
	case yaml.AliasNode:
		return FromYAMLNode(node.Alias)
	default:
		return Value{}, fmt.Errorf("value: unsupported YAML node kind %v", node.Kind)
	}
}

func scalarFromYAML(node *yaml.Node) (Value, error) {
	switch node.Tag {
	case "!!null":
		return NewNull(), nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return Value{}, err
		}
		return NewBool(b), nil
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid YAML number %q: %w", node.Value, err)
		}
		return NewNumber(f), nil
	default:
		return NewText(node.Value), nil
	}
}
