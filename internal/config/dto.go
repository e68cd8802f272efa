package config

import "encoding/json"

// ToDTO serializes a MatcherConfig node tree to the JSON shape the REST API
// exposes for config introspection. Node's own json tags already
// match the wire DTO one-for-one, so this is a direct marshal.
func ToDTO(node Node) ([]byte, error) {
	return json.Marshal(node)
}

// FromDTO parses a MatcherConfig node tree from its REST API JSON form, the
// inverse of ToDTO.
func FromDTO(data []byte) (Node, error) {
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return Node{}, err
	}
	if err := rejectPriority(node, "<dto>"); err != nil {
		return Node{}, err
	}
	return node, nil
}
