// Package config defines the uncompiled MatcherConfig tree — the shape
// loaded from YAML/JSON files on disk, and the shape produced by the DTO
// conversion used by the REST/API layer. The matcher package compiles it
// down to the typed Config structs the operator/extractor/action packages
// consume.
package config

import (
	"encoding/json"

	"github.com/danielsvitols/tornado/internal/value"
	"gopkg.in/yaml.v3"
)

// NodeKind tags which shape a Node has: exactly one of Filter/Ruleset.
type NodeKind string

const (
	KindFilter  NodeKind = "Filter"
	KindRuleset NodeKind = "Ruleset"
)

// Node is one entry of the configuration tree, as parsed from disk: plain
// fields tagged for yaml/json, validated and compiled by Matcher.New.
type Node struct {
	Type NodeKind `yaml:"type" json:"type"`

	// Name is set for both kinds; the rest of this group is populated
	// when Type == Filter.
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Active      *bool       `yaml:"active,omitempty" json:"active,omitempty"`
	Filter      *OperatorNode `yaml:"filter,omitempty" json:"filter,omitempty"`
	Nodes       []Node      `yaml:"nodes,omitempty" json:"nodes,omitempty"`

	// Populated when Type == Ruleset.
	Rules []RuleNode `yaml:"rules,omitempty" json:"rules,omitempty"`

	// Rejected explicitly: an older source variant carried a rule-level
	// "priority" used to order rules instead of declaration order (see
	// DESIGN.md Open Question decision). Present only so the loader can
	// detect and reject it rather than silently ignoring it.
	Priority *int `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// IsActive reports the node's active flag, defaulting to true when absent.
func (n Node) IsActive() bool {
	return n.Active == nil || *n.Active
}

// RuleNode is one rule of a Ruleset, as parsed from disk.
type RuleNode struct {
	Name        string                   `yaml:"name" json:"name"`
	Description string                   `yaml:"description,omitempty" json:"description,omitempty"`
	Active      *bool                    `yaml:"active,omitempty" json:"active,omitempty"`
	DoContinue  bool                     `yaml:"do_continue" json:"do_continue"`
	Constraint  ConstraintNode           `yaml:"constraint" json:"constraint"`
	Actions     []ActionNode             `yaml:"actions,omitempty" json:"actions,omitempty"`
	Priority    *int                     `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// IsActive reports the rule's active flag, defaulting to true when absent.
func (r RuleNode) IsActive() bool {
	return r.Active == nil || *r.Active
}

// ConstraintNode is a rule's "where"/"with" clause.
type ConstraintNode struct {
	Where *OperatorNode               `yaml:"where,omitempty" json:"where,omitempty"`
	With  map[string]ExtractorNode    `yaml:"with,omitempty" json:"with,omitempty"`
}

// ExtractorNode is one entry of a rule's "with" map.
type ExtractorNode struct {
	From  string      `yaml:"from" json:"from"`
	Regex RegexNode   `yaml:"regex" json:"regex"`
}

// RegexNode describes one extractor's regex clause.
type RegexNode struct {
	Pattern       string `yaml:"pattern" json:"pattern"`
	GroupMatchIdx int    `yaml:"group_match_idx" json:"group_match_idx"`
	AllMatches    bool   `yaml:"all_matches,omitempty" json:"all_matches,omitempty"`
}

// ActionNode is one entry of a rule's "actions" list. Payload is parsed as a
// raw, order-preserving value.Value tree (see value.FromYAMLNode/FromJSON)
// since its Text leaves may carry "${...}" interpolation for any shape.
type ActionNode struct {
	ID      string
	Payload value.Value
}

// UnmarshalYAML decodes the action's id normally and its payload through
// value.FromYAMLNode, so the payload's map keys keep the order they were
// declared in rather than Go's unordered map decoding.
func (a *ActionNode) UnmarshalYAML(node *yaml.Node) error {
	var shape struct {
		ID      string    `yaml:"id"`
		Payload yaml.Node `yaml:"payload"`
	}
	if err := node.Decode(&shape); err != nil {
		return err
	}
	payload, err := value.FromYAMLNode(&shape.Payload)
	if err != nil {
		return err
	}
	a.ID, a.Payload = shape.ID, payload
	return nil
}

// MarshalJSON renders an ActionNode back to its DTO shape, the inverse of
// UnmarshalJSON; used by ToDTO.
func (a ActionNode) MarshalJSON() ([]byte, error) {
	payload, err := value.ToJSON(a.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		ID      string          `json:"id"`
		Payload json.RawMessage `json:"payload"`
	}{ID: a.ID, Payload: payload})
}

// UnmarshalJSON mirrors UnmarshalYAML for JSON-sourced configuration.
func (a *ActionNode) UnmarshalJSON(data []byte) error {
	var shape struct {
		ID      string          `json:"id"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return err
	}
	payload, err := value.FromJSON(shape.Payload)
	if err != nil {
		return err
	}
	a.ID, a.Payload = shape.ID, payload
	return nil
}

// OperatorNode is the tagged-union form of a boolean operator, as parsed
// from disk. "type" selects the variant; the remaining fields are
// interpreted per variant (see operator.Config).
type OperatorNode struct {
	Type string `yaml:"type" json:"type"`

	First  string `yaml:"first,omitempty" json:"first,omitempty"`
	Second string `yaml:"second,omitempty" json:"second,omitempty"`

	Pattern string `yaml:"regex,omitempty" json:"regex,omitempty"`
	Target  string `yaml:"target,omitempty" json:"target,omitempty"`

	Operators []OperatorNode `yaml:"operators,omitempty" json:"operators,omitempty"`
}
