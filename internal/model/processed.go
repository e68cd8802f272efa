package model

import "github.com/danielsvitols/tornado/internal/value"

// ProcessedEvent is the full traversal report returned by Matcher.Process.
type ProcessedEvent struct {
	Event Event
	// ExtractedVars holds every "<ruleset_or_rule>.<var>" key produced by
	// any rule that has executed so far, across the whole tree. Rulesets
	// are isolated from each other (see matcher package); this map is the
	// union written into by each ruleset evaluation in turn.
	ExtractedVars map[string]value.Value
	Result        ProcessedNode
}

// NodeKind distinguishes the two ProcessedNode shapes.
type NodeKind int

const (
	NodeFilter NodeKind = iota
	NodeRuleset
)

// FilterStatus is the outcome of evaluating a Filter node.
type FilterStatus string

const (
	FilterMatched    FilterStatus = "Matched"
	FilterNotMatched FilterStatus = "NotMatched"
	FilterInactive   FilterStatus = "Inactive"
)

// RuleStatus is the outcome of evaluating a single rule within a Ruleset.
type RuleStatus string

const (
	RuleMatched          RuleStatus = "Matched"
	RuleNotMatched       RuleStatus = "NotMatched"
	RulePartiallyMatched RuleStatus = "PartiallyMatched"
	RuleNotProcessed     RuleStatus = "NotProcessed"
)

// ProcessedNode is either a Filter or a Ruleset outcome. Exactly one of the
// Filter* / Ruleset fields is meaningful, selected by Kind.
type ProcessedNode struct {
	Kind NodeKind
	Name string

	// Populated when Kind == NodeFilter.
	FilterStatus FilterStatus
	Nodes        []ProcessedNode

	// Populated when Kind == NodeRuleset.
	Rules ProcessedRules
}

// ProcessedRules is the outcome of evaluating every rule in one Ruleset.
type ProcessedRules struct {
	Rules []ProcessedRule
	// ExtractedVars holds only the variables extracted by this Ruleset's
	// own rules (a view, not a copy of the global set).
	ExtractedVars map[string]value.Value
}

// ProcessedRule is the outcome of evaluating a single rule.
type ProcessedRule struct {
	Name    string
	Status  RuleStatus
	Actions []RenderedAction
	Message string // diagnostic, set only for PartiallyMatched
}

// RenderedAction is an ActionTemplate with all interpolations substituted.
type RenderedAction struct {
	ID      string
	Payload value.Value
}

// NewProcessedEvent allocates an empty ProcessedEvent ready for traversal.
func NewProcessedEvent(event Event) *ProcessedEvent {
	return &ProcessedEvent{
		Event:         event,
		ExtractedVars: map[string]value.Value{},
	}
}

// AsValue projects the Event into the Map shape the "${event}" accessor
// returns: {type, created_ms, metadata: {trace_id}, payload}.
func (e Event) AsValue() value.Value {
	metadata := value.NewMapBuilder().Set("trace_id", value.NewText(e.TraceID)).Build()
	return value.NewMapBuilder().
		Set("type", value.NewText(e.Type)).
		Set("created_ms", value.NewNumber(float64(e.CreatedMs))).
		Set("metadata", metadata).
		Set("payload", e.Payload).
		Build()
}
