// Package action compiles an action payload template (an arbitrary Value
// tree whose Text leaves may carry "${...}" interpolation) and renders it
// against a ProcessedEvent.
package action

import (
	"fmt"

	"github.com/danielsvitols/tornado/internal/accessor"
	"github.com/danielsvitols/tornado/internal/model"
	"github.com/danielsvitols/tornado/internal/value"
)

// Config is the uncompiled action declaration: an id and a raw payload tree
// as parsed from configuration (Text leaves may contain "${...}").
type Config struct {
	ID      string
	Payload value.Value
}

// Template is a compiled action: its payload tree has every Text leaf
// replaced with a compiled Accessor, preserving the tree's structural shape
// (map key order, array element order).
type Template struct {
	id      string
	payload templateNode
}

// templateNode mirrors value.Value's shape, except every scalar leaf is a
// compiled accessor instead of a raw Value.
type templateNode struct {
	kind     value.Kind
	leaf     accessor.Accessor
	items    []templateNode
	mapKeys  []string
	mapItems map[string]templateNode
}

// Builder compiles action templates, owning the AccessorBuilder used to
// compile every interpolated Text leaf.
type Builder struct {
	accessor *accessor.Builder
}

// NewBuilder creates an action Builder.
func NewBuilder() *Builder {
	return &Builder{accessor: accessor.NewBuilder()}
}

// Build compiles a single action Config in the context of ruleName.
func (b *Builder) Build(ruleName string, cfg Config) (Template, error) {
	node, err := b.buildNode(ruleName, cfg.Payload)
	if err != nil {
		return Template{}, err
	}
	return Template{id: cfg.ID, payload: node}, nil
}

func (b *Builder) buildNode(ruleName string, v value.Value) (templateNode, error) {
	switch v.Kind() {
	case value.Text:
		text, _ := v.RawText()
		acc, err := b.accessor.Build(ruleName, text)
		if err != nil {
			return templateNode{}, err
		}
		return templateNode{kind: value.Text, leaf: acc}, nil

	case value.Array:
		items, _ := v.Items()
		nodes := make([]templateNode, 0, len(items))
		for _, item := range items {
			n, err := b.buildNode(ruleName, item)
			if err != nil {
				return templateNode{}, err
			}
			nodes = append(nodes, n)
		}
		return templateNode{kind: value.Array, items: nodes}, nil

	case value.Map:
		keys, _ := v.Keys()
		nodes := make(map[string]templateNode, len(keys))
		for _, k := range keys {
			child, _ := v.Child(k)
			n, err := b.buildNode(ruleName, child)
			if err != nil {
				return templateNode{}, err
			}
			nodes[k] = n
		}
		return templateNode{kind: value.Map, mapKeys: keys, mapItems: nodes}, nil

	default:
		// Null, Bool, Number leaves carry no interpolation; wrap as a
		// constant accessor so Render treats every leaf uniformly.
		return templateNode{kind: v.Kind(), leaf: constantAccessor(v)}, nil
	}
}

func constantAccessor(v value.Value) accessor.Accessor {
	// Non-text scalars never contain "${...}"; compiling them through the
	// builder would require stringifying them, so they are wrapped directly.
	return accessor.Constant(v)
}

// ID returns the action's configured identifier.
func (t Template) ID() string { return t.id }

// Render substitutes every interpolated leaf against event, producing a
// RenderedAction. It returns the first MissingExtractedVariable-style error
// encountered, per spec's "Absent value ⇒ MissingExtractedVariable".
func (t Template) Render(event *model.ProcessedEvent) (model.RenderedAction, error) {
	v, err := renderNode(t.payload, event, t.id)
	if err != nil {
		return model.RenderedAction{}, err
	}
	return model.RenderedAction{ID: t.id, Payload: v}, nil
}

// Error reports a failure to render an action's payload.
type Error struct {
	ActionID string
	Reason   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("missing extracted variable while rendering action %q: %s", e.ActionID, e.Reason)
}

func renderNode(n templateNode, event *model.ProcessedEvent, actionID string) (value.Value, error) {
	switch n.kind {
	case value.Array:
		items := make([]value.Value, 0, len(n.items))
		for _, child := range n.items {
			v, err := renderNode(child, event, actionID)
			if err != nil {
				return value.Value{}, err
			}
			items = append(items, v)
		}
		return value.NewArray(items), nil

	case value.Map:
		b := value.NewMapBuilder()
		for _, k := range n.mapKeys {
			v, err := renderNode(n.mapItems[k], event, actionID)
			if err != nil {
				return value.Value{}, err
			}
			b.Set(k, v)
		}
		return b.Build(), nil

	default:
		v, ok := n.leaf.Get(event)
		if !ok {
			return value.Value{}, &Error{ActionID: actionID, Reason: "interpolated accessor is absent"}
		}
		return v, nil
	}
}
