// Package accessor compiles the "${...}" expression grammar into closures
// that read a value out of a ProcessedEvent.
package accessor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danielsvitols/tornado/internal/model"
	"github.com/danielsvitols/tornado/internal/validator"
	"github.com/danielsvitols/tornado/internal/value"
)

const (
	startDelimiter = "${"
	endDelimiter   = "}"

	payloadPrefix      = "event.payload"
	extractedVarPrefix = "_variables."
	eventTypeExpr      = "event.type"
	eventCreatedMsExpr = "event.created_ms"
	eventTraceIDExpr   = "event.metadata.trace_id"
	eventWholeExpr     = "event"
)

// Kind identifies which Accessor variant a compiled Accessor is.
type Kind int

const (
	KindConstant Kind = iota
	KindWholeEvent
	KindType
	KindCreatedMs
	KindTraceID
	KindPayload
	KindExtractedVar
	KindInterpolated
)

// Accessor is a compiled expression: given a ProcessedEvent, Get returns the
// value it denotes, or ok=false if any part of the chain is absent.
type Accessor struct {
	kind Kind

	constant Value
	keys     []string // KindPayload: dotted/indexed path segments
	varKey   string    // KindExtractedVar: fully-qualified "<rule>.<var>"
	parts    []Accessor
}

// Value is a thin alias so this package does not need to import value twice
// in exported signatures; it is exactly value.Value.
type Value = value.Value

// Get evaluates the accessor against a ProcessedEvent.
func (a Accessor) Get(event *model.ProcessedEvent) (Value, bool) {
	switch a.kind {
	case KindConstant:
		return a.constant, true
	case KindWholeEvent:
		return event.Event.AsValue(), true
	case KindType:
		return value.NewText(event.Event.Type), true
	case KindCreatedMs:
		return value.NewNumber(float64(event.Event.CreatedMs)), true
	case KindTraceID:
		return value.NewText(event.Event.TraceID), true
	case KindExtractedVar:
		v, ok := event.ExtractedVars[a.varKey]
		return v, ok
	case KindPayload:
		return lookupPath(event.Event.Payload, a.keys)
	case KindInterpolated:
		return a.getInterpolated(event)
	default:
		return Value{}, false
	}
}

func lookupPath(root Value, keys []string) (Value, bool) {
	current := root
	for _, key := range keys {
		if idx, rest, isIndexed := splitIndex(key); isIndexed {
			child, ok := current.Child(rest)
			if !ok {
				return Value{}, false
			}
			current, ok = child.Index(idx)
			if !ok {
				return Value{}, false
			}
			continue
		}
		child, ok := current.Child(key)
		if !ok {
			return Value{}, false
		}
		current = child
	}
	return current, true
}

// splitIndex splits a path segment of the form `key[n]` into its key and
// index. Returns isIndexed=false when the segment has no bracket suffix.
func splitIndex(segment string) (idx int, key string, isIndexed bool) {
	open := strings.LastIndexByte(segment, '[')
	if open == -1 || !strings.HasSuffix(segment, "]") {
		return 0, segment, false
	}
	n, err := strconv.Atoi(segment[open+1 : len(segment)-1])
	if err != nil || n < 0 {
		return 0, segment, false
	}
	return n, segment[:open], true
}

func (a Accessor) getInterpolated(event *model.ProcessedEvent) (Value, bool) {
	var sb strings.Builder
	for _, part := range a.parts {
		v, ok := part.Get(event)
		if !ok {
			return Value{}, false
		}
		text, ok := v.AsText()
		if !ok {
			// Compound values (Array/Map) are forbidden in text context.
			return Value{}, false
		}
		sb.WriteString(text)
	}
	return value.NewText(sb.String()), true
}

// Builder compiles accessor expressions for a single rule or filter.
type Builder struct {
	idValidator *validator.IDValidator
}

// Constant wraps a raw value.Value as an Accessor that always returns it
// unchanged, regardless of the event. Used for non-text scalar leaves of an
// action payload template, which carry no "${...}" interpolation to compile.
func Constant(v Value) Accessor {
	return Accessor{kind: KindConstant, constant: v}
}

// NewBuilder creates an accessor Builder.
func NewBuilder() *Builder {
	return &Builder{idValidator: validator.NewIDValidator()}
}

// Build compiles a raw expression string in the context of ruleOrFilterName
// (used to qualify "_variables.<id>" references and to annotate errors).
//
// Two shapes are recognized:
//   - the whole input is exactly one "${...}" segment: it collapses to the
//     inner accessor directly;
//   - the input is literal text interleaved with zero or more "${...}"
//     segments: it compiles to an Interpolated accessor. Literal text with
//     no "${" at all compiles to a Constant.
func (b *Builder) Build(ruleOrFilterName, input string) (Accessor, error) {
	segments, err := splitInterpolation(input)
	if err != nil {
		return Accessor{}, fmt.Errorf("%w: %s", ErrUnknownAccessor(input), err)
	}

	if len(segments) == 1 && segments[0].isExpr {
		return b.buildInner(ruleOrFilterName, segments[0].text, input)
	}

	parts := make([]Accessor, 0, len(segments))
	for _, seg := range segments {
		if seg.isExpr {
			inner, err := b.buildInner(ruleOrFilterName, seg.text, input)
			if err != nil {
				return Accessor{}, err
			}
			parts = append(parts, inner)
			continue
		}
		parts = append(parts, Accessor{kind: KindConstant, constant: value.NewText(seg.text)})
	}

	if len(parts) == 1 && parts[0].kind == KindConstant {
		return parts[0], nil
	}

	return Accessor{kind: KindInterpolated, parts: parts}, nil
}

type segment struct {
	text   string
	isExpr bool
}

// splitInterpolation splits raw text on "${...}" delimiters into literal and
// expression segments, in order.
func splitInterpolation(input string) ([]segment, error) {
	var segments []segment
	rest := input
	for {
		start := strings.Index(rest, startDelimiter)
		if start == -1 {
			if rest != "" {
				segments = append(segments, segment{text: rest})
			}
			break
		}
		if start > 0 {
			segments = append(segments, segment{text: rest[:start]})
		}
		after := rest[start+len(startDelimiter):]
		end := strings.Index(after, endDelimiter)
		if end == -1 {
			return nil, fmt.Errorf("unterminated %q in accessor %q", startDelimiter, input)
		}
		segments = append(segments, segment{text: strings.TrimSpace(after[:end]), isExpr: true})
		rest = after[end+len(endDelimiter):]
	}
	if len(segments) == 0 {
		segments = append(segments, segment{text: ""})
	}
	return segments, nil
}

// buildInner dispatches a trimmed inner expression (the content between
// "${" and "}") to the matching Accessor variant.
func (b *Builder) buildInner(ruleOrFilterName, expr, fullAccessor string) (Accessor, error) {
	switch {
	case expr == eventWholeExpr:
		return Accessor{kind: KindWholeEvent}, nil
	case expr == eventTypeExpr:
		return Accessor{kind: KindType}, nil
	case expr == eventCreatedMsExpr:
		return Accessor{kind: KindCreatedMs}, nil
	case expr == eventTraceIDExpr:
		return Accessor{kind: KindTraceID}, nil
	case expr == "event.payload" || strings.HasPrefix(expr, payloadPrefix):
		keyPart := strings.TrimPrefix(expr, payloadPrefix)
		keys, err := parsePayloadPath(keyPart, fullAccessor, ruleOrFilterName)
		if err != nil {
			return Accessor{}, err
		}
		return Accessor{kind: KindPayload, keys: keys}, nil
	case strings.HasPrefix(expr, extractedVarPrefix):
		id := strings.TrimSpace(strings.TrimPrefix(expr, extractedVarPrefix))
		if err := b.idValidator.ValidateExtractedVarName(id, fullAccessor, ruleOrFilterName); err != nil {
			return Accessor{}, err
		}
		return Accessor{kind: KindExtractedVar, varKey: ruleOrFilterName + "." + id}, nil
	default:
		return Accessor{}, ErrUnknownAccessor(fullAccessor)
	}
}
