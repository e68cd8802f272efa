// Package operator compiles and evaluates the boolean predicate tree used by
// Filter.filter and Rule.where.
package operator

import (
	"fmt"
	"strings"
	"time"

	"github.com/danielsvitols/tornado/internal/accessor"
	"github.com/danielsvitols/tornado/internal/model"
	"github.com/danielsvitols/tornado/internal/value"
	"github.com/dlclark/regexp2"
)

// regexMatchTimeout bounds a single Regex operator evaluation, guarding
// against catastrophic backtracking in user-supplied patterns.
const regexMatchTimeout = 2 * time.Second

// Operator is a compiled boolean predicate over a ProcessedEvent.
type Operator interface {
	// Name identifies the operator kind, for diagnostics.
	Name() string
	// Evaluate applies the operator to the current event and extracted vars.
	Evaluate(event *model.ProcessedEvent) bool
}

// Config is the uncompiled, declarative form of an Operator as it appears in
// configuration. Exactly one variant field set per Kind.
type Config struct {
	Kind ConfigKind

	// Equal, GreaterThan, GreaterEqualThan, LessThan, LessEqualThan, Contain
	First  string
	Second string

	// Regex
	Pattern string
	Target  string

	// And, Or
	Operators []Config
}

// ConfigKind selects which Operator variant a Config describes.
type ConfigKind string

const (
	KindEqual            ConfigKind = "equal"
	KindContain          ConfigKind = "contain"
	KindGreaterThan      ConfigKind = "greaterThan"
	KindGreaterEqualThan ConfigKind = "greaterEqualThan"
	KindLessThan         ConfigKind = "lessThan"
	KindLessEqualThan    ConfigKind = "lessEqualThan"
	KindRegex            ConfigKind = "regex"
	KindAnd              ConfigKind = "and"
	KindOr               ConfigKind = "or"
)

// Builder compiles operator Config trees into evaluatable Operators, owning
// the AccessorBuilder used for every leaf accessor it compiles.
type Builder struct {
	accessor *accessor.Builder
}

// NewBuilder creates an operator Builder.
func NewBuilder() *Builder {
	return &Builder{accessor: accessor.NewBuilder()}
}

// Build compiles a single Config node (and, recursively, its children) in
// the context of ruleOrFilterName.
func (b *Builder) Build(ruleOrFilterName string, cfg Config) (Operator, error) {
	switch cfg.Kind {
	case KindEqual:
		return b.buildComparison(ruleOrFilterName, cfg, equalOp{})
	case KindContain:
		return b.buildContain(ruleOrFilterName, cfg)
	case KindGreaterThan:
		return b.buildComparison(ruleOrFilterName, cfg, greaterThanOp{})
	case KindGreaterEqualThan:
		return b.buildComparison(ruleOrFilterName, cfg, greaterEqualThanOp{})
	case KindLessThan:
		return b.buildComparison(ruleOrFilterName, cfg, lessThanOp{})
	case KindLessEqualThan:
		return b.buildComparison(ruleOrFilterName, cfg, lessEqualThanOp{})
	case KindRegex:
		return b.buildRegex(ruleOrFilterName, cfg)
	case KindAnd:
		return b.buildJunction(ruleOrFilterName, cfg, true)
	case KindOr:
		return b.buildJunction(ruleOrFilterName, cfg, false)
	default:
		return nil, fmt.Errorf("unknown operator kind %q for %q", cfg.Kind, ruleOrFilterName)
	}
}

func (b *Builder) buildComparison(ruleOrFilterName string, cfg Config, kind comparisonKind) (Operator, error) {
	first, err := b.accessor.Build(ruleOrFilterName, cfg.First)
	if err != nil {
		return nil, err
	}
	second, err := b.accessor.Build(ruleOrFilterName, cfg.Second)
	if err != nil {
		return nil, err
	}
	return &comparisonOperator{first: first, second: second, kind: kind}, nil
}

func (b *Builder) buildContain(ruleOrFilterName string, cfg Config) (Operator, error) {
	first, err := b.accessor.Build(ruleOrFilterName, cfg.First)
	if err != nil {
		return nil, err
	}
	second, err := b.accessor.Build(ruleOrFilterName, cfg.Second)
	if err != nil {
		return nil, err
	}
	return &containOperator{first: first, second: second}, nil
}

func (b *Builder) buildRegex(ruleOrFilterName string, cfg Config) (Operator, error) {
	target, err := b.accessor.Build(ruleOrFilterName, cfg.Target)
	if err != nil {
		return nil, err
	}
	re, err := regexp2.Compile(cfg.Pattern, regexp2.RE2)
	if err != nil {
		re, err = regexp2.Compile(cfg.Pattern, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q for %q: %w", cfg.Pattern, ruleOrFilterName, err)
		}
	}
	re.MatchTimeout = regexMatchTimeout
	return &regexOperator{pattern: cfg.Pattern, regex: re, target: target}, nil
}

func (b *Builder) buildJunction(ruleOrFilterName string, cfg Config, isAnd bool) (Operator, error) {
	operators := make([]Operator, 0, len(cfg.Operators))
	for _, child := range cfg.Operators {
		op, err := b.Build(ruleOrFilterName, child)
		if err != nil {
			return nil, err
		}
		operators = append(operators, op)
	}
	if isAnd {
		return &andOperator{operators: operators}, nil
	}
	return &orOperator{operators: operators}, nil
}

type comparisonOperator struct {
	first, second accessor.Accessor
	kind          comparisonKind
}

func (c *comparisonOperator) Name() string { return c.kind.name() }

func (c *comparisonOperator) Evaluate(event *model.ProcessedEvent) bool {
	first, ok := c.first.Get(event)
	if !ok {
		return false
	}
	second, ok := c.second.Get(event)
	if !ok {
		return false
	}
	return c.kind.compare(first, second)
}

type comparisonKind interface {
	name() string
	compare(first, second value.Value) bool
}

type equalOp struct{}

func (equalOp) name() string                           { return "equal" }
func (equalOp) compare(first, second value.Value) bool { return value.Equal(first, second) }

type greaterThanOp struct{}

func (greaterThanOp) name() string { return "greaterThan" }
func (greaterThanOp) compare(first, second value.Value) bool {
	a, aOk := first.Number()
	b, bOk := second.Number()
	return aOk && bOk && a > b
}

type greaterEqualThanOp struct{}

func (greaterEqualThanOp) name() string { return "greaterEqualThan" }
func (greaterEqualThanOp) compare(first, second value.Value) bool {
	a, aOk := first.Number()
	b, bOk := second.Number()
	return aOk && bOk && a >= b
}

type lessThanOp struct{}

func (lessThanOp) name() string { return "lessThan" }
func (lessThanOp) compare(first, second value.Value) bool {
	a, aOk := first.Number()
	b, bOk := second.Number()
	return aOk && bOk && a < b
}

type lessEqualThanOp struct{}

func (lessEqualThanOp) name() string { return "lessEqualThan" }
func (lessEqualThanOp) compare(first, second value.Value) bool {
	a, aOk := first.Number()
	b, bOk := second.Number()
	return aOk && bOk && a <= b
}

type containOperator struct {
	first, second accessor.Accessor
}

func (c *containOperator) Name() string { return "contain" }

func (c *containOperator) Evaluate(event *model.ProcessedEvent) bool {
	first, ok := c.first.Get(event)
	if !ok {
		return false
	}
	second, ok := c.second.Get(event)
	if !ok {
		return false
	}

	if text, ok := first.RawText(); ok {
		needle, ok := second.AsText()
		return ok && strings.Contains(text, needle)
	}
	if items, ok := first.Items(); ok {
		for _, item := range items {
			if value.Equal(item, second) {
				return true
			}
		}
		return false
	}
	if keys, ok := first.Keys(); ok {
		needle, ok := second.AsText()
		if !ok {
			return false
		}
		for _, k := range keys {
			if k == needle {
				return true
			}
		}
		return false
	}
	return false
}

type regexOperator struct {
	pattern string
	regex   *regexp2.Regexp
	target  accessor.Accessor
}

func (r *regexOperator) Name() string { return "regex" }

func (r *regexOperator) Evaluate(event *model.ProcessedEvent) bool {
	v, ok := r.target.Get(event)
	if !ok {
		return false
	}
	text, ok := v.AsText()
	if !ok {
		return false
	}
	match, err := r.regex.MatchString(text)
	return err == nil && match
}

type andOperator struct {
	operators []Operator
}

func (a *andOperator) Name() string { return "and" }

func (a *andOperator) Evaluate(event *model.ProcessedEvent) bool {
	for _, op := range a.operators {
		if !op.Evaluate(event) {
			return false
		}
	}
	return true
}

type orOperator struct {
	operators []Operator
}

func (o *orOperator) Name() string { return "or" }

func (o *orOperator) Evaluate(event *model.ProcessedEvent) bool {
	for _, op := range o.operators {
		if op.Evaluate(event) {
			return true
		}
	}
	return false
}
