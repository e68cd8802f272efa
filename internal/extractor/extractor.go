// Package extractor compiles and runs a rule's "with" clause: named regex
// captures evaluated in sorted key order, written into the running
// extracted-variables map.
package extractor

import (
	"fmt"
	"sort"

	"github.com/danielsvitols/tornado/internal/accessor"
	"github.com/danielsvitols/tornado/internal/model"
	"github.com/danielsvitols/tornado/internal/value"
	"github.com/dlclark/regexp2"
)

// Config is the uncompiled form of one "with" entry.
type Config struct {
	From          string
	Pattern       string
	GroupMatchIdx int
	AllMatches    bool
}

// Extractor is a compiled named capture: where to read from, and which
// regex group(s) to pull out of it.
type Extractor struct {
	varName       string
	from          accessor.Accessor
	pattern       string
	regex         *regexp2.Regexp
	groupMatchIdx int
	allMatches    bool
}

// Builder compiles a rule's "with" map into a sorted slice of Extractors.
type Builder struct {
	accessor *accessor.Builder
}

// NewBuilder creates an extractor Builder.
func NewBuilder() *Builder {
	return &Builder{accessor: accessor.NewBuilder()}
}

// Build compiles every entry of "with" for ruleName, returning them already
// sorted by variable name so Run can iterate deterministically.
func (b *Builder) Build(ruleName string, with map[string]Config) ([]Extractor, error) {
	names := make([]string, 0, len(with))
	for name := range with {
		names = append(names, name)
	}
	sort.Strings(names)

	extractors := make([]Extractor, 0, len(names))
	for _, name := range names {
		cfg := with[name]
		from, err := b.accessor.Build(ruleName, cfg.From)
		if err != nil {
			return nil, err
		}
		re, err := regexp2.Compile(cfg.Pattern, regexp2.RE2)
		if err != nil {
			re, err = regexp2.Compile(cfg.Pattern, regexp2.None)
			if err != nil {
				return nil, fmt.Errorf("invalid regex %q for variable %q of rule %q: %w", cfg.Pattern, name, ruleName, err)
			}
		}
		extractors = append(extractors, Extractor{
			varName:       name,
			from:          from,
			pattern:       cfg.Pattern,
			regex:         re,
			groupMatchIdx: cfg.GroupMatchIdx,
			allMatches:    cfg.AllMatches,
		})
	}
	return extractors, nil
}

// Error reports which named variable failed to extract, and why.
type Error struct {
	RuleName string
	Variable string
	Reason   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("missing extracted variable %q for rule %q: %s", e.Variable, e.RuleName, e.Reason)
}

// Run evaluates every compiled Extractor, in the order Build produced
// (sorted by variable name), against event. It writes each qualified
// "<ruleName>.<var>" key into event.ExtractedVars as it succeeds, so a later
// extractor in the same rule can reference an earlier one via
// "${_variables.<var>}". On the first failure it rolls back every key this
// call inserted and returns the failure, leaving event.ExtractedVars exactly
// as it found it.
func Run(extractors []Extractor, ruleName string, event *model.ProcessedEvent) (map[string]value.Value, error) {
	inserted := make([]string, 0, len(extractors))
	result := make(map[string]value.Value, len(extractors))

	rollback := func() {
		for _, key := range inserted {
			delete(event.ExtractedVars, key)
		}
	}

	for _, ex := range extractors {
		v, err := ex.extract(event)
		if err != nil {
			rollback()
			return nil, &Error{RuleName: ruleName, Variable: ex.varName, Reason: err.Error()}
		}
		qualified := ruleName + "." + ex.varName
		event.ExtractedVars[qualified] = v
		inserted = append(inserted, qualified)
		result[qualified] = v
	}

	return result, nil
}

func (ex *Extractor) extract(event *model.ProcessedEvent) (value.Value, error) {
	v, ok := ex.from.Get(event)
	if !ok {
		return value.Value{}, fmt.Errorf("source accessor is absent")
	}
	text, ok := v.AsText()
	if !ok {
		return value.Value{}, fmt.Errorf("source value is not text")
	}

	if ex.allMatches {
		return ex.extractAll(text)
	}
	return ex.extractFirst(text)
}

func (ex *Extractor) extractFirst(text string) (value.Value, error) {
	m, err := ex.regex.FindStringMatch(text)
	if err != nil {
		return value.Value{}, fmt.Errorf("regex error: %w", err)
	}
	if m == nil {
		return value.Value{}, fmt.Errorf("regex %q did not match %q", ex.pattern, text)
	}
	g := groupByIndex(m, ex.groupMatchIdx)
	if g == nil {
		return value.Value{}, fmt.Errorf("regex group %d absent in match of %q", ex.groupMatchIdx, ex.pattern)
	}
	return value.NewText(g.String()), nil
}

func (ex *Extractor) extractAll(text string) (value.Value, error) {
	var results []value.Value

	m, err := ex.regex.FindStringMatch(text)
	if err != nil {
		return value.Value{}, fmt.Errorf("regex error: %w", err)
	}
	for m != nil {
		if g := groupByIndex(m, ex.groupMatchIdx); g != nil {
			results = append(results, value.NewText(g.String()))
		}
		m, err = ex.regex.FindNextMatch(m)
		if err != nil {
			return value.Value{}, fmt.Errorf("regex error: %w", err)
		}
	}

	if len(results) == 0 {
		return value.Value{}, fmt.Errorf("regex %q produced no matches in %q", ex.pattern, text)
	}
	return value.NewArray(results), nil
}

func groupByIndex(m *regexp2.Match, idx int) *regexp2.Group {
	groups := m.Groups()
	if idx < 0 || idx >= len(groups) {
		return nil
	}
	return &groups[idx]
}
