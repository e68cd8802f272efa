// Package matcher compiles a config.Node tree into an immutable Matcher and
// evaluates Events against it, producing a ProcessedEvent traversal report.
package matcher

import (
	"fmt"

	"github.com/danielsvitols/tornado/internal/action"
	"github.com/danielsvitols/tornado/internal/config"
	"github.com/danielsvitols/tornado/internal/extractor"
	"github.com/danielsvitols/tornado/internal/model"
	"github.com/danielsvitols/tornado/internal/operator"
	"github.com/danielsvitols/tornado/internal/validator"
)

// Matcher is an immutable, thread-safe compiled configuration. A single
// instance is shared by reference across every worker processing events; no
// synchronization is required between concurrent Process calls.
type Matcher struct {
	root compiledNode
}

// compiledNode is either a compiledFilter or a compiledRuleset.
type compiledNode struct {
	kind    model.NodeKind
	filter  *compiledFilter
	ruleset *compiledRuleset
}

type compiledFilter struct {
	name     string
	active   bool
	operator operator.Operator // nil means "absent filter", evaluates true
	children []compiledNode
}

type compiledRuleset struct {
	name  string
	rules []compiledRule
}

type compiledRule struct {
	name       string
	active     bool
	doContinue bool
	where      operator.Operator // nil means "absent where", evaluates true
	extractors []extractor.Extractor
	actions    []action.Template
}

// New compiles a config.Node tree into a Matcher. Every identifier,
// accessor expression, and regex pattern is validated and compiled here;
// failures propagate out of New and nothing is partially constructed.
func New(node config.Node) (*Matcher, error) {
	root, err := compileNode(node)
	if err != nil {
		return nil, err
	}
	return &Matcher{root: root}, nil
}

func compileNode(node config.Node) (compiledNode, error) {
	switch node.Type {
	case config.KindFilter:
		return compileFilter(node)
	case config.KindRuleset:
		return compileRuleset(node)
	default:
		return compiledNode{}, newBuildError("ConfigurationError", node.Name, fmt.Errorf("unknown node type %q", node.Type))
	}
}

func compileFilter(node config.Node) (compiledNode, error) {
	idValidator := validator.NewIDValidator()
	if err := idValidator.ValidateIdentifier(node.Name, "filter"); err != nil {
		return compiledNode{}, newBuildError("NotValidIdOrName", node.Name, err)
	}

	var op operator.Operator
	if node.Filter != nil {
		built, err := operator.NewBuilder().Build(node.Name, toOperatorConfig(*node.Filter))
		if err != nil {
			return compiledNode{}, newBuildError("UnknownAccessor", node.Name, err)
		}
		op = built
	}

	children := make([]compiledNode, 0, len(node.Nodes))
	for _, child := range node.Nodes {
		compiled, err := compileNode(child)
		if err != nil {
			return compiledNode{}, err
		}
		children = append(children, compiled)
	}

	return compiledNode{
		kind: model.NodeFilter,
		filter: &compiledFilter{
			name:     node.Name,
			active:   node.IsActive(),
			operator: op,
			children: children,
		},
	}, nil
}

func compileRuleset(node config.Node) (compiledNode, error) {
	idValidator := validator.NewIDValidator()
	if err := idValidator.ValidateIdentifier(node.Name, "ruleset"); err != nil {
		return compiledNode{}, newBuildError("NotValidIdOrName", node.Name, err)
	}

	names := make([]string, 0, len(node.Rules))
	for _, r := range node.Rules {
		names = append(names, r.Name)
	}
	if err := idValidator.ValidateUniqueRuleNames(names); err != nil {
		return compiledNode{}, newBuildError("NotUniqueName", node.Name, err)
	}

	rules := make([]compiledRule, 0, len(node.Rules))
	for _, r := range node.Rules {
		compiled, err := compileRule(node.Name, r)
		if err != nil {
			return compiledNode{}, err
		}
		rules = append(rules, compiled)
	}

	return compiledNode{
		kind:    model.NodeRuleset,
		ruleset: &compiledRuleset{name: node.Name, rules: rules},
	}, nil
}

func compileRule(rulesetName string, r config.RuleNode) (compiledRule, error) {
	idValidator := validator.NewIDValidator()
	if err := idValidator.ValidateIdentifier(r.Name, "rule"); err != nil {
		return compiledRule{}, newBuildError("NotValidIdOrName", rulesetName+"."+r.Name, err)
	}

	active := r.IsActive()

	// An inactive rule still compiles its own body (so malformed
	// configuration is still caught at build time) but Process always
	// reports it as NotProcessed regardless of what the body would do.
	var where operator.Operator
	if r.Constraint.Where != nil {
		built, err := operator.NewBuilder().Build(r.Name, toOperatorConfig(*r.Constraint.Where))
		if err != nil {
			return compiledRule{}, newBuildError("UnknownAccessor", r.Name, err)
		}
		where = built
	}

	withCfg := make(map[string]extractor.Config, len(r.Constraint.With))
	for name, ex := range r.Constraint.With {
		withCfg[name] = extractor.Config{
			From:          ex.From,
			Pattern:       ex.Regex.Pattern,
			GroupMatchIdx: ex.Regex.GroupMatchIdx,
			AllMatches:    ex.Regex.AllMatches,
		}
	}
	extractors, err := extractor.NewBuilder().Build(r.Name, withCfg)
	if err != nil {
		return compiledRule{}, newBuildError("UnknownAccessor", r.Name, err)
	}

	actionBuilder := action.NewBuilder()
	actions := make([]action.Template, 0, len(r.Actions))
	for _, a := range r.Actions {
		tmpl, err := actionBuilder.Build(r.Name, action.Config{ID: a.ID, Payload: a.Payload})
		if err != nil {
			return compiledRule{}, newBuildError("UnknownAccessor", r.Name, err)
		}
		actions = append(actions, tmpl)
	}

	return compiledRule{
		name:       r.Name,
		active:     active,
		doContinue: r.DoContinue,
		where:      where,
		extractors: extractors,
		actions:    actions,
	}, nil
}

func toOperatorConfig(node config.OperatorNode) operator.Config {
	cfg := operator.Config{
		Kind:    operator.ConfigKind(node.Type),
		First:   node.First,
		Second:  node.Second,
		Pattern: node.Pattern,
		Target:  node.Target,
	}
	for _, child := range node.Operators {
		cfg.Operators = append(cfg.Operators, toOperatorConfig(child))
	}
	return cfg
}

// Process evaluates event against the compiled tree, returning a fully
// populated ProcessedEvent. It never panics and never returns an error for
// the whole event; per-rule failures become PartiallyMatched.
func (m *Matcher) Process(event model.Event) *model.ProcessedEvent {
	processed := model.NewProcessedEvent(event)
	processed.Result = evaluateNode(m.root, processed)
	return processed
}

func evaluateNode(node compiledNode, processed *model.ProcessedEvent) model.ProcessedNode {
	switch node.kind {
	case model.NodeFilter:
		return evaluateFilter(node.filter, processed)
	case model.NodeRuleset:
		return evaluateRuleset(node.ruleset, processed)
	default:
		return model.ProcessedNode{}
	}
}

func evaluateFilter(f *compiledFilter, processed *model.ProcessedEvent) model.ProcessedNode {
	result := model.ProcessedNode{Kind: model.NodeFilter, Name: f.name}

	if !f.active {
		result.FilterStatus = model.FilterInactive
		return result
	}

	matched := f.operator == nil || f.operator.Evaluate(processed)
	if !matched {
		result.FilterStatus = model.FilterNotMatched
		return result
	}

	result.FilterStatus = model.FilterMatched
	result.Nodes = make([]model.ProcessedNode, 0, len(f.children))
	for _, child := range f.children {
		result.Nodes = append(result.Nodes, evaluateNode(child, processed))
	}
	return result
}

// evaluateRuleset evaluates every rule of rs in declaration order, using a
// variable scope isolated from every other ruleset in the tree. The scope
// starts empty: filters never produce extracted variables, so there is
// never anything to inherit.
func evaluateRuleset(rs *compiledRuleset, processed *model.ProcessedEvent) model.ProcessedNode {
	scope := model.NewProcessedEvent(processed.Event)

	rules := make([]model.ProcessedRule, 0, len(rs.rules))
	for _, rule := range rs.rules {
		rules = append(rules, evaluateRule(rule, scope))
		if ruleMatched(rules[len(rules)-1]) && !rule.doContinue {
			break
		}
	}

	for k, v := range scope.ExtractedVars {
		processed.ExtractedVars[k] = v
	}

	return model.ProcessedNode{
		Kind: model.NodeRuleset,
		Name: rs.name,
		Rules: model.ProcessedRules{
			Rules:         rules,
			ExtractedVars: scope.ExtractedVars,
		},
	}
}

func ruleMatched(r model.ProcessedRule) bool { return r.Status == model.RuleMatched }

func evaluateRule(rule compiledRule, scope *model.ProcessedEvent) model.ProcessedRule {
	if !rule.active {
		return model.ProcessedRule{Name: rule.name, Status: model.RuleNotProcessed}
	}

	if rule.where != nil && !rule.where.Evaluate(scope) {
		return model.ProcessedRule{Name: rule.name, Status: model.RuleNotMatched}
	}

	if _, err := extractor.Run(rule.extractors, rule.name, scope); err != nil {
		return model.ProcessedRule{
			Name:    rule.name,
			Status:  model.RulePartiallyMatched,
			Message: fmt.Sprintf("rule %q failed extraction: %v", rule.name, err),
		}
	}

	rendered := make([]model.RenderedAction, 0, len(rule.actions))
	for _, tmpl := range rule.actions {
		renderedAction, err := tmpl.Render(scope)
		if err != nil {
			rollbackRuleVars(scope, rule.name)
			return model.ProcessedRule{
				Name:    rule.name,
				Status:  model.RulePartiallyMatched,
				Message: fmt.Sprintf("rule %q failed action rendering: %v", rule.name, err),
			}
		}
		rendered = append(rendered, renderedAction)
	}

	return model.ProcessedRule{Name: rule.name, Status: model.RuleMatched, Actions: rendered}
}

// rollbackRuleVars removes every extracted variable belonging to ruleName
// from scope, undoing a successful extract_all after a later action-render
// failure.
func rollbackRuleVars(scope *model.ProcessedEvent, ruleName string) {
	prefix := ruleName + "."
	for k := range scope.ExtractedVars {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(scope.ExtractedVars, k)
		}
	}
}
