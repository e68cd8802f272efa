package matcher

import (
	"testing"

	"github.com/danielsvitols/tornado/internal/config"
	"github.com/danielsvitols/tornado/internal/model"
	"github.com/danielsvitols/tornado/internal/value"
)

func equalOp(first, second string) *config.OperatorNode {
	return &config.OperatorNode{Type: "equal", First: first, Second: second}
}

func TestSimpleMatch(t *testing.T) {
	node := config.Node{
		Type: config.KindRuleset,
		Name: "rs",
		Rules: []config.RuleNode{
			{Name: "r1", Constraint: config.ConstraintNode{Where: equalOp("${event.type}", "email")}},
			{Name: "r2", Constraint: config.ConstraintNode{Where: equalOp("${event.type}", "sms")}},
		},
	}

	m, err := New(node)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	event := model.NewEvent("t1", "email", 0, value.NewMapBuilder().Build())
	result := m.Process(event)

	rules := result.Result.Rules.Rules
	if rules[0].Status != model.RuleMatched {
		t.Errorf("r1 = %v, want Matched", rules[0].Status)
	}
	if rules[1].Status != model.RuleNotMatched {
		t.Errorf("r2 = %v, want NotMatched", rules[1].Status)
	}
}

func TestExtractionChainSeed(t *testing.T) {
	node := config.Node{
		Type: config.KindRuleset,
		Name: "rs",
		Rules: []config.RuleNode{
			{
				Name: "r1",
				Constraint: config.ConstraintNode{
					With: map[string]config.ExtractorNode{
						"a": {From: "${event.type}", Regex: config.RegexNode{Pattern: "e(.)ail", GroupMatchIdx: 1}},
						"b": {From: "${_variables.a}", Regex: config.RegexNode{Pattern: ".", GroupMatchIdx: 0}},
					},
				},
			},
		},
	}

	m, err := New(node)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	event := model.NewEvent("t1", "email", 0, value.NewMapBuilder().Build())
	result := m.Process(event)

	rule := result.Result.Rules.Rules[0]
	if rule.Status != model.RuleMatched {
		t.Fatalf("status = %v", rule.Status)
	}
	a, ok := result.ExtractedVars["r1.a"]
	if !ok || mustText(t, a) != "m" {
		t.Errorf("r1.a = %v", a)
	}
	b, ok := result.ExtractedVars["r1.b"]
	if !ok || mustText(t, b) != "m" {
		t.Errorf("r1.b = %v", b)
	}
}

func TestPartialMatch(t *testing.T) {
	node := config.Node{
		Type: config.KindRuleset,
		Name: "rs",
		Rules: []config.RuleNode{
			{
				Name: "r1",
				Constraint: config.ConstraintNode{
					With: map[string]config.ExtractorNode{
						"a": {From: "${event.type}", Regex: config.RegexNode{Pattern: "nomatch", GroupMatchIdx: 0}},
					},
				},
			},
		},
	}

	m, err := New(node)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	event := model.NewEvent("t1", "email", 0, value.NewMapBuilder().Build())
	result := m.Process(event)

	rule := result.Result.Rules.Rules[0]
	if rule.Status != model.RulePartiallyMatched {
		t.Fatalf("status = %v", rule.Status)
	}
	if len(rule.Actions) != 0 {
		t.Error("expected no actions")
	}
	if rule.Message == "" {
		t.Error("expected a diagnostic message")
	}
}

func TestQuotedKeySeed(t *testing.T) {
	node := config.Node{
		Type: config.KindRuleset,
		Name: "rs",
		Rules: []config.RuleNode{
			{
				Name: "r1",
				Constraint: config.ConstraintNode{
					With: map[string]config.ExtractorNode{
						"v": {From: `${event.payload."k.with.dots"}`, Regex: config.RegexNode{Pattern: ".*", GroupMatchIdx: 0}},
					},
				},
			},
		},
	}

	m, err := New(node)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	payload := value.NewMapBuilder().Set("k.with.dots", value.NewText("ok")).Build()
	event := model.NewEvent("t1", "x", 0, payload)
	result := m.Process(event)

	v, ok := result.ExtractedVars["r1.v"]
	if !ok || mustText(t, v) != "ok" {
		t.Errorf("r1.v = %v", v)
	}
}

func TestFilterGating(t *testing.T) {
	root := config.Node{
		Type:   config.KindFilter,
		Name:   "root",
		Filter: equalOp("${event.type}", "email"),
		Nodes: []config.Node{
			{Type: config.KindRuleset, Name: "rs", Rules: []config.RuleNode{{Name: "r1"}}},
		},
	}

	m, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	event := model.NewEvent("t1", "sms", 0, value.NewMapBuilder().Build())
	result := m.Process(event)

	if result.Result.FilterStatus != model.FilterNotMatched {
		t.Fatalf("filter status = %v", result.Result.FilterStatus)
	}
	if len(result.Result.Nodes) != 0 {
		t.Error("expected children not evaluated when filter does not match")
	}
}

func TestInactiveRule(t *testing.T) {
	inactive := false
	node := config.Node{
		Type: config.KindRuleset,
		Name: "rs",
		Rules: []config.RuleNode{
			{Name: "r1", Active: &inactive, Constraint: config.ConstraintNode{Where: equalOp("1", "1")}},
		},
	}

	m, err := New(node)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	event := model.NewEvent("t1", "x", 0, value.NewMapBuilder().Build())
	result := m.Process(event)

	rule := result.Result.Rules.Rules[0]
	if rule.Status != model.RuleNotProcessed {
		t.Fatalf("status = %v, want NotProcessed", rule.Status)
	}
	if len(rule.Actions) != 0 {
		t.Error("expected no actions for an inactive rule")
	}
}

func TestDoContinueShortCircuit(t *testing.T) {
	poisoned := false
	doContinue := false
	node := config.Node{
		Type: config.KindRuleset,
		Name: "rs",
		Rules: []config.RuleNode{
			{Name: "r1", DoContinue: doContinue, Constraint: config.ConstraintNode{Where: equalOp("1", "1")}},
			{Name: "r2", Constraint: config.ConstraintNode{Where: equalOp("1", "1")}},
		},
	}

	m, err := New(node)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	event := model.NewEvent("t1", "x", 0, value.NewMapBuilder().Build())
	result := m.Process(event)

	if len(result.Result.Rules.Rules) != 1 {
		t.Fatalf("expected r2 not evaluated after r1's do_continue=false, got %d rules", len(result.Result.Rules.Rules))
	}
	_ = poisoned
}

func TestRulesetIsolation(t *testing.T) {
	// Both rulesets declare a rule named "dup" (allowed: uniqueness is only
	// enforced within a single ruleset). rsA's "dup" extracts "v"; rsB's
	// "dup" never does, and gates on whether "_variables.v" (qualified to
	// "dup.v" either way) is visible. If rulesets shared one scope, rsB
	// would see rsA's leftover "dup.v" and match; isolation requires it to
	// see nothing and fall through to NotMatched.
	root := config.Node{
		Type: config.KindFilter,
		Name: "root",
		Nodes: []config.Node{
			{
				Type: config.KindRuleset,
				Name: "rsA",
				Rules: []config.RuleNode{
					{Name: "dup", Constraint: config.ConstraintNode{
						With: map[string]config.ExtractorNode{
							"v": {From: "${event.type}", Regex: config.RegexNode{Pattern: ".*", GroupMatchIdx: 0}},
						},
					}},
				},
			},
			{
				Type: config.KindRuleset,
				Name: "rsB",
				Rules: []config.RuleNode{
					{Name: "dup", Constraint: config.ConstraintNode{Where: equalOp("${_variables.v}", "x")}},
				},
			},
		},
	}

	m, err := New(root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	event := model.NewEvent("t1", "x", 0, value.NewMapBuilder().Build())
	result := m.Process(event)

	rsA := result.Result.Nodes[0].Rules.Rules[0]
	if rsA.Status != model.RuleMatched {
		t.Fatalf("rsA.dup = %v, want Matched", rsA.Status)
	}

	rsB := result.Result.Nodes[1].Rules.Rules[0]
	if rsB.Status != model.RuleNotMatched {
		t.Fatalf("rsB.dup = %v, want NotMatched since rsA's variables are not visible", rsB.Status)
	}
}

func mustText(t *testing.T, v value.Value) string {
	t.Helper()
	s, ok := v.AsText()
	if !ok {
		t.Fatalf("value %#v is not text", v)
	}
	return s
}
