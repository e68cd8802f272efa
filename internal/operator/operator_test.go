package operator

import (
	"testing"

	"github.com/danielsvitols/tornado/internal/model"
	"github.com/danielsvitols/tornado/internal/value"
)

func newEvent(eventType string, payload value.Value) *model.ProcessedEvent {
	return model.NewProcessedEvent(model.NewEvent("trace-1", eventType, 1000, payload))
}

func TestEqualOperator(t *testing.T) {
	b := NewBuilder()
	op, err := b.Build("rule1", Config{Kind: KindEqual, First: "${event.type}", Second: "email"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !op.Evaluate(newEvent("email", value.NewMapBuilder().Build())) {
		t.Error("expected match")
	}
	if op.Evaluate(newEvent("sms", value.NewMapBuilder().Build())) {
		t.Error("expected no match")
	}
}

func TestEqualOperatorAbsentAccessorIsFalse(t *testing.T) {
	b := NewBuilder()
	op, err := b.Build("rule1", Config{Kind: KindEqual, First: "${event.payload.missing}", Second: "x"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if op.Evaluate(newEvent("email", value.NewMapBuilder().Build())) {
		t.Error("expected false when accessor is absent")
	}
}

func TestContainOperatorOnText(t *testing.T) {
	b := NewBuilder()
	op, err := b.Build("rule1", Config{Kind: KindContain, First: "${event.payload.body}", Second: "needle"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	payload := value.NewMapBuilder().Set("body", value.NewText("a needle in a haystack")).Build()
	if !op.Evaluate(newEvent("t", payload)) {
		t.Error("expected contain match")
	}
}

func TestContainOperatorOnArray(t *testing.T) {
	b := NewBuilder()
	op, err := b.Build("rule1", Config{Kind: KindContain, First: "${event.payload.tags}", Second: "prod"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	tags := value.NewArray([]value.Value{value.NewText("dev"), value.NewText("prod")})
	payload := value.NewMapBuilder().Set("tags", tags).Build()
	if !op.Evaluate(newEvent("t", payload)) {
		t.Error("expected array contains match")
	}
}

func TestComparisonOperators(t *testing.T) {
	b := NewBuilder()

	cases := []struct {
		kind ConfigKind
		a, b float64
		want bool
	}{
		{KindGreaterThan, 5, 3, true},
		{KindGreaterThan, 3, 5, false},
		{KindGreaterEqualThan, 5, 5, true},
		{KindLessThan, 3, 5, true},
		{KindLessEqualThan, 5, 5, true},
	}

	for _, c := range cases {
		payload := value.NewMapBuilder().
			Set("a", value.NewNumber(c.a)).
			Set("b", value.NewNumber(c.b)).
			Build()
		op, err := b.Build("rule1", Config{Kind: c.kind, First: "${event.payload.a}", Second: "${event.payload.b}"})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if got := op.Evaluate(newEvent("t", payload)); got != c.want {
			t.Errorf("%s(%v, %v) = %v, want %v", c.kind, c.a, c.b, got, c.want)
		}
	}
}

func TestRegexOperator(t *testing.T) {
	b := NewBuilder()
	op, err := b.Build("rule1", Config{Kind: KindRegex, Pattern: `^[a-fA-F0-9]+$`, Target: "${event.payload.hex}"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	payload := value.NewMapBuilder().Set("hex", value.NewText("deadbeef")).Build()
	if !op.Evaluate(newEvent("t", payload)) {
		t.Error("expected regex match")
	}
	payload2 := value.NewMapBuilder().Set("hex", value.NewText("not-hex!")).Build()
	if op.Evaluate(newEvent("t", payload2)) {
		t.Error("expected no regex match")
	}
}

func TestRegexOperatorInvalidPatternIsBuildError(t *testing.T) {
	b := NewBuilder()
	if _, err := b.Build("rule1", Config{Kind: KindRegex, Pattern: "(unclosed", Target: "x"}); err == nil {
		t.Error("expected build error for invalid regex")
	}
}

func TestAndOperator(t *testing.T) {
	b := NewBuilder()
	op, err := b.Build("rule1", Config{Kind: KindAnd, Operators: []Config{
		{Kind: KindEqual, First: "${event.type}", Second: "email"},
		{Kind: KindEqual, First: "a", Second: "a"},
	}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !op.Evaluate(newEvent("email", value.NewMapBuilder().Build())) {
		t.Error("expected and match")
	}
	if op.Evaluate(newEvent("sms", value.NewMapBuilder().Build())) {
		t.Error("expected and short-circuit to false")
	}
}

func TestEmptyAndIsTrue(t *testing.T) {
	b := NewBuilder()
	op, err := b.Build("rule1", Config{Kind: KindAnd, Operators: nil})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !op.Evaluate(newEvent("t", value.NewMapBuilder().Build())) {
		t.Error("expected empty conjunction to be true")
	}
}

func TestEmptyOrIsFalse(t *testing.T) {
	b := NewBuilder()
	op, err := b.Build("rule1", Config{Kind: KindOr, Operators: nil})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if op.Evaluate(newEvent("t", value.NewMapBuilder().Build())) {
		t.Error("expected empty disjunction to be false")
	}
}

func TestOrOperator(t *testing.T) {
	b := NewBuilder()
	op, err := b.Build("rule1", Config{Kind: KindOr, Operators: []Config{
		{Kind: KindEqual, First: "${event.type}", Second: "sms"},
		{Kind: KindEqual, First: "${event.type}", Second: "email"},
	}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !op.Evaluate(newEvent("email", value.NewMapBuilder().Build())) {
		t.Error("expected or match")
	}
}

func TestBuildUnknownAccessorPropagatesError(t *testing.T) {
	b := NewBuilder()
	if _, err := b.Build("rule1", Config{Kind: KindEqual, First: "${event.bogus}", Second: "x"}); err == nil {
		t.Error("expected error to propagate from accessor build")
	}
}
