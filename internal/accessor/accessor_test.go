package accessor

import (
	"testing"

	"github.com/danielsvitols/tornado/internal/model"
	"github.com/danielsvitols/tornado/internal/value"
)

func newEvent(eventType string, payload value.Value) *model.ProcessedEvent {
	return model.NewProcessedEvent(model.NewEvent("trace-1", eventType, 1000, payload))
}

func TestConstantAccessor(t *testing.T) {
	b := NewBuilder()
	a, err := b.Build("rule1", "constant_value")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	event := newEvent("event_type_string", value.NewMapBuilder().Build())
	v, ok := a.Get(event)
	if !ok {
		t.Fatal("expected a value")
	}
	if s, _ := v.AsText(); s != "constant_value" {
		t.Errorf("got %q", s)
	}
}

func TestEventTypeAccessor(t *testing.T) {
	b := NewBuilder()
	a, err := b.Build("rule1", "${event.type}")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	event := newEvent("event_type_string", value.NewMapBuilder().Build())
	v, ok := a.Get(event)
	if !ok || mustText(t, v) != "event_type_string" {
		t.Errorf("got %v, %v", v, ok)
	}
}

func TestPayloadAccessor(t *testing.T) {
	b := NewBuilder()
	a, err := b.Build("rule1", "${event.payload.body}")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	payload := value.NewMapBuilder().
		Set("body", value.NewText("body_value")).
		Set("subject", value.NewText("subject_value")).
		Build()
	event := newEvent("event_type_string", payload)

	v, ok := a.Get(event)
	if !ok || mustText(t, v) != "body_value" {
		t.Errorf("got %v, %v", v, ok)
	}
}

func TestPayloadAccessorReturnsCompoundValues(t *testing.T) {
	b := NewBuilder()
	a, err := b.Build("rule1", "${event.payload.body}")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	body := value.NewMapBuilder().Set("first", value.NewText("a")).Set("second", value.NewText("b")).Build()
	payload := value.NewMapBuilder().Set("body", body).Build()
	event := newEvent("event_type_string", payload)

	v, ok := a.Get(event)
	if !ok {
		t.Fatal("expected a value")
	}
	if !value.Equal(v, body) {
		t.Errorf("got %#v, want %#v", v, body)
	}
}

func TestPayloadAccessorQuotedKey(t *testing.T) {
	b := NewBuilder()
	a, err := b.Build("rule1", `${event.payload."SNMPv2-SMI::enterprises.14848"}`)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	payload := value.NewMapBuilder().Set("SNMPv2-SMI::enterprises.14848", value.NewText("oid_value")).Build()
	event := newEvent("event_type_string", payload)

	v, ok := a.Get(event)
	if !ok || mustText(t, v) != "oid_value" {
		t.Errorf("got %v, %v", v, ok)
	}
}

func TestPayloadAccessorUnbalancedQuoteIsError(t *testing.T) {
	b := NewBuilder()
	if _, err := b.Build("rule1", `${event.payload."bad}`); err == nil {
		t.Error("expected error for unbalanced quote")
	}
}

func TestPayloadAccessorArrayIndex(t *testing.T) {
	b := NewBuilder()
	a, err := b.Build("rule1", "${event.payload.items[1]}")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	items := value.NewArray([]value.Value{value.NewText("x"), value.NewText("y")})
	payload := value.NewMapBuilder().Set("items", items).Build()
	event := newEvent("event_type_string", payload)

	v, ok := a.Get(event)
	if !ok || mustText(t, v) != "y" {
		t.Errorf("got %v, %v", v, ok)
	}
}

func TestPayloadAccessorOutOfBoundsIndexIsAbsent(t *testing.T) {
	b := NewBuilder()
	a, err := b.Build("rule1", "${event.payload.items[5]}")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	items := value.NewArray([]value.Value{value.NewText("x")})
	payload := value.NewMapBuilder().Set("items", items).Build()
	event := newEvent("event_type_string", payload)

	if _, ok := a.Get(event); ok {
		t.Error("expected absent for out-of-bounds index")
	}
}

func TestWholeEventAccessor(t *testing.T) {
	b := NewBuilder()
	a, err := b.Build("rule1", "${event}")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	payload := value.NewMapBuilder().Set("body", value.NewText("x")).Build()
	event := newEvent("event_type_string", payload)

	v, ok := a.Get(event)
	if !ok {
		t.Fatal("expected a value")
	}
	typ, _ := v.Child("type")
	if mustText(t, typ) != "event_type_string" {
		t.Errorf("got type %v", typ)
	}
}

func TestExtractedVarAccessor(t *testing.T) {
	b := NewBuilder()
	a, err := b.Build("rule1", "${_variables.ip_addr}")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	event := newEvent("event_type_string", value.NewMapBuilder().Build())
	event.ExtractedVars["rule1.ip_addr"] = value.NewText("10.0.0.1")

	v, ok := a.Get(event)
	if !ok || mustText(t, v) != "10.0.0.1" {
		t.Errorf("got %v, %v", v, ok)
	}
}

func TestExtractedVarAccessorInvalidIdentifier(t *testing.T) {
	b := NewBuilder()
	if _, err := b.Build("rule1", "${_variables.bad-name}"); err == nil {
		t.Error("expected error for invalid identifier")
	}
}

func TestInterpolatedAccessor(t *testing.T) {
	b := NewBuilder()
	a, err := b.Build("rule1", "ip is ${event.payload.ip} on ${event.type}")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	payload := value.NewMapBuilder().Set("ip", value.NewText("10.0.0.1")).Build()
	event := newEvent("alert", payload)

	v, ok := a.Get(event)
	if !ok || mustText(t, v) != "ip is 10.0.0.1 on alert" {
		t.Errorf("got %v, %v", v, ok)
	}
}

func TestInterpolatedAccessorAbsentWhenPartMissing(t *testing.T) {
	b := NewBuilder()
	a, err := b.Build("rule1", "ip is ${event.payload.missing}")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	event := newEvent("alert", value.NewMapBuilder().Build())
	if _, ok := a.Get(event); ok {
		t.Error("expected absent interpolation when a part is missing")
	}
}

func TestInterpolatedAccessorAbsentForCompoundValue(t *testing.T) {
	b := NewBuilder()
	a, err := b.Build("rule1", "body is ${event.payload.body}")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	body := value.NewMapBuilder().Set("k", value.NewText("v")).Build()
	payload := value.NewMapBuilder().Set("body", body).Build()
	event := newEvent("alert", payload)

	if _, ok := a.Get(event); ok {
		t.Error("expected absent interpolation for a compound value")
	}
}

func TestUnknownAccessor(t *testing.T) {
	b := NewBuilder()
	if _, err := b.Build("rule1", "${event.bogus}"); err == nil {
		t.Error("expected UnknownAccessor error")
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
