package value

import "testing"

func TestAsText(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want string
		ok   bool
	}{
		{"text", NewText("hello"), "hello", true},
		{"integral number", NewNumber(42), "42", true},
		{"fractional number", NewNumber(3.5), "3.5", true},
		{"bool true", NewBool(true), "true", true},
		{"bool false", NewBool(false), "false", true},
		{"null", NewNull(), "", false},
		{"array", NewArray(nil), "", false},
		{"map", NewMapBuilder().Build(), "", false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := c.v.AsText()
			if ok != c.ok || got != c.want {
				t.Errorf("AsText() = (%q, %v), want (%q, %v)", got, ok, c.want, c.ok)
			}
		})
	}
}

func TestChildAndIndex(t *testing.T) {
	m := NewMapBuilder().Set("a", NewText("1")).Set("b", NewNumber(2)).Build()

	if v, ok := m.Child("a"); !ok {
		t.Fatal("expected child a")
	} else if s, _ := v.AsText(); s != "1" {
		t.Errorf("child a = %q", s)
	}

	if _, ok := m.Child("missing"); ok {
		t.Error("expected missing child to be absent")
	}

	arr := NewArray([]Value{NewText("x"), NewText("y")})
	if v, ok := arr.Index(1); !ok || mustText(t, v) != "y" {
		t.Errorf("Index(1) = %v, %v", v, ok)
	}
	if _, ok := arr.Index(-1); ok {
		t.Error("negative index must be rejected")
	}
	if _, ok := arr.Index(5); ok {
		t.Error("out-of-bounds index must be rejected")
	}
}

func mustText(t *testing.T, v Value) string {
	t.Helper()
	s, ok := v.AsText()
	if !ok {
		t.Fatalf("value %#v is not text", v)
	}
	return s
}

func TestEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"numbers equal", NewNumber(1), NewNumber(1), true},
		{"text vs number never coerces", NewText("1"), NewNumber(1), false},
		{"text equal", NewText("a"), NewText("a"), true},
		{
			"maps structurally equal regardless of build order",
			NewMapBuilder().Set("a", NewText("1")).Set("b", NewText("2")).Build(),
			NewMapBuilder().Set("b", NewText("2")).Set("a", NewText("1")).Build(),
			true,
		},
		{
			"arrays structurally different",
			NewArray([]Value{NewText("1"), NewText("2")}),
			NewArray([]Value{NewText("2"), NewText("1")}),
			false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Equal(c.a, c.b); got != c.want {
				t.Errorf("Equal() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestFromJSONPreservesKeyOrder(t *testing.T) {
	v, err := FromJSON([]byte(`{"z": 1, "a": 2, "m": 3}`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	keys, ok := v.Keys()
	if !ok {
		t.Fatal("expected a map")
	}
	want := []string{"z", "a", "m"}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], k)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	orig := NewMapBuilder().
		Set("name", NewText("tornado")).
		Set("count", NewNumber(3)).
		Set("tags", NewArray([]Value{NewText("a"), NewText("b")})).
		Build()

	enc, err := ToJSON(orig)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	decoded, err := FromJSON(enc)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if !Equal(orig, decoded) {
		t.Errorf("round trip mismatch: %s", enc)
	}
}
