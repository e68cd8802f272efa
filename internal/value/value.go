// Package value implements the dynamically-typed tree used to represent
// event payloads, extracted variables, and action templates throughout the
// matcher. A Value is immutable once built; all mutating operations return a
// new Value.
package value

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Kind identifies which variant of Value is populated.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	Text
	Array
	Map
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case Text:
		return "text"
	case Array:
		return "array"
	case Map:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the six JSON-like shapes the matcher needs to
// reason about. Map preserves insertion order so that rendered action
// payloads mirror the order they were declared in configuration.
type Value struct {
	kind Kind

	boolVal bool
	numVal  float64
	textVal string
	arrVal  []Value

	mapKeys []string
	mapVal  map[string]Value
}

// NewNull returns the Null value.
func NewNull() Value { return Value{kind: Null} }

// NewBool wraps a boolean.
func NewBool(b bool) Value { return Value{kind: Bool, boolVal: b} }

// NewNumber wraps a float64.
func NewNumber(n float64) Value { return Value{kind: Number, numVal: n} }

// NewText wraps a string.
func NewText(s string) Value { return Value{kind: Text, textVal: s} }

// NewArray wraps a sequence of values. The slice is retained, not copied.
func NewArray(items []Value) Value { return Value{kind: Array, arrVal: items} }

// NewMap builds a Map value from an ordered list of keys and their values.
// keys must not contain duplicates; callers that build maps incrementally
// should use NewMapBuilder instead.
func NewMap(keys []string, vals map[string]Value) Value {
	return Value{kind: Map, mapKeys: keys, mapVal: vals}
}

// MapBuilder accumulates key/value pairs in insertion order.
type MapBuilder struct {
	keys []string
	vals map[string]Value
}

// NewMapBuilder creates an empty, order-preserving map builder.
func NewMapBuilder() *MapBuilder {
	return &MapBuilder{vals: map[string]Value{}}
}

// Set inserts or overwrites a key. Overwriting an existing key keeps its
// original position.
func (b *MapBuilder) Set(key string, v Value) *MapBuilder {
	if _, exists := b.vals[key]; !exists {
		b.keys = append(b.keys, key)
	}
	b.vals[key] = v
	return b
}

// Build finalizes the builder into a Map Value.
func (b *MapBuilder) Build() Value {
	return Value{kind: Map, mapKeys: b.keys, mapVal: b.vals}
}

// Kind reports which variant is populated.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the Null value.
func (v Value) IsNull() bool { return v.kind == Null }

// Bool returns the boolean payload and whether v is a Bool.
func (v Value) Bool() (bool, bool) {
	if v.kind != Bool {
		return false, false
	}
	return v.boolVal, true
}

// Number returns the numeric payload and whether v is a Number.
func (v Value) Number() (float64, bool) {
	if v.kind != Number {
		return 0, false
	}
	return v.numVal, true
}

// RawText returns the string payload and whether v is Text (NOT a rendering;
// use AsText for canonical text coercion of any scalar).
func (v Value) RawText() (string, bool) {
	if v.kind != Text {
		return "", false
	}
	return v.textVal, true
}

// Items returns the element slice and whether v is an Array.
func (v Value) Items() ([]Value, bool) {
	if v.kind != Array {
		return nil, false
	}
	return v.arrVal, true
}

// Keys returns the ordered key list and whether v is a Map.
func (v Value) Keys() ([]string, bool) {
	if v.kind != Map {
		return nil, false
	}
	return v.mapKeys, true
}

// Child looks up a key in a Map value. Absent on non-Map values or missing
// keys.
func (v Value) Child(key string) (Value, bool) {
	if v.kind != Map {
		return Value{}, false
	}
	val, ok := v.mapVal[key]
	return val, ok
}

// Index looks up a zero-based element in an Array value. Negative indices
// and out-of-bounds indices are rejected (absent), never wrapped.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != Array || i < 0 || i >= len(v.arrVal) {
		return Value{}, false
	}
	return v.arrVal[i], true
}

// AsText renders a scalar value as text for use in interpolation and
// template contexts. Text returns as-is. Numbers render canonically
// (integral values without a trailing ".0", see formatNumber). Booleans
// render as "true"/"false". Null, Array, and Map are not renderable and
// return ok=false.
func (v Value) AsText() (string, bool) {
	switch v.kind {
	case Text:
		return v.textVal, true
	case Number:
		return formatNumber(v.numVal), true
	case Bool:
		if v.boolVal {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Equal implements the value-equality rules used by the Equal operator:
// numbers compare as float64, text never coerces to/from number, and
// Map/Array compare structurally. A cheap xxhash digest of both operands'
// canonical form short-circuits large structural comparisons before falling
// back to a full recursive compare (the hash never substitutes for it, since
// two distinct values may collide).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.boolVal == b.boolVal
	case Number:
		return a.numVal == b.numVal
	case Text:
		return a.textVal == b.textVal
	case Array, Map:
		if digest(a) != digest(b) {
			return false
		}
		return deepEqual(a, b)
	default:
		return false
	}
}

func deepEqual(a, b Value) bool {
	switch a.kind {
	case Array:
		if len(a.arrVal) != len(b.arrVal) {
			return false
		}
		for i := range a.arrVal {
			if !Equal(a.arrVal[i], b.arrVal[i]) {
				return false
			}
		}
		return true
	case Map:
		if len(a.mapVal) != len(b.mapVal) {
			return false
		}
		for k, av := range a.mapVal {
			bv, ok := b.mapVal[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return Equal(a, b)
	}
}

// digest returns a stable xxhash of the value's canonical textual form. It
// is used only as a cheap mismatch detector ahead of deepEqual.
func digest(v Value) uint64 {
	h := xxhash.New()
	writeCanonical(h, v)
	return h.Sum64()
}

func writeCanonical(h *xxhash.Digest, v Value) {
	switch v.kind {
	case Null:
		_, _ = h.WriteString("n:")
	case Bool:
		_, _ = h.WriteString("b:")
		if v.boolVal {
			_, _ = h.WriteString("1")
		} else {
			_, _ = h.WriteString("0")
		}
	case Number:
		_, _ = h.WriteString("f:")
		_, _ = h.WriteString(formatNumber(v.numVal))
	case Text:
		_, _ = h.WriteString("t:")
		_, _ = h.WriteString(v.textVal)
	case Array:
		_, _ = h.WriteString("a:")
		for _, item := range v.arrVal {
			writeCanonical(h, item)
			_, _ = h.WriteString(",")
		}
	case Map:
		_, _ = h.WriteString("m:")
		for _, k := range sortedKeys(v.mapVal) {
			_, _ = h.WriteString(k)
			_, _ = h.WriteString("=")
			writeCanonical(h, v.mapVal[k])
			_, _ = h.WriteString(",")
		}
	}
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Simple insertion sort: map key sets here are small (rule/config
	// fragments), and avoiding an extra import keeps this leaf package tiny.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// GoString supports %#v-style debugging output.
func (v Value) GoString() string {
	switch v.kind {
	case Null:
		return "value.Null"
	case Bool:
		return fmt.Sprintf("value.Bool(%v)", v.boolVal)
	case Number:
		return fmt.Sprintf("value.Number(%v)", v.numVal)
	case Text:
		return fmt.Sprintf("value.Text(%q)", v.textVal)
	case Array:
		return fmt.Sprintf("value.Array(len=%d)", len(v.arrVal))
	case Map:
		return fmt.Sprintf("value.Map(len=%d)", len(v.mapVal))
	default:
		return "value.Unknown"
	}
}
