package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// FromJSON parses JSON bytes into a Value tree, preserving object key order
// (encoding/json's map[string]interface{} decoding does not, which would
// break the "maps are ordered" rendering guarantee for action templates).
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeJSONToken(dec, tok)
}

func decodeJSONToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeJSONObject(dec)
		case '[':
			return decodeJSONArray(dec)
		default:
			return Value{}, fmt.Errorf("value: unexpected JSON delimiter %q", t)
		}
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid JSON number %q: %w", t.String(), err)
		}
		return NewNumber(f), nil
	case string:
		return NewText(t), nil
	default:
		return Value{}, fmt.Errorf("value: unsupported JSON token %T", tok)
	}
}

func decodeJSONObject(dec *json.Decoder) (Value, error) {
	b := NewMapBuilder()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return Value{}, fmt.Errorf("value: expected JSON object key, got %T", keyTok)
		}
		val, err := decodeJSONValue(dec)
		if err != nil {
			return Value{}, err
		}
		b.Set(key, val)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return Value{}, err
	}
	return b.Build(), nil
}

func decodeJSONArray(dec *json.Decoder) (Value, error) {
	var items []Value
	for dec.More() {
		val, err := decodeJSONValue(dec)
		if err != nil {
			return Value{}, err
		}
		items = append(items, val)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return Value{}, err
	}
	return NewArray(items), nil
}

// ToJSON renders a Value back into canonical JSON, preserving map key order.
func ToJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		if v.boolVal {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		enc, err := json.Marshal(v.numVal)
		if err != nil {
			return err
		}
		buf.Write(enc)
	case Text:
		enc, err := json.Marshal(v.textVal)
		if err != nil {
			return err
		}
		buf.Write(enc)
	case Array:
		buf.WriteByte('[')
		for i, item := range v.arrVal {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Map:
		buf.WriteByte('{')
		for i, key := range v.mapKeys {
			if i > 0 {
				buf.WriteByte(',')
			}
			enc, err := json.Marshal(key)
			if err != nil {
				return err
			}
			buf.Write(enc)
			buf.WriteByte(':')
			if err := writeJSON(buf, v.mapVal[key]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("value: cannot encode kind %v as JSON", v.kind)
	}
	return nil
}
