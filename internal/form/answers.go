package form

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type valueKind uint8

const (
	kindString valueKind = iota + 1
	kindNumber
	kindBoolean
)

// Value is a single answer: a string, a number or a boolean. Upload answers are URL strings.
// The zero Value is absent.
type Value struct {
	kind valueKind
	str  string
	num  float64
	flag bool
}

func StringValue(s string) Value  { return Value{kind: kindString, str: s} }
func NumberValue(n float64) Value { return Value{kind: kindNumber, num: n} }
func BooleanValue(b bool) Value   { return Value{kind: kindBoolean, flag: b} }

func (v Value) IsZero() bool            { return v.kind == 0 }
func (v Value) Str() (string, bool)     { return v.str, v.kind == kindString }
func (v Value) Number() (float64, bool) { return v.num, v.kind == kindNumber }
func (v Value) Bool() (bool, bool)      { return v.flag, v.kind == kindBoolean }
func (v Value) Equal(o Value) bool      { return v == o }

// Blank reports whether the value counts as unanswered for required-field checks:
// absent or the empty string. false and 0 are answers.
func (v Value) Blank() bool {
	return v.kind == 0 || (v.kind == kindString && v.str == "")
}

// Interface returns the value as a plain Go value.
func (v Value) Interface() any {
	switch v.kind {
	case kindString:
		return v.str
	case kindNumber:
		return v.num
	case kindBoolean:
		return v.flag
	default:
		return nil
	}
}

// IsURL reports whether the value is a string starting with http, the shape of an uploaded file.
func (v Value) IsURL() bool {
	return v.kind == kindString && strings.HasPrefix(v.str, "http")
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf converts a decoded JSON scalar into a Value.
func ValueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case string:
		return StringValue(x), nil
	case float64:
		return NumberValue(x), nil
	case int:
		return NumberValue(float64(x)), nil
	case bool:
		return BooleanValue(x), nil
	default:
		return Value{}, fmt.Errorf("%w: got %T", ErrInvalidAnswer, raw)
	}
}

// Answers maps a field id to the value supplied for it.
type Answers map[string]Value

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
