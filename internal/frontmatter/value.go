// Package frontmatter models the key-value metadata block that precedes a
// note body. Values form a closed variant (null, bool, number, string,
// sequence, mapping) with accessors that report a type mismatch instead of
// panicking.
package frontmatter

import (
	"fmt"
	"math"
)

// Kind identifies the variant held by a Value.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a dynamically-typed frontmatter value. The zero Value is null.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	float bool
	s     string
	tag   string // original YAML tag for strings decoded from timestamps etc.
	seq   []Value
	m     *Map
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an integer number.
func Int(i int64) Value { return Value{kind: KindNumber, i: i} }

// Float wraps a floating point number.
func Float(f float64) Value { return Value{kind: KindNumber, f: f, float: true} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Sequence wraps an ordered list of values.
func Sequence(vs ...Value) Value {
	seq := make([]Value, len(vs))
	copy(seq, vs)
	return Value{kind: KindSequence, seq: seq}
}

// Strings is a convenience constructor for a sequence of strings.
func Strings(ss ...string) Value {
	seq := make([]Value, len(ss))
	for i, s := range ss {
		seq[i] = String(s)
	}
	return Value{kind: KindSequence, seq: seq}
}

// Mapping wraps a nested map. A nil map becomes an empty one.
func Mapping(m *Map) Value {
	if m == nil {
		m = New()
	}
	return Value{kind: KindMapping, m: m}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsInt returns the integer held by v. Floats with a fractional part do not convert.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if !v.float {
		return v.i, true
	}
	if v.f != math.Trunc(v.f) || math.IsInf(v.f, 0) || math.IsNaN(v.f) {
		return 0, false
	}
	return int64(v.f), true
}

// AsFloat returns the number held by v as a float64.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if v.float {
		return v.f, true
	}
	return float64(v.i), true
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsSequence returns the elements held by v. The slice is shared with v.
func (v Value) AsSequence() ([]Value, bool) {
	if v.kind != KindSequence {
		return nil, false
	}
	return v.seq, true
}

// AsMapping returns the nested map held by v.
func (v Value) AsMapping() (*Map, bool) {
	if v.kind != KindMapping {
		return nil, false
	}
	return v.m, true
}

// Equal reports deep equality. Numbers compare by value regardless of
// integer or float representation.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		if !v.float && !o.float {
			return v.i == o.i
		}
		a, _ := v.AsFloat()
		b, _ := o.AsFloat()
		return a == b
	case KindString:
		return v.s == o.s
	case KindSequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		return v.m.Equal(o.m)
	}
	return false
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindSequence:
		seq := make([]Value, len(v.seq))
		for i, e := range v.seq {
			seq[i] = e.Clone()
		}
		v.seq = seq
	case KindMapping:
		v.m = v.m.Clone()
	}
	return v
}

// Any converts v into plain Go values (nil, bool, int64, float64, string,
// []any, map[string]any), suitable for JSON encoding.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if v.float {
			return v.f
		}
		return v.i
	case KindString:
		return v.s
	case KindSequence:
		out := make([]any, len(v.seq))
		for i, e := range v.seq {
			out[i] = e.Any()
		}
		return out
	case KindMapping:
		return v.m.ToAny()
	default:
		return nil
	}
}

// FromAny converts generically decoded data into a Value. Maps with
// non-string keys have their keys formatted with %v.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Float(float64(t)), nil
		}
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case []string:
		return Strings(t...), nil
	case []any:
		seq := make([]Value, 0, len(t))
		for _, e := range t {
			ev, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			seq = append(seq, ev)
		}
		return Value{kind: KindSequence, seq: seq}, nil
	case map[string]any:
		m := New()
		for _, k := range sortedKeys(t) {
			ev, err := FromAny(t[k])
			if err != nil {
				return Value{}, err
			}
			m.Set(k, ev)
		}
		return Mapping(m), nil
	case map[any]any:
		conv := make(map[string]any, len(t))
		for k, e := range t {
			conv[fmt.Sprintf("%v", k)] = e
		}
		return FromAny(conv)
	default:
		return Value{}, fmt.Errorf("frontmatter: unsupported value type %T", x)
	}
}
