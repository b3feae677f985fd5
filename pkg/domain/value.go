package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Kind tags the dynamic type held by a Value. The declaration order is the
// canonical cross-type sort order used by comparisons and indexes.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindDocument
	KindArray
	KindBool
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDocument:
		return "document"
	case KindArray:
		return "array"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a schema-less document value. Every leaf carries an explicit kind
// tag, so no reflection is needed to compare or index it.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	t    time.Time
	doc  *Document
	arr  []Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int is a convenience wrapper around Number.
func Int(i int) Value { return Value{kind: KindNumber, num: float64(i)} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date returns a date value truncated to millisecond precision.
func Date(t time.Time) Value {
	return Value{kind: KindDate, t: t.UTC().Truncate(time.Millisecond)}
}

// Doc wraps a nested document.
func Doc(d *Document) Value {
	if d == nil {
		d = NewDocument()
	}
	return Value{kind: KindDocument, doc: d}
}

// Array returns an array value.
func Array(items ...Value) Value {
	return Value{kind: KindArray, arr: items}
}

func (v Value) Kind() Kind          { return v.kind }
func (v Value) IsNull() bool        { return v.kind == KindNull }
func (v Value) IsDate() bool        { return v.kind == KindDate }
func (v Value) Num() float64        { return v.num }
func (v Value) Str() string         { return v.str }
func (v Value) Boolean() bool       { return v.b }
func (v Value) Time() time.Time     { return v.t }
func (v Value) Document() *Document { return v.doc }
func (v Value) Items() []Value      { return v.arr }

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindDocument:
		return Value{kind: KindDocument, doc: v.doc.Clone()}
	case KindArray:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.Clone()
		}
		return Value{kind: KindArray, arr: items}
	default:
		return v
	}
}

// Compare orders two values: first by kind, then by content.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindNumber:
		return compareFloat(a.num, b.num)
	case KindString:
		return strings.Compare(a.str, b.str)
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case KindDate:
		return a.t.Compare(b.t)
	case KindDocument:
		return compareDocuments(a.doc, b.doc)
	case KindArray:
		for i := 0; i < len(a.arr) && i < len(b.arr); i++ {
			if c := Compare(a.arr[i], b.arr[i]); c != 0 {
				return c
			}
		}
		return compareInt(len(a.arr), len(b.arr))
	}
	return 0
}

// Equal reports whether a and b compare equal.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

func compareFloat(a, b float64) int {
	// NaN sorts before every other number.
	switch {
	case math.IsNaN(a) && math.IsNaN(b):
		return 0
	case math.IsNaN(a):
		return -1
	case math.IsNaN(b):
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareDocuments(a, b *Document) int {
	af, bf := a.Fields(), b.Fields()
	for i := 0; i < len(af) && i < len(bf); i++ {
		if c := strings.Compare(af[i].Name, bf[i].Name); c != 0 {
			return c
		}
		if c := Compare(af[i].Value, bf[i].Value); c != 0 {
			return c
		}
	}
	return compareInt(len(af), len(bf))
}

// String renders the value for logs and explain output.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindNumber:
		return fmt.Sprintf("%v", v.num)
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindDate:
		return "new Date(" + v.t.Format(time.RFC3339Nano) + ")"
	case KindDocument:
		parts := make([]string, 0, v.doc.Len())
		for _, f := range v.doc.Fields() {
			parts = append(parts, fmt.Sprintf("%s: %s", f.Name, f.Value))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, item := range v.arr {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "?"
}

// FromAny converts a decoded Go value (JSON, msgpack, literals in tests) into
// a Value. Maps with a single "$date" key are read as dates. Plain maps have no
// field order, so their keys are sorted.
func FromAny(in any) (Value, error) {
	switch v := in.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case *Document:
		return Doc(v), nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case float64:
		return Number(v), nil
	case float32:
		return Number(float64(v)), nil
	case int:
		return Number(float64(v)), nil
	case int8:
		return Number(float64(v)), nil
	case int16:
		return Number(float64(v)), nil
	case int32:
		return Number(float64(v)), nil
	case int64:
		return Number(float64(v)), nil
	case uint:
		return Number(float64(v)), nil
	case uint8:
		return Number(float64(v)), nil
	case uint16:
		return Number(float64(v)), nil
	case uint32:
		return Number(float64(v)), nil
	case uint64:
		return Number(float64(v)), nil
	case time.Time:
		return Date(v), nil
	case []any:
		items := make([]Value, len(v))
		for i, item := range v {
			conv, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = conv
		}
		return Array(items...), nil
	case map[string]any:
		if raw, ok := v["$date"]; ok && len(v) == 1 {
			return parseExtendedDate(raw)
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		doc := NewDocument()
		for _, k := range keys {
			conv, err := FromAny(v[k])
			if err != nil {
				return Value{}, err
			}
			doc.Append(k, conv)
		}
		return Doc(doc), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T: %w", in, ErrValidation)
	}
}

// MustValue is FromAny for literals known to be valid.
func MustValue(in any) Value {
	v, err := FromAny(in)
	if err != nil {
		panic(err)
	}
	return v
}

func parseExtendedDate(raw any) (Value, error) {
	switch d := raw.(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, d)
		if err != nil {
			return Value{}, fmt.Errorf("invalid $date %q: %w", d, ErrValidation)
		}
		return Date(t), nil
	case float64:
		return Date(time.UnixMilli(int64(d))), nil
	case int64:
		return Date(time.UnixMilli(d)), nil
	case int:
		return Date(time.UnixMilli(int64(d))), nil
	case map[string]any:
		// {"$numberLong": "..."} form produced by some exporters.
		if s, ok := d["$numberLong"].(string); ok {
			var ms int64
			if _, err := fmt.Sscan(s, &ms); err != nil {
				return Value{}, fmt.Errorf("invalid $numberLong %q: %w", s, ErrValidation)
			}
			return Date(time.UnixMilli(ms)), nil
		}
	}
	return Value{}, fmt.Errorf("invalid $date value %v: %w", raw, ErrValidation)
}

// ToAny converts v back to plain Go values; dates stay time.Time.
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindDate:
		return v.t
	case KindDocument:
		return v.doc.ToMap()
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.ToAny()
		}
		return out
	}
	return nil
}
