// Package variant provides the value type stored in resource properties.
//
// A Variant is either a single value or a list of values of one Kind. Resource
// values are URIs of other resources. Variants convert to and from RDF nodes so
// the resource layer can persist them as statements.
package variant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the type of the values held by a Variant.
type Kind uint8

const (
	Invalid Kind = iota
	Int
	Double
	Bool
	String
	DateTime
	Resource
)

var kindNames = map[Kind]string{
	Invalid:  "invalid",
	Int:      "int",
	Double:   "double",
	Bool:     "bool",
	String:   "string",
	DateTime: "datetime",
	Resource: "resource",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind returns the Kind named s.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return Invalid, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

var (
	// ErrKindMismatch is returned when values of different kinds are combined.
	ErrKindMismatch = errors.New("variant kind mismatch")

	// ErrUnknownKind is returned when decoding an unknown kind name.
	ErrUnknownKind = errors.New("unknown variant kind")
)

// Variant is an immutable tagged union. The zero value is invalid.
type Variant struct {
	kind   Kind
	list   bool
	values []any
}

func scalar(k Kind, v any) Variant {
	return Variant{kind: k, values: []any{v}}
}

func list[T any](k Kind, vs []T) Variant {
	values := make([]any, len(vs))
	for i, v := range vs {
		values[i] = v
	}
	return Variant{kind: k, list: true, values: values}
}

// NewInt returns an integer scalar.
func NewInt(v int64) Variant { return scalar(Int, v) }

// NewDouble returns a floating point scalar.
func NewDouble(v float64) Variant { return scalar(Double, v) }

// NewBool returns a boolean scalar.
func NewBool(v bool) Variant { return scalar(Bool, v) }

// NewString returns a string scalar.
func NewString(v string) Variant { return scalar(String, v) }

// NewDateTime returns a timestamp scalar, normalised to UTC.
func NewDateTime(v time.Time) Variant { return scalar(DateTime, v.UTC()) }

// NewResource returns a reference to the resource with the given URI.
func NewResource(uri string) Variant { return scalar(Resource, uri) }

func NewIntList(vs ...int64) Variant         { return list(Int, vs) }
func NewDoubleList(vs ...float64) Variant    { return list(Double, vs) }
func NewBoolList(vs ...bool) Variant         { return list(Bool, vs) }
func NewStringList(vs ...string) Variant     { return list(String, vs) }
func NewResourceList(uris ...string) Variant { return list(Resource, uris) }

// NewDateTimeList returns a list of timestamps, normalised to UTC.
func NewDateTimeList(vs ...time.Time) Variant {
	utc := make([]time.Time, len(vs))
	for i, v := range vs {
		utc[i] = v.UTC()
	}
	return list(DateTime, utc)
}

// Kind returns the kind of the held values.
func (v Variant) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Variant) IsValid() bool { return v.kind != Invalid }

// IsList reports whether v is a list.
func (v Variant) IsList() bool { return v.list }

// Len returns the number of held values.
func (v Variant) Len() int { return len(v.values) }

// Append returns a list containing the values of v followed by those of other.
// Appending to an invalid variant returns other as a list.
func (v Variant) Append(other Variant) (Variant, error) {
	if !other.IsValid() {
		return v, nil
	}
	if !v.IsValid() {
		return Variant{kind: other.kind, list: true, values: append([]any(nil), other.values...)}, nil
	}
	if v.kind != other.kind {
		return Variant{}, fmt.Errorf("%w: cannot append %s to %s", ErrKindMismatch, other.kind, v.kind)
	}
	values := make([]any, 0, len(v.values)+len(other.values))
	values = append(values, v.values...)
	values = append(values, other.values...)
	return Variant{kind: v.kind, list: true, values: values}, nil
}

// Contains reports whether any value of v equals any value of other.
func (v Variant) Contains(other Variant) bool {
	if v.kind != other.kind {
		return false
	}
	for _, a := range v.values {
		for _, b := range other.values {
			if valueEqual(a, b) {
				return true
			}
		}
	}
	return false
}

// Equal reports whether v and other hold the same values in the same order.
// A scalar equals a list of one.
func (v Variant) Equal(other Variant) bool {
	if v.kind != other.kind || len(v.values) != len(other.values) {
		return false
	}
	for i := range v.values {
		if !valueEqual(v.values[i], other.values[i]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// ToInt returns the first value as an integer.
func (v Variant) ToInt() int64 {
	if len(v.values) == 0 {
		return 0
	}
	return toInt(v.values[0])
}

func toInt(x any) int64 {
	switch x := x.(type) {
	case int64:
		return x
	case float64:
		return int64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	case time.Time:
		return x.Unix()
	}
	return 0
}

// ToDouble returns the first value as a float.
func (v Variant) ToDouble() float64 {
	if len(v.values) == 0 {
		return 0
	}
	switch x := v.values[0].(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	default:
		return float64(toInt(x))
	}
}

// ToBool returns the first value as a boolean.
func (v Variant) ToBool() bool {
	if len(v.values) == 0 {
		return false
	}
	switch x := v.values[0].(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	default:
		return toInt(x) != 0
	}
}

// ToString returns all values rendered as text, joined by ", " for lists.
func (v Variant) ToString() string {
	return strings.Join(v.ToStringList(), ", ")
}

// ToStringList returns each value rendered as text.
func (v Variant) ToStringList() []string {
	out := make([]string, len(v.values))
	for i, x := range v.values {
		out[i] = formatValue(x)
	}
	return out
}

func formatValue(x any) string {
	switch x := x.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	}
	return ""
}

// ToDateTime returns the first value as a timestamp.
func (v Variant) ToDateTime() time.Time {
	if len(v.values) == 0 {
		return time.Time{}
	}
	switch x := v.values[0].(type) {
	case time.Time:
		return x
	case string:
		t, _ := time.Parse(time.RFC3339Nano, x)
		return t
	case int64:
		return time.Unix(x, 0).UTC()
	}
	return time.Time{}
}

// ToResource returns the first resource URI, or "" if v is not a resource.
func (v Variant) ToResource() string {
	if v.kind != Resource || len(v.values) == 0 {
		return ""
	}
	return v.values[0].(string)
}

// ToIntList returns all values as integers.
func (v Variant) ToIntList() []int64 {
	out := make([]int64, len(v.values))
	for i, x := range v.values {
		out[i] = toInt(x)
	}
	return out
}

// ToResourceList returns all resource URIs.
func (v Variant) ToResourceList() []string {
	if v.kind != Resource {
		return nil
	}
	out := make([]string, len(v.values))
	for i, x := range v.values {
		out[i] = x.(string)
	}
	return out
}

// Values returns the held values as a list variant of the same kind.
func (v Variant) Values() []Variant {
	out := make([]Variant, len(v.values))
	for i, x := range v.values {
		out[i] = scalar(v.kind, x)
	}
	return out
}

// String implements fmt.Stringer.
func (v Variant) String() string {
	if !v.IsValid() {
		return "<invalid>"
	}
	if v.list {
		return fmt.Sprintf("%s[%s]", v.kind, v.ToString())
	}
	return fmt.Sprintf("%s(%s)", v.kind, v.ToString())
}
