// Package value defines the JSON-compatible entity payload that curator
// versions, diffs and merges.
//
// A Value is one of Object, Array, String, Number, Bool or Null. A nil
// Value means "absent" and is distinct from an explicit Null only where a
// map key or array slot exists to hold it.
//
//	v, err := value.Of(map[string]any{"title": "Fest", "year": 2024})
//	title, _ := value.Get(v, []string{"title"})
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/agentstation/curator/pkg/errors"
)

// Kind identifies the variant of a Value.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the kind name.
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
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// maxDepth bounds nesting so that cyclic input fails instead of overflowing the stack.
const maxDepth = 512

// Value is a JSON-compatible tree node.
type Value interface {
	Kind() Kind
	sealed()
}

type (
	// Null is the JSON null literal.
	Null struct{}
	// Bool is a JSON boolean.
	Bool bool
	// Number is a JSON number.
	Number float64
	// String is a JSON string.
	String string
	// Array is an ordered sequence of values.
	Array []Value
	// Object is a keyed map of values.
	Object map[string]Value
)

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Number) Kind() Kind { return KindNumber }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }
func (Object) Kind() Kind { return KindObject }

func (Null) sealed()   {}
func (Bool) sealed()   {}
func (Number) sealed() {}
func (String) sealed() {}
func (Array) sealed()  {}
func (Object) sealed() {}

// MarshalJSON encodes Null as the JSON null literal.
func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// IsNull reports whether v is absent or an explicit null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// IsContainer reports whether v is an Object or an Array.
func IsContainer(v Value) bool {
	switch v.(type) {
	case Object, Array:
		return true
	}
	return false
}

// KindOf returns the kind of v, treating nil as null.
func KindOf(v Value) Kind {
	if v == nil {
		return KindNull
	}
	return v.Kind()
}

// Of converts an arbitrary Go value into a Value. Maps, slices and scalars
// are converted directly; structs and other types go through encoding/json.
func Of(in any) (Value, error) {
	return fromAny(in, 0)
}

// MustOf is like Of but panics on error. Intended for tests and literals.
func MustOf(in any) Value {
	v, err := Of(in)
	if err != nil {
		panic(err)
	}
	return v
}

func fromAny(in any, depth int) (Value, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d (cyclic value?)", errors.ErrSerialization, maxDepth)
	}

	switch v := in.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return fromValue(v, depth)
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case float64:
		return number(v)
	case float32:
		return number(float64(v))
	case int:
		return Number(v), nil
	case int8:
		return Number(v), nil
	case int16:
		return Number(v), nil
	case int32:
		return Number(v), nil
	case int64:
		return Number(v), nil
	case uint:
		return Number(v), nil
	case uint8:
		return Number(v), nil
	case uint16:
		return Number(v), nil
	case uint32:
		return Number(v), nil
	case uint64:
		return Number(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrSerialization, err)
		}
		return number(f)
	case map[string]any:
		out := make(Object, len(v))
		for k, child := range v {
			cv, err := fromAny(child, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = cv
		}
		return out, nil
	case []any:
		out := make(Array, len(v))
		for i, child := range v {
			cv, err := fromAny(child, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	case map[string]string:
		out := make(Object, len(v))
		for k, s := range v {
			out[k] = String(s)
		}
		return out, nil
	case []string:
		out := make(Array, len(v))
		for i, s := range v {
			out[i] = String(s)
		}
		return out, nil
	}

	rv := reflect.ValueOf(in)
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return nil, fmt.Errorf("%w: unsupported type %T", errors.ErrSerialization, in)
	}

	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrSerialization, err)
	}
	return Parse(data)
}

func fromValue(v Value, depth int) (Value, error) {
	switch t := v.(type) {
	case Number:
		return number(float64(t))
	case Array:
		if t == nil {
			return Array{}, nil
		}
		for _, child := range t {
			if _, err := fromAny(child, depth+1); err != nil {
				return nil, err
			}
		}
	case Object:
		if t == nil {
			return Object{}, nil
		}
		for _, child := range t {
			if _, err := fromAny(child, depth+1); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

func number(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: number %v is not representable in JSON", errors.ErrSerialization, f)
	}
	return Number(f), nil
}

// ToAny converts a Value into plain Go values (map[string]any, []any,
// string, float64, bool, nil).
func ToAny(v Value) any {
	switch t := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(t)
	case Number:
		return float64(t)
	case String:
		return string(t)
	case Array:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = ToAny(child)
		}
		return out
	case Object:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = ToAny(child)
		}
		return out
	}
	return nil
}

// As converts v into a T. When T is Value itself, v is returned unchanged.
func As[T any](v Value) (T, error) {
	var out T
	if p, ok := any(&out).(*Value); ok {
		*p = v
		return out, nil
	}
	data, err := Encode(v)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: decode into %T: %v", errors.ErrSerialization, out, err)
	}
	return out, nil
}

// index parses an array path segment, accepting positions in [0, limit).
func index(seg string, limit int) (int, error) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 {
		return 0, errors.NewValidationError("path", seg, "array index must be a non-negative integer")
	}
	if i >= limit {
		return 0, errors.NewValidationError("path", seg, fmt.Sprintf("array index out of range (len %d)", limit))
	}
	return i, nil
}
