package models

import (
	"math"
	"sort"
)

// Kind identifies which member of the Value union is populated.
type Kind uint8

const (
	// KindNull is the null literal. It is the zero Kind, so the zero Value is null.
	KindNull Kind = iota
	// KindBool is true or false.
	KindBool
	// KindNumber is an IEEE-754 double.
	KindNumber
	// KindString is a UTF-8 string.
	KindString
	// KindArray is an ordered list of values.
	KindArray
	// KindObject is an ordered map of string keys to values.
	KindObject
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
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the canonical JSON data model every codec reads and writes.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  *Object
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Array returns an array value holding items.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

// ObjectValue wraps an ordered object. A nil object becomes an empty one.
func ObjectValue(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

// Kind reports the populated member.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload, false for other kinds.
func (v Value) AsBool() bool { return v.b }

// AsNumber returns the numeric payload, 0 for other kinds.
func (v Value) AsNumber() float64 { return v.n }

// AsString returns the string payload, "" for other kinds.
func (v Value) AsString() string { return v.s }

// Items returns the array elements. The slice is shared with v.
func (v Value) Items() []Value { return v.arr }

// Object returns the object payload, nil for other kinds.
func (v Value) Object() *Object { return v.obj }

// IsInteger reports whether v is a finite number without a fractional part.
func (v Value) IsInteger() bool {
	return v.kind == KindNumber && !math.IsInf(v.n, 0) && v.n == math.Trunc(v.n)
}

// IsScalar reports whether v is neither an array nor an object.
func (v Value) IsScalar() bool {
	return v.kind != KindArray && v.kind != KindObject
}

// Interface converts v into plain Go values: nil, bool, float64, string,
// []any and map[string]any. Key order is lost.
func (v Value) Interface() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, v.obj.Len())
		v.obj.Range(func(key string, item Value) bool {
			out[key] = item.Interface()
			return true
		})
		return out
	default:
		return nil
	}
}

// FromInterface builds a Value from plain Go values. Map keys are sorted
// because Go maps carry no order.
func FromInterface(in any) Value {
	switch x := in.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case bool:
		return Bool(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case string:
		return String(x)
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = FromInterface(item)
		}
		return Array(items...)
	case []string:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = String(item)
		}
		return Array(items...)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			obj.Set(k, FromInterface(x[k]))
		}
		return ObjectValue(obj)
	default:
		return Null()
	}
}

// IsEmpty reports whether v is null, the empty string or an empty array.
func IsEmpty(v Value) bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.s == ""
	case KindArray:
		return len(v.arr) == 0
	default:
		return false
	}
}

// Equal reports deep equality. Object comparison ignores key order.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		equal := true
		a.obj.Range(func(key string, av Value) bool {
			bv, ok := b.obj.Get(key)
			if !ok || !Equal(av, bv) {
				equal = false
				return false
			}
			return true
		})
		return equal
	default:
		return false
	}
}

// Object is an insertion-ordered map with unique keys.
type Object struct {
	keys   []string
	values map[string]Value
}

// Pair is one key/value entry used to build objects in order.
type Pair struct {
	Key   string
	Value Value
}

// Field is shorthand for building a Pair.
func Field(key string, v Value) Pair { return Pair{Key: key, Value: v} }

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// ObjectOf returns an object value holding pairs in the given order.
func ObjectOf(pairs ...Pair) Value {
	obj := NewObject()
	for _, p := range pairs {
		obj.Set(p.Key, p.Value)
	}
	return ObjectValue(obj)
}

// Set assigns key. An existing key keeps its original position.
func (o *Object) Set(key string, v Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get returns the value for key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Delete removes key, preserving the order of the remaining keys.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns a copy of the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Range calls fn for every entry in order until fn returns false.
func (o *Object) Range(fn func(key string, v Value) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy: the entries are shared, the ordering is not.
func (o *Object) Clone() *Object {
	out := &Object{
		keys:   make([]string, len(o.keys)),
		values: make(map[string]Value, len(o.values)),
	}
	copy(out.keys, o.keys)
	for k, v := range o.values {
		out.values[k] = v
	}
	return out
}
