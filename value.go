// File: config/value.go
package config

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Value is a JSON-like configuration value. The set of implementations is
// closed: Null, Bool, Number, String, Array and Object.
type Value interface {
	isValue()
}

// Null is an explicit null value.
type Null struct{}

func (Null) isValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) isValue() {}

// Number is an arbitrary-precision numeric literal kept in its textual
// form, same as encoding/json's Number.
type Number json.Number

func (Number) isValue() {}

func (n Number) String() string { return string(n) }

// Int64 parses the number as a signed integer.
func (n Number) Int64() (int64, error) { return json.Number(n).Int64() }

// Uint64 parses the number as an unsigned integer.
func (n Number) Uint64() (uint64, error) {
	return strconv.ParseUint(string(n), 10, 64)
}

// Float64 parses the number as a float.
func (n Number) Float64() (float64, error) { return json.Number(n).Float64() }

// IsInteger reports whether the literal has no fractional or exponent part.
func (n Number) IsInteger() bool {
	return !strings.ContainsAny(string(n), ".eE")
}

// String is a string value, optionally flagged as a secret. Secret strings
// never render their contents.
type String struct {
	value  string
	secret bool
}

func (String) isValue() {}

// PlainString wraps an ordinary string value.
func PlainString(s string) String { return String{value: s} }

// SecretString wraps a string value flagged as secret.
func SecretString(s string) String { return String{value: s, secret: true} }

// Expose returns the underlying string regardless of secrecy.
func (s String) Expose() string { return s.value }

// IsSecret reports whether the value is flagged as a secret.
func (s String) IsSecret() bool { return s.secret }

func (s String) String() string {
	if s.secret {
		return "[REDACTED]"
	}
	return s.value
}

// Array is an ordered list of values.
type Array []*WithOrigin

func (Array) isValue() {}

// Object is a string-keyed map of values.
type Object map[string]*WithOrigin

func (Object) isValue() {}

// WithOrigin pairs a value with its origin. Container nodes carry origins
// as well as leaves.
type WithOrigin struct {
	Value  Value
	Origin Origin
}

// NewWithOrigin creates a value node. A nil origin is normalized to unknown.
func NewWithOrigin(value Value, origin Origin) *WithOrigin {
	return &WithOrigin{Value: value, Origin: originOrUnknown(origin)}
}

// Pointer is a dotted path into a value tree. The empty pointer refers to
// the root.
type Pointer string

// Segments splits the pointer into path segments; the root pointer has none.
func (p Pointer) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), ".")
}

// Join appends a segment (or a dotted suffix) to the pointer.
func (p Pointer) Join(suffix string) Pointer {
	if suffix == "" {
		return p
	}
	if p == "" {
		return Pointer(suffix)
	}
	return p + "." + Pointer(suffix)
}

// SplitLast splits off the last segment. Returns ok=false for the root.
func (p Pointer) SplitLast() (parent Pointer, last string, ok bool) {
	if p == "" {
		return "", "", false
	}
	if idx := strings.LastIndexByte(string(p), '.'); idx >= 0 {
		return p[:idx], string(p[idx+1:]), true
	}
	return "", string(p), true
}

// Ancestors lists all strict ancestors of the pointer, starting from the
// root pointer.
func (p Pointer) Ancestors() []Pointer {
	ancestors := []Pointer{""}
	s := string(p)
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			ancestors = append(ancestors, Pointer(s[:i]))
		}
	}
	if p == "" {
		return ancestors[:0]
	}
	return ancestors
}

// Get returns the node at the given pointer, or nil if absent. Arrays are
// indexed by decimal segments.
func (w *WithOrigin) Get(ptr Pointer) *WithOrigin {
	current := w
	for _, segment := range ptr.Segments() {
		if current == nil {
			return nil
		}
		switch v := current.Value.(type) {
		case Object:
			current = v[segment]
		case Array:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil
			}
			current = v[idx]
		default:
			return nil
		}
	}
	return current
}

// ensureObject returns the object at the given pointer, creating missing
// intermediate objects (and replacing non-object nodes) along the way.
// Created nodes receive origins from mkOrigin.
func (w *WithOrigin) ensureObject(ptr Pointer, mkOrigin func(Pointer) Origin) Object {
	current := w
	walked := Pointer("")
	for _, segment := range ptr.Segments() {
		obj, isObj := current.Value.(Object)
		if !isObj {
			obj = Object{}
			current.Value = obj
		}
		walked = walked.Join(segment)
		child := obj[segment]
		if child == nil {
			child = NewWithOrigin(Object{}, mkOrigin(walked))
			obj[segment] = child
		}
		current = child
	}
	obj, isObj := current.Value.(Object)
	if !isObj {
		obj = Object{}
		current.Value = obj
	}
	return obj
}

// Clone deep-copies the node.
func (w *WithOrigin) Clone() *WithOrigin {
	if w == nil {
		return nil
	}
	clone := &WithOrigin{Origin: w.Origin}
	switch v := w.Value.(type) {
	case Array:
		items := make(Array, len(v))
		for i, item := range v {
			items[i] = item.Clone()
		}
		clone.Value = items
	case Object:
		fields := make(Object, len(v))
		for key, field := range v {
			fields[key] = field.Clone()
		}
		clone.Value = fields
	default:
		clone.Value = v
	}
	return clone
}

// valueType maps a value to its basic type; Null maps to no type.
func valueType(v Value) BasicTypes {
	switch v := v.(type) {
	case Bool:
		return TypeBool
	case Number:
		if v.IsInteger() {
			return TypeInteger
		}
		return TypeFloat
	case String:
		return TypeString
	case Array:
		return TypeArray
	case Object:
		return TypeObject
	default:
		return 0
	}
}

// valueSupports reports whether a value can plausibly deserialize into one
// of the expected types. Strings are allowed for scalar expectations since
// scalars are coercible from strings.
func valueSupports(v Value, expecting BasicTypes) bool {
	switch v := v.(type) {
	case Null:
		return true
	case String:
		return expecting&(TypeString|TypeInteger|TypeFloat|TypeBool) != 0
	case Number:
		if v.IsInteger() {
			return expecting&(TypeInteger|TypeFloat) != 0
		}
		return expecting&TypeFloat != 0
	default:
		return expecting&valueType(v) != 0
	}
}

// typeName renders the value kind for error messages.
func typeName(v Value) string {
	switch v.(type) {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}
