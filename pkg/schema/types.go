package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Type validates one condition parameter value.
type Type interface {
	// Name is the type string accepted by ParseType, e.g. "int" or "[string]".
	Name() string
	Validate(value any) error
}

type scalar struct {
	name  string
	check func(any) bool
}

func (t scalar) Name() string { return t.name }

func (t scalar) Validate(value any) error {
	if !t.check(value) {
		return fmt.Errorf("expected %s, got %T", t.name, value)
	}
	return nil
}

// String accepts string values.
func String() Type {
	return scalar{name: "string", check: func(v any) bool { _, ok := v.(string); return ok }}
}

// Bool accepts boolean values.
func Bool() Type {
	return scalar{name: "bool", check: func(v any) bool { _, ok := v.(bool); return ok }}
}

// Int accepts integers, including whole floats produced by JSON decoding.
func Int() Type {
	return scalar{name: "int", check: func(v any) bool {
		switch n := v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	}}
}

// Float accepts any numeric value.
func Float() Type {
	return scalar{name: "float", check: func(v any) bool {
		switch v.(type) {
		case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		}
		return false
	}}
}

type slice struct {
	elem Type
}

func (t slice) Name() string { return "[" + t.elem.Name() + "]" }

func (t slice) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected %s, got %T", t.Name(), value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// Slice accepts slices whose elements all satisfy elem.
func Slice(elem Type) Type { return slice{elem: elem} }

type custom struct {
	name  string
	check func(any) error
}

func (t custom) Name() string             { return t.name }
func (t custom) Validate(value any) error { return t.check(value) }

// Custom wraps a validation function under a type name.
func Custom(name string, validate func(any) error) Type {
	return custom{name: name, check: validate}
}

// ParseType converts a type string ("string", "int", "float", "bool" or a
// bracketed slice of one of them) into a Type.
func ParseType(s string) (Type, error) {
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") && len(s) > 2 {
		elem, err := ParseType(s[1 : len(s)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}
	switch s {
	case "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "bool":
		return Bool(), nil
	}
	return nil, fmt.Errorf("unsupported type: %s", s)
}

// ParseTypeMap converts field names mapped to type strings into a Schema.
func ParseTypeMap(m map[string]string) (Schema, error) {
	out := make(Schema, len(m))
	for key, s := range m {
		t, err := ParseType(s)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		out[key] = t
	}
	return out, nil
}
