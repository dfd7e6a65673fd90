// Package codec converts field values to and from the store's native string wire form.
//
// The set of representable types is closed: every supported Go type has an explicit
// entry in the scalar table below, and the nullable form of a type is its pointer.
package codec

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnrepresentableType is returned when a type has no wire encoding
	ErrUnrepresentableType = errors.New("type is not representable")

	// ErrTypeMismatch is returned when a value does not match the codec's type
	ErrTypeMismatch = errors.New("value type does not match codec")

	// ErrDecode is returned when a stored value cannot be parsed as the codec's type
	ErrDecode = errors.New("cannot decode stored value")
)

// Codec encodes and decodes values of a single Go type.
//
// Encode reports present=false for a null value, which callers translate into
// removing the stored field. Decode is given present=false for an absent field.
type Codec struct {
	Type     reflect.Type
	Nullable bool

	encode func(v reflect.Value) (string, bool)
	decode func(s string, present bool) (reflect.Value, error)
}

// Encode converts v into its wire form
func (c Codec) Encode(v any) (string, bool, error) {
	if v == nil {
		if !c.Nullable {
			return "", false, fmt.Errorf("%w: nil for %s", ErrTypeMismatch, c.Type)
		}
		return "", false, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type() != c.Type {
		return "", false, fmt.Errorf("%w: %s for %s", ErrTypeMismatch, rv.Type(), c.Type)
	}

	s, present := c.encode(rv)
	return s, present, nil
}

// Decode converts a wire value back into a value of the codec's type.
// Times come back in UTC without a monotonic reading, so a UTC time round-trips
// under == and any other time under Equal.
func (c Codec) Decode(s string, present bool) (any, error) {
	rv, err := c.decode(s, present)
	if err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

// scalar is the encode/decode pair for one non-nullable base type
type scalar struct {
	encode func(v reflect.Value) string
	decode func(s string) (reflect.Value, error)
}

var (
	timeType  = reflect.TypeOf(time.Time{})
	uuidType  = reflect.TypeOf(uuid.UUID{})
	bytesType = reflect.TypeOf([]byte(nil))
)

var scalars = map[reflect.Type]scalar{
	reflect.TypeOf(false): {
		encode: func(v reflect.Value) string {
			if v.Bool() {
				return "1"
			}
			return "0"
		},
		decode: func(s string) (reflect.Value, error) {
			b, err := strconv.ParseBool(s)
			return reflect.ValueOf(b), err
		},
	},
	reflect.TypeOf(int(0)): {
		encode: encodeInt,
		decode: func(s string) (reflect.Value, error) {
			n, err := strconv.ParseInt(s, 10, strconv.IntSize)
			return reflect.ValueOf(int(n)), err
		},
	},
	reflect.TypeOf(int32(0)): {
		encode: encodeInt,
		decode: func(s string) (reflect.Value, error) {
			n, err := strconv.ParseInt(s, 10, 32)
			return reflect.ValueOf(int32(n)), err
		},
	},
	reflect.TypeOf(int64(0)): {
		encode: encodeInt,
		decode: func(s string) (reflect.Value, error) {
			n, err := strconv.ParseInt(s, 10, 64)
			return reflect.ValueOf(n), err
		},
	},
	reflect.TypeOf(float32(0)): {
		encode: func(v reflect.Value) string {
			return strconv.FormatFloat(v.Float(), 'g', -1, 32)
		},
		decode: func(s string) (reflect.Value, error) {
			f, err := strconv.ParseFloat(s, 32)
			return reflect.ValueOf(float32(f)), err
		},
	},
	reflect.TypeOf(float64(0)): {
		encode: func(v reflect.Value) string {
			return strconv.FormatFloat(v.Float(), 'g', -1, 64)
		},
		decode: func(s string) (reflect.Value, error) {
			f, err := strconv.ParseFloat(s, 64)
			return reflect.ValueOf(f), err
		},
	},
	reflect.TypeOf(""): {
		encode: func(v reflect.Value) string { return v.String() },
		decode: func(s string) (reflect.Value, error) { return reflect.ValueOf(s), nil },
	},
	timeType: {
		encode: func(v reflect.Value) string {
			return v.Interface().(time.Time).UTC().Format(time.RFC3339Nano)
		},
		decode: func(s string) (reflect.Value, error) {
			t, err := time.Parse(time.RFC3339Nano, s)
			return reflect.ValueOf(t.UTC()), err
		},
	},
	uuidType: {
		encode: func(v reflect.Value) string {
			return v.Interface().(uuid.UUID).String()
		},
		decode: func(s string) (reflect.Value, error) {
			id, err := uuid.Parse(s)
			return reflect.ValueOf(id), err
		},
	},
}

func encodeInt(v reflect.Value) string {
	return strconv.FormatInt(v.Int(), 10)
}

// Lookup returns the codec for t, or ErrUnrepresentableType
func Lookup(t reflect.Type) (Codec, error) {
	if t == nil {
		return Codec{}, fmt.Errorf("%w: <nil>", ErrUnrepresentableType)
	}

	if t == bytesType {
		return bytesCodec(), nil
	}

	if sc, ok := scalars[t]; ok {
		return Codec{
			Type: t,
			encode: func(v reflect.Value) (string, bool) {
				return sc.encode(v), true
			},
			decode: func(s string, present bool) (reflect.Value, error) {
				if !present {
					return reflect.Zero(t), nil
				}
				rv, err := sc.decode(s)
				if err != nil {
					return reflect.Value{}, fmt.Errorf("%w: %q as %s: %v", ErrDecode, s, t, err)
				}
				return rv, nil
			},
		}, nil
	}

	if t.Kind() == reflect.Pointer {
		if sc, ok := scalars[t.Elem()]; ok {
			return nullableCodec(t, sc), nil
		}
	}

	return Codec{}, fmt.Errorf("%w: %s", ErrUnrepresentableType, t)
}

// For returns the codec for T
func For[T any]() (Codec, error) {
	return Lookup(reflect.TypeOf((*T)(nil)).Elem())
}

// Representable reports whether t has a codec
func Representable(t reflect.Type) bool {
	_, err := Lookup(t)
	return err == nil
}

// IsInteger reports whether t is one of the integer scalar types
func IsInteger(t reflect.Type) bool {
	if _, ok := scalars[t]; !ok {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func nullableCodec(t reflect.Type, sc scalar) Codec {
	return Codec{
		Type:     t,
		Nullable: true,
		encode: func(v reflect.Value) (string, bool) {
			if v.IsNil() {
				return "", false
			}
			return sc.encode(v.Elem()), true
		},
		decode: func(s string, present bool) (reflect.Value, error) {
			if !present {
				return reflect.Zero(t), nil
			}
			rv, err := sc.decode(s)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%w: %q as %s: %v", ErrDecode, s, t, err)
			}
			ptr := reflect.New(t.Elem())
			ptr.Elem().Set(rv)
			return ptr, nil
		},
	}
}

// bytesCodec treats a nil slice as null and any other slice, empty included, as present
func bytesCodec() Codec {
	return Codec{
		Type:     bytesType,
		Nullable: true,
		encode: func(v reflect.Value) (string, bool) {
			if v.IsNil() {
				return "", false
			}
			return string(v.Bytes()), true
		},
		decode: func(s string, present bool) (reflect.Value, error) {
			if !present {
				return reflect.Zero(bytesType), nil
			}
			return reflect.ValueOf([]byte(s)), nil
		},
	}
}

// TypeList returns the sorted names of every representable type, nullable forms suffixed with "?"
func TypeList() string {
	names := make([]string, 0, len(scalars)*2+1)
	for t := range scalars {
		names = append(names, t.String(), t.String()+"?")
	}
	names = append(names, bytesType.String())
	sort.Strings(names)
	return strings.Join(names, ",")
}
