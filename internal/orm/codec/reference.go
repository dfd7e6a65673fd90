package codec

import (
	"fmt"
	"reflect"
)

// Reference builds the codec for an entity reference of type t, a pointer to an
// entity struct. The wire form is the referenced entity's encoded identity.
//
// identityIndex locates the identity field inside the struct; construct turns a
// decoded identity into a handle of type t without touching the store.
func Reference(t reflect.Type, identity Codec, identityIndex int, construct func(id any) (any, error)) Codec {
	return Codec{
		Type:     t,
		Nullable: true,
		encode: func(v reflect.Value) (string, bool) {
			if v.IsNil() {
				return "", false
			}
			s, _ := identity.encode(v.Elem().Field(identityIndex))
			return s, true
		},
		decode: func(s string, present bool) (reflect.Value, error) {
			if !present {
				return reflect.Zero(t), nil
			}
			id, err := identity.Decode(s, true)
			if err != nil {
				return reflect.Value{}, err
			}
			handle, err := construct(id)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("resolve %s reference %q: %w", t.Elem().Name(), s, err)
			}
			return reflect.ValueOf(handle), nil
		},
	}
}

// Coerce converts an identity supplied by a caller into a value of type t.
// Integer identities accept any integer kind; uuid identities accept a string.
func Coerce(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Value{}, fmt.Errorf("%w: nil for %s", ErrTypeMismatch, t)
	}

	rv := reflect.ValueOf(v)
	if rv.Type() == t {
		return rv, nil
	}

	switch {
	case IsInteger(t) && isIntKind(rv.Kind()):
		n := rv.Int()
		out := reflect.New(t).Elem()
		if out.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("%w: %d overflows %s", ErrTypeMismatch, n, t)
		}
		out.SetInt(n)
		return out, nil
	case IsInteger(t) && isUintKind(rv.Kind()):
		u := rv.Uint()
		out := reflect.New(t).Elem()
		if u > 1<<63-1 || out.OverflowInt(int64(u)) {
			return reflect.Value{}, fmt.Errorf("%w: %d overflows %s", ErrTypeMismatch, u, t)
		}
		out.SetInt(int64(u))
		return out, nil
	case t == uuidType && rv.Kind() == reflect.String:
		c, _ := Lookup(uuidType)
		id, err := c.Decode(rv.String(), true)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(id), nil
	}

	return reflect.Value{}, fmt.Errorf("%w: %s for %s", ErrTypeMismatch, rv.Type(), t)
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUintKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
