package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/multierr"

	"github.com/conduit-lang/redisstore/internal/orm/codec"
)

var (
	// ErrNotAnEntityContract is returned when a type is not a named struct
	ErrNotAnEntityContract = errors.New("not an entity contract")

	// ErrNoIdentityField is returned when a contract declares no identity field
	ErrNoIdentityField = errors.New("no identity field")

	// ErrUnrepresentableFieldType is returned for a field the engine cannot store
	ErrUnrepresentableFieldType = errors.New("unrepresentable field type")

	// ErrInvalidAnnotation is returned for a store tag that does not apply to its field
	ErrInvalidAnnotation = errors.New("invalid field annotation")
)

// FieldError is a validation failure on one field of an entity contract
type FieldError struct {
	Entity  string
	Field   string
	Type    reflect.Type
	Message string
	Hint    string
	Err     error
}

// Error implements the error interface
func (e *FieldError) Error() string {
	var b strings.Builder

	b.WriteString(e.Entity)
	b.WriteString(".")
	b.WriteString(e.Field)
	b.WriteString(" ")
	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString(". ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

// Unwrap returns the sentinel the error classifies under
func (e *FieldError) Unwrap() error {
	return e.Err
}

// FieldErrors splits an aggregate validation error into its field errors
func FieldErrors(err error) []*FieldError {
	var out []*FieldError
	for _, e := range multierr.Errors(err) {
		var fe *FieldError
		if errors.As(e, &fe) {
			out = append(out, fe)
		}
	}
	return out
}

// tag is a parsed `store:"name,opt,..."` struct tag
type tag struct {
	name    string
	id      bool
	unique  bool
	indexed bool
	skip    bool
	unknown []string
}

func parseTag(f reflect.StructField) tag {
	raw, ok := f.Tag.Lookup("store")
	if !ok {
		return tag{}
	}
	if raw == "-" {
		return tag{skip: true}
	}

	parts := strings.Split(raw, ",")
	t := tag{name: parts[0]}
	for _, opt := range parts[1:] {
		switch strings.TrimSpace(opt) {
		case "id":
			t.id = true
		case "unique":
			t.unique = true
		case "index":
			t.indexed = true
		case "":
		default:
			t.unknown = append(t.unknown, opt)
		}
	}
	return t
}

// StructType normalizes t to the struct type of an entity contract
func StructType(t reflect.Type) (reflect.Type, bool) {
	if t == nil {
		return nil, false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t.Name() == "" {
		return nil, false
	}
	return t, true
}

// IdentityField locates the identity field of struct type t: the field tagged
// `store:",id"`, else the field named ID or Id.
func IdentityField(t reflect.Type) (reflect.StructField, bool) {
	var byName *reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if parseTag(f).id {
			return f, true
		}
		if byName == nil && (f.Name == "ID" || f.Name == "Id") {
			byName = &f
		}
	}
	if byName != nil {
		return *byName, true
	}
	return reflect.StructField{}, false
}

// IsEntityReference reports whether t is a pointer to a struct with a usable identity
func IsEntityReference(t reflect.Type) bool {
	if t == nil || t.Kind() != reflect.Pointer {
		return false
	}
	st, ok := StructType(t.Elem())
	if !ok || t.Elem() != st {
		return false
	}
	f, ok := IdentityField(st)
	if !ok {
		return false
	}
	c, err := codec.Lookup(f.Type)
	return err == nil && !c.Nullable
}

// Describe validates an entity contract and builds its descriptor.
//
// Structural failures (not a struct, no identity) are returned immediately.
// Field failures are collected across every field and returned together as a
// multierr aggregate of *FieldError values.
func Describe(t reflect.Type) (*EntityDescriptor, error) {
	st, ok := StructType(t)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotAnEntityContract, t)
	}

	idField, ok := IdentityField(st)
	if !ok {
		return nil, fmt.Errorf("%w: add an ID field to %s", ErrNoIdentityField, st.Name())
	}

	d := &EntityDescriptor{
		TypeName: st.Name(),
		Type:     st,
		byName:   make(map[string]int),
	}

	var errs error

	idCodec, err := codec.Lookup(idField.Type)
	if err != nil || idCodec.Nullable {
		errs = multierr.Append(errs, &FieldError{
			Entity:  d.TypeName,
			Field:   idField.Name,
			Type:    idField.Type,
			Message: fmt.Sprintf("has an invalid identity type %s", idField.Type),
			Hint:    "Identities must be a non-nullable scalar",
			Err:     ErrUnrepresentableFieldType,
		})
	}
	d.Identity = FieldDescriptor{
		Name:        idField.Name,
		GoName:      idField.Name,
		Index:       idField.Index[0],
		Kind:        KindScalar,
		ElementType: idField.Type,
		Codec:       idCodec,
	}
	d.AutoIdentity = err == nil && codec.IsInteger(idField.Type)

	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if !sf.IsExported() || i == d.Identity.Index {
			continue
		}

		tg := parseTag(sf)
		if tg.skip {
			continue
		}

		fd, err := describeField(d.TypeName, sf, tg)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		if _, dup := d.byName[fd.Name]; dup || fd.Name == d.Identity.Name {
			errs = multierr.Append(errs, &FieldError{
				Entity:  d.TypeName,
				Field:   sf.Name,
				Type:    sf.Type,
				Message: fmt.Sprintf("reuses the stored name %q", fd.Name),
				Err:     ErrInvalidAnnotation,
			})
			continue
		}

		d.byName[fd.Name] = len(d.Fields)
		d.Fields = append(d.Fields, fd)
	}

	if errs != nil {
		return nil, errs
	}
	return d, nil
}

func describeField(entity string, sf reflect.StructField, tg tag) (FieldDescriptor, error) {
	fail := func(sentinel error, msg, hint string) (FieldDescriptor, error) {
		return FieldDescriptor{}, &FieldError{
			Entity:  entity,
			Field:   sf.Name,
			Type:    sf.Type,
			Message: msg,
			Hint:    hint,
			Err:     sentinel,
		}
	}

	if len(tg.unknown) > 0 {
		return fail(ErrInvalidAnnotation, fmt.Sprintf("has unknown store options %v", tg.unknown), "")
	}
	if tg.id {
		return fail(ErrInvalidAnnotation, "is a second identity field", "")
	}

	if sf.Anonymous || !sf.Type.Implements(shapedType) {
		return fail(ErrUnrepresentableFieldType,
			fmt.Sprintf("has an invalid type %s", sf.Type),
			"Declare fields as store.Value, store.List, store.Set or store.Async of: "+codec.TypeList())
	}

	shape := reflect.Zero(sf.Type).Interface().(Shaped).FieldShape()
	fd := FieldDescriptor{
		Name:        sf.Name,
		GoName:      sf.Name,
		Index:       sf.Index[0],
		ElementType: shape.Elem,
		Unique:      tg.unique,
		Indexed:     tg.indexed || tg.unique,
	}
	if tg.name != "" {
		fd.Name = tg.name
	}

	invalidElem := func() (FieldDescriptor, error) {
		return fail(ErrUnrepresentableFieldType,
			fmt.Sprintf("has an invalid %s element type %s", shape.Container, shape.Elem),
			"Valid types are: "+codec.TypeList())
	}

	switch shape.Container {
	case ContainerValue, ContainerAsync:
		if IsEntityReference(shape.Elem) {
			if shape.Container == ContainerAsync {
				return invalidElem()
			}
			fd.Kind = KindEntityReference
			fd.Entity = true
			break
		}
		c, err := codec.Lookup(shape.Elem)
		if err != nil {
			return invalidElem()
		}
		fd.Codec = c
		switch {
		case shape.Container == ContainerAsync:
			fd.Kind = KindAsyncScalar
		case c.Nullable:
			fd.Kind = KindNullableScalar
		default:
			fd.Kind = KindScalar
		}

	case ContainerList, ContainerSet:
		fd.Kind = KindOrderedCollection
		if shape.Container == ContainerSet {
			fd.Kind = KindUnorderedCollection
		}
		if tg.unique || tg.indexed {
			return fail(ErrInvalidAnnotation, "cannot be unique or indexed", "Only value fields carry constraints")
		}
		if IsEntityReference(shape.Elem) {
			fd.Entity = true
			break
		}
		c, err := codec.Lookup(shape.Elem)
		if err != nil || c.Nullable {
			return invalidElem()
		}
		fd.Codec = c

	default:
		return invalidElem()
	}

	return fd, nil
}
