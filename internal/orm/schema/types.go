// Package schema reflects entity contracts into validated, immutable descriptors.
// A descriptor names the identity field, classifies every other field by storage
// kind, and derives the store key templates used by the rest of the engine.
package schema

import (
	"fmt"
	"reflect"

	"github.com/conduit-lang/redisstore/internal/orm/codec"
)

// Kind is the storage strategy of a field
type Kind int

const (
	KindScalar Kind = iota
	KindNullableScalar
	KindEntityReference
	KindOrderedCollection
	KindUnorderedCollection
	KindAsyncScalar
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindNullableScalar:
		return "nullable"
	case KindEntityReference:
		return "reference"
	case KindOrderedCollection:
		return "list"
	case KindUnorderedCollection:
		return "set"
	case KindAsyncScalar:
		return "async"
	default:
		return "unknown"
	}
}

// IsCollection returns true for list and set fields
func (k Kind) IsCollection() bool {
	return k == KindOrderedCollection || k == KindUnorderedCollection
}

// Container identifies which accessor type wraps a field
type Container int

const (
	ContainerValue Container = iota
	ContainerList
	ContainerSet
	ContainerAsync
)

// String returns the string representation of the container
func (c Container) String() string {
	switch c {
	case ContainerValue:
		return "value"
	case ContainerList:
		return "list"
	case ContainerSet:
		return "set"
	case ContainerAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Shape is what an accessor type reports about itself before it is bound
type Shape struct {
	Container Container
	Elem      reflect.Type
}

// Shaped is implemented by the accessor types entity fields are declared with.
// FieldShape must work on the zero value.
type Shaped interface {
	FieldShape() Shape
}

var shapedType = reflect.TypeOf((*Shaped)(nil)).Elem()

// CreatedField is the hash field recording when an integer-keyed entity was created
const CreatedField = "Created"

// FieldDescriptor describes one non-identity field of an entity
type FieldDescriptor struct {
	Name        string       // Stored property name
	GoName      string       // Struct field name
	Index       int          // Struct field index
	Kind        Kind         // Storage strategy
	ElementType reflect.Type // Value or element type
	Entity      bool         // ElementType is a pointer to another entity contract
	Unique      bool         // Writes go through the uniqueness script
	Indexed     bool         // Writes maintain the lookup index

	// Codec encodes ElementType; unset when Entity is true
	Codec codec.Codec
}

// String returns a short description such as "Tweets set<*Tweet>"
func (f *FieldDescriptor) String() string {
	return fmt.Sprintf("%s %s<%s>", f.Name, f.Kind, f.ElementType)
}

// EntityDescriptor is the validated schema of an entity contract
type EntityDescriptor struct {
	TypeName     string
	Type         reflect.Type // Struct type
	Identity     FieldDescriptor
	AutoIdentity bool // Identity assigned from the type counter
	Fields       []FieldDescriptor

	byName map[string]int
}

// Field returns the field with the given stored name
func (d *EntityDescriptor) Field(name string) (*FieldDescriptor, bool) {
	i, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return &d.Fields[i], true
}

// HashKey returns the key of the entity's hash record
func (d *EntityDescriptor) HashKey(id string) string {
	return "/" + d.TypeName + "/" + id
}

// CollectionKey returns the key of a list or set field
func (d *EntityDescriptor) CollectionKey(id, field string) string {
	return "/" + d.TypeName + "/" + id + "/" + field
}

// UniqueIndexKey returns the set holding every claimed value of a unique field
func (d *EntityDescriptor) UniqueIndexKey(field string) string {
	return "/" + d.TypeName + "/" + field + "_UIx"
}

// LookupIndexKey returns the value to identity hash of an indexed field
func (d *EntityDescriptor) LookupIndexKey(field string) string {
	return "/" + d.TypeName + "/" + field + "_Ix"
}

// RecordsCreated reports whether Create writes the creation marker
func (d *EntityDescriptor) RecordsCreated() bool {
	if !d.AutoIdentity {
		return false
	}
	_, declared := d.byName[CreatedField]
	return !declared
}
