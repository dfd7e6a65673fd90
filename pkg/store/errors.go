package store

import (
	"errors"

	"github.com/conduit-lang/redisstore/internal/orm/collection"
	"github.com/conduit-lang/redisstore/internal/orm/entity"
	"github.com/conduit-lang/redisstore/internal/orm/index"
	"github.com/conduit-lang/redisstore/internal/orm/query"
	"github.com/conduit-lang/redisstore/internal/orm/schema"
)

// Common store error types
var (
	// ErrNotAnEntityContract is returned when a type is not a named struct
	ErrNotAnEntityContract = schema.ErrNotAnEntityContract

	// ErrNoIdentityField is returned when an entity declares no identity
	ErrNoIdentityField = schema.ErrNoIdentityField

	// ErrUnrepresentableFieldType is returned for each field that cannot be stored
	ErrUnrepresentableFieldType = schema.ErrUnrepresentableFieldType

	// ErrInvalidAnnotation is returned for a store tag that does not apply to its field
	ErrInvalidAnnotation = schema.ErrInvalidAnnotation

	// ErrDuplicateTypeName is returned when two types share an entity name
	ErrDuplicateTypeName = entity.ErrDuplicateTypeName

	// ErrUniqueConstraintViolated is returned when another entity holds a unique value
	ErrUniqueConstraintViolated = index.ErrUniqueConstraintViolated

	// ErrUnsupportedQueryShape is returned for predicates an index cannot answer
	ErrUnsupportedQueryShape = query.ErrUnsupportedQueryShape

	// ErrIdentityRequired is returned when an externally keyed entity is created without a key
	ErrIdentityRequired = entity.ErrIdentityRequired

	// ErrIdentityAssigned is returned when a key is given for a counter-keyed entity
	ErrIdentityAssigned = entity.ErrIdentityAssigned

	// ErrNullElement is returned when nil is pushed or added to a collection
	ErrNullElement = collection.ErrNullElement

	// ErrUnbound is returned by accessors of a struct not obtained from the store
	ErrUnbound = errors.New("field is not bound to a stored entity")
)

// FieldError is a schema validation failure on one field
type FieldError = schema.FieldError

// FieldErrors returns every field error contained in a schema validation error
func FieldErrors(err error) []*FieldError {
	return schema.FieldErrors(err)
}

// IsSchemaError returns true if err rejects an entity type
func IsSchemaError(err error) bool {
	return errors.Is(err, ErrNotAnEntityContract) ||
		errors.Is(err, ErrNoIdentityField) ||
		errors.Is(err, ErrUnrepresentableFieldType) ||
		errors.Is(err, ErrInvalidAnnotation) ||
		errors.Is(err, ErrDuplicateTypeName)
}

// IsUniqueConstraintViolated returns true if the error is ErrUniqueConstraintViolated
func IsUniqueConstraintViolated(err error) bool {
	return errors.Is(err, ErrUniqueConstraintViolated)
}

// IsUnsupportedQueryShape returns true if the error is ErrUnsupportedQueryShape
func IsUnsupportedQueryShape(err error) bool {
	return errors.Is(err, ErrUnsupportedQueryShape)
}

// IsUnbound returns true if the error is ErrUnbound
func IsUnbound(err error) bool {
	return errors.Is(err, ErrUnbound)
}
