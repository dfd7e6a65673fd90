// Package query provides the closed predicate values accepted by index queries.
//
// Predicates are built explicitly through Where and And. Any operator or field
// combination can be expressed, but only a single equality condition can be
// answered by a lookup index; Validate rejects every other shape.
package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedQueryShape is returned for predicates other than one field equality
var ErrUnsupportedQueryShape = errors.New("unsupported query shape")

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpIn
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpIn:
		return "IN"
	default:
		return "UNKNOWN"
	}
}

// Condition compares one field against a literal or captured value
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// String returns the condition as "Field op value"
func (c Condition) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
}

// Predicate is a conjunction of conditions
type Predicate struct {
	Conditions []Condition
}

// String returns the predicate with conditions joined by AND
func (p Predicate) String() string {
	parts := make([]string, len(p.Conditions))
	for i, c := range p.Conditions {
		parts[i] = c.String()
	}
	return strings.Join(parts, " AND ")
}

// Validate returns ErrUnsupportedQueryShape unless the predicate is exactly one
// equality condition on a named field
func (p Predicate) Validate() error {
	switch len(p.Conditions) {
	case 0:
		return fmt.Errorf("%w: empty predicate", ErrUnsupportedQueryShape)
	case 1:
	default:
		return fmt.Errorf("%w: %d conditions in %q, only one field can be matched",
			ErrUnsupportedQueryShape, len(p.Conditions), p)
	}

	c := p.Conditions[0]
	if c.Field == "" {
		return fmt.Errorf("%w: condition has no field", ErrUnsupportedQueryShape)
	}
	if c.Operator != OpEqual {
		return fmt.Errorf("%w: operator %s in %q, only equality is supported",
			ErrUnsupportedQueryShape, c.Operator, c)
	}
	return nil
}

// Equality returns the field and value of a valid single equality predicate
func (p Predicate) Equality() (string, any, error) {
	if err := p.Validate(); err != nil {
		return "", nil, err
	}
	c := p.Conditions[0]
	return c.Field, c.Value, nil
}

// ConditionBuilder starts a condition on one field
type ConditionBuilder struct {
	field string
}

// Where starts a predicate on field, the stored property name
func Where(field string) *ConditionBuilder {
	return &ConditionBuilder{field: field}
}

func (b *ConditionBuilder) build(op Operator, v any) Predicate {
	return Predicate{Conditions: []Condition{{Field: b.field, Operator: op, Value: v}}}
}

// Eq matches field == v
func (b *ConditionBuilder) Eq(v any) Predicate { return b.build(OpEqual, v) }

// NotEq matches field != v
func (b *ConditionBuilder) NotEq(v any) Predicate { return b.build(OpNotEqual, v) }

// Gt matches field > v
func (b *ConditionBuilder) Gt(v any) Predicate { return b.build(OpGreaterThan, v) }

// Gte matches field >= v
func (b *ConditionBuilder) Gte(v any) Predicate { return b.build(OpGreaterThanOrEqual, v) }

// Lt matches field < v
func (b *ConditionBuilder) Lt(v any) Predicate { return b.build(OpLessThan, v) }

// Lte matches field <= v
func (b *ConditionBuilder) Lte(v any) Predicate { return b.build(OpLessThanOrEqual, v) }

// In matches field against any of vs
func (b *ConditionBuilder) In(vs ...any) Predicate { return b.build(OpIn, vs) }

// And combines predicates into one conjunction
func And(ps ...Predicate) Predicate {
	var out Predicate
	for _, p := range ps {
		out.Conditions = append(out.Conditions, p.Conditions...)
	}
	return out
}
