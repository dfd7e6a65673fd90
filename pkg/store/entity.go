package store

import (
	"context"
	"fmt"
	"iter"
	"reflect"

	"github.com/conduit-lang/redisstore/internal/orm/async"
	"github.com/conduit-lang/redisstore/internal/orm/entity"
	"github.com/conduit-lang/redisstore/internal/orm/query"
	"github.com/conduit-lang/redisstore/internal/orm/schema"
)

// Predicate is a condition on entity fields, built with Where and And
type Predicate = query.Predicate

// Descriptor is the validated schema of an entity type
type Descriptor = schema.EntityDescriptor

// Where starts a predicate on the stored field name
func Where(field string) *query.ConditionBuilder {
	return query.Where(field)
}

// And combines predicates
func And(ps ...Predicate) Predicate {
	return query.And(ps...)
}

func implementation[E any](s *Store) (*entity.Implementation, error) {
	return s.reg.Implementation(reflect.TypeOf((*E)(nil)).Elem())
}

// Register synthesizes E so schema errors surface before first use
func Register[E any](s *Store) error {
	_, err := implementation[E](s)
	return err
}

// Describe returns the schema of E
func Describe[E any](s *Store) (*Descriptor, error) {
	impl, err := implementation[E](s)
	if err != nil {
		return nil, err
	}
	return impl.Descriptor(), nil
}

func singleHint(hint []any) (any, error) {
	switch len(hint) {
	case 0:
		return nil, nil
	case 1:
		return hint[0], nil
	default:
		return nil, fmt.Errorf("at most one identity, got %d", len(hint))
	}
}

// Create returns a new E. Counter-keyed types take no hint; externally keyed
// types take their identity as the hint.
func Create[E any](ctx context.Context, s *Store, hint ...any) (*E, error) {
	impl, err := implementation[E](s)
	if err != nil {
		return nil, err
	}
	h, err := singleHint(hint)
	if err != nil {
		return nil, err
	}

	e, err := impl.Create(ctx, h)
	if err != nil {
		return nil, err
	}
	return e.(*E), nil
}

// CreateAsync starts Create and returns without waiting
func CreateAsync[E any](ctx context.Context, s *Store, hint ...any) *async.Future[*E] {
	return async.Go(ctx, func(ctx context.Context) (*E, error) {
		return Create[E](ctx, s, hint...)
	})
}

// Get returns the handle of E with identity id without contacting the store.
// Fields of an identity that was never created read as zero values.
func Get[E any](s *Store, id any) (*E, error) {
	impl, err := implementation[E](s)
	if err != nil {
		return nil, err
	}
	e, err := impl.Get(id)
	if err != nil {
		return nil, err
	}
	return e.(*E), nil
}

// Enumerate yields every E from identity 1 up to the counter, in order. Each
// iteration reads the counter afresh. Externally keyed types yield nothing.
func Enumerate[E any](ctx context.Context, s *Store) iter.Seq2[*E, error] {
	return func(yield func(*E, error) bool) {
		impl, err := implementation[E](s)
		if err != nil {
			yield(nil, err)
			return
		}
		for e, err := range impl.Enumerate(ctx) {
			h, _ := e.(*E)
			if !yield(h, err) || err != nil {
				return
			}
		}
	}
}

// IndexQuery returns the entities matching a single equality on a field tagged
// index or unique, at most one per value. Other predicate shapes fail with
// ErrUnsupportedQueryShape before any store call.
func IndexQuery[E any](ctx context.Context, s *Store, p Predicate) ([]*E, error) {
	impl, err := implementation[E](s)
	if err != nil {
		return nil, err
	}

	found, err := impl.Lookup(ctx, p)
	if err != nil {
		return nil, err
	}

	out := make([]*E, len(found))
	for i, e := range found {
		out[i] = e.(*E)
	}
	return out, nil
}

// Delete removes e's record, collections, unique claims and index entries
func Delete[E any](ctx context.Context, s *Store, e *E) error {
	impl, err := implementation[E](s)
	if err != nil {
		return err
	}
	return impl.Delete(ctx, e)
}

// Exists reports whether E with identity id has a stored record
func Exists[E any](ctx context.Context, s *Store, id any) (bool, error) {
	impl, err := implementation[E](s)
	if err != nil {
		return false, err
	}
	return impl.Exists(ctx, id)
}
