package store

import (
	"context"
	"iter"
	"reflect"

	"github.com/conduit-lang/redisstore/internal/orm/async"
	"github.com/conduit-lang/redisstore/internal/orm/collection"
	"github.com/conduit-lang/redisstore/internal/orm/entity"
	"github.com/conduit-lang/redisstore/internal/orm/schema"
)

func elemOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func as[T any](v any, err error) (T, error) {
	t, _ := v.(T)
	return t, err
}

func typed[T any](seq iter.Seq2[any, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for v, err := range seq {
			t, _ := v.(T)
			if !yield(t, err) {
				return
			}
		}
	}
}

func unboundSeq[T any]() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, ErrUnbound)
	}
}

// Value is a scalar, nullable scalar or entity reference field. T may be a
// scalar, a pointer to a scalar, []byte, or a pointer to another entity.
type Value[T any] struct {
	b *entity.Binding
}

// FieldShape implements schema.Shaped
func (Value[T]) FieldShape() schema.Shape {
	return schema.Shape{Container: schema.ContainerValue, Elem: elemOf[T]()}
}

// BindField implements entity.Binder
func (v *Value[T]) BindField(b *entity.Binding) {
	v.b = b
}

// Get reads the field; an absent field reads as the zero value of T
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	if v.b == nil {
		var zero T
		return zero, ErrUnbound
	}
	return as[T](v.b.Read(ctx))
}

// Set writes the field. A nil T removes it. Unique fields fail with
// ErrUniqueConstraintViolated when another entity holds x.
func (v *Value[T]) Set(ctx context.Context, x T) error {
	if v.b == nil {
		return ErrUnbound
	}
	return v.b.Write(ctx, x)
}

// List is an ordered collection field
type List[T any] struct {
	b *entity.Binding
}

// FieldShape implements schema.Shaped
func (List[T]) FieldShape() schema.Shape {
	return schema.Shape{Container: schema.ContainerList, Elem: elemOf[T]()}
}

// BindField implements entity.Binder
func (l *List[T]) BindField(b *entity.Binding) {
	l.b = b
}

func (l *List[T]) view() (*collection.List, error) {
	if l.b == nil {
		return nil, ErrUnbound
	}
	return l.b.List(), nil
}

// PushHead inserts x at the head
func (l *List[T]) PushHead(ctx context.Context, x T) error {
	v, err := l.view()
	if err != nil {
		return err
	}
	return v.PushHead(ctx, x)
}

// PushTail appends x at the tail
func (l *List[T]) PushTail(ctx context.Context, x T) error {
	v, err := l.view()
	if err != nil {
		return err
	}
	return v.PushTail(ctx, x)
}

// PopHead removes and returns the head; ok is false when the list is empty
func (l *List[T]) PopHead(ctx context.Context) (x T, ok bool, err error) {
	v, err := l.view()
	if err != nil {
		return x, false, err
	}
	el, ok, err := v.PopHead(ctx)
	x, _ = el.(T)
	return x, ok, err
}

// PopTail removes and returns the tail; ok is false when the list is empty
func (l *List[T]) PopTail(ctx context.Context) (x T, ok bool, err error) {
	v, err := l.view()
	if err != nil {
		return x, false, err
	}
	el, ok, err := v.PopTail(ctx)
	x, _ = el.(T)
	return x, ok, err
}

// Count returns the length of the list
func (l *List[T]) Count(ctx context.Context) (int64, error) {
	v, err := l.view()
	if err != nil {
		return 0, err
	}
	return v.Count(ctx)
}

// All yields the list head to tail from a snapshot taken when iteration starts
func (l *List[T]) All(ctx context.Context) iter.Seq2[T, error] {
	v, err := l.view()
	if err != nil {
		return unboundSeq[T]()
	}
	return typed[T](v.All(ctx))
}

// Set is an unordered collection field
type Set[T any] struct {
	b *entity.Binding
}

// FieldShape implements schema.Shaped
func (Set[T]) FieldShape() schema.Shape {
	return schema.Shape{Container: schema.ContainerSet, Elem: elemOf[T]()}
}

// BindField implements entity.Binder
func (s *Set[T]) BindField(b *entity.Binding) {
	s.b = b
}

func (s *Set[T]) view() (*collection.Set, error) {
	if s.b == nil {
		return nil, ErrUnbound
	}
	return s.b.Set(), nil
}

// Add inserts x and returns false if it was already a member
func (s *Set[T]) Add(ctx context.Context, x T) (bool, error) {
	v, err := s.view()
	if err != nil {
		return false, err
	}
	return v.Add(ctx, x)
}

// Remove deletes x and returns false if it was not a member
func (s *Set[T]) Remove(ctx context.Context, x T) (bool, error) {
	v, err := s.view()
	if err != nil {
		return false, err
	}
	return v.Remove(ctx, x)
}

// Contains reports whether x is a member
func (s *Set[T]) Contains(ctx context.Context, x T) (bool, error) {
	v, err := s.view()
	if err != nil {
		return false, err
	}
	return v.Contains(ctx, x)
}

// Count returns the number of members
func (s *Set[T]) Count(ctx context.Context) (int64, error) {
	v, err := s.view()
	if err != nil {
		return 0, err
	}
	return v.Count(ctx)
}

// All yields the current members
func (s *Set[T]) All(ctx context.Context) iter.Seq2[T, error] {
	v, err := s.view()
	if err != nil {
		return unboundSeq[T]()
	}
	return typed[T](v.All(ctx))
}

// Union yields members of s or any of others
func (s *Set[T]) Union(ctx context.Context, others ...*Set[T]) iter.Seq2[T, error] {
	return s.combine(others, func(v *collection.Set, os []*collection.Set) iter.Seq2[any, error] {
		return v.Union(ctx, os...)
	})
}

// Intersect yields members common to s and all of others
func (s *Set[T]) Intersect(ctx context.Context, others ...*Set[T]) iter.Seq2[T, error] {
	return s.combine(others, func(v *collection.Set, os []*collection.Set) iter.Seq2[any, error] {
		return v.Intersect(ctx, os...)
	})
}

// Diff yields members of s found in none of others
func (s *Set[T]) Diff(ctx context.Context, others ...*Set[T]) iter.Seq2[T, error] {
	return s.combine(others, func(v *collection.Set, os []*collection.Set) iter.Seq2[any, error] {
		return v.Diff(ctx, os...)
	})
}

func (s *Set[T]) combine(others []*Set[T], op func(*collection.Set, []*collection.Set) iter.Seq2[any, error]) iter.Seq2[T, error] {
	v, err := s.view()
	if err != nil {
		return unboundSeq[T]()
	}

	views := make([]*collection.Set, len(others))
	for i, o := range others {
		if views[i], err = o.view(); err != nil {
			return unboundSeq[T]()
		}
	}
	return typed[T](op(v, views))
}

// State tags the variant held by an async field handle
type State = async.State

const (
	StateReady        = async.StateReady
	StatePendingRead  = async.StatePendingRead
	StatePendingWrite = async.StatePendingWrite
)

// Pending is the handle of an async field operation. Wait yields the value;
// Await only waits for completion.
type Pending[T any] struct {
	async.Handle[T]
}

// Async is a scalar field accessed without blocking. T may be a scalar or a
// pointer to one.
type Async[T any] struct {
	b *entity.Binding
}

// FieldShape implements schema.Shaped
func (Async[T]) FieldShape() schema.Shape {
	return schema.Shape{Container: schema.ContainerAsync, Elem: elemOf[T]()}
}

// BindField implements entity.Binder
func (a *Async[T]) BindField(b *entity.Binding) {
	a.b = b
}

// Get starts a read and returns a handle resolving to the value
func (a *Async[T]) Get(ctx context.Context) Pending[T] {
	if a.b == nil {
		var zero T
		return Pending[T]{async.PendingRead(async.Resolved(zero, ErrUnbound))}
	}
	b := a.b
	return Pending[T]{async.PendingRead(async.Go(ctx, func(ctx context.Context) (T, error) {
		return as[T](b.Read(ctx))
	}))}
}

// Set starts a write of x and returns a handle that completes with it
func (a *Async[T]) Set(ctx context.Context, x T) Pending[T] {
	if a.b == nil {
		return Pending[T]{async.PendingWrite(x, async.Resolved(struct{}{}, ErrUnbound))}
	}
	return Pending[T]{async.PendingWrite(x, a.b.WriteAsync(ctx, x))}
}
