package entity

import (
	"context"

	"github.com/conduit-lang/redisstore/internal/orm/async"
	"github.com/conduit-lang/redisstore/internal/orm/collection"
	"github.com/conduit-lang/redisstore/internal/orm/schema"
)

// Binding ties one accessor field of one handle to its dispatch table row.
// It holds no field state.
type Binding struct {
	impl     *Implementation
	dispatch *fieldDispatch
	id       string
}

// Field returns the descriptor of the bound field
func (b *Binding) Field() *schema.FieldDescriptor {
	return b.dispatch.desc
}

// Key returns the store key the field lives under: the entity hash for value
// fields, the field's own key for collections
func (b *Binding) Key() string {
	if b.dispatch.desc.Kind.IsCollection() {
		return b.impl.desc.CollectionKey(b.id, b.dispatch.desc.Name)
	}
	return b.impl.desc.HashKey(b.id)
}

// Read fetches and decodes the field value
func (b *Binding) Read(ctx context.Context) (any, error) {
	return b.dispatch.read(ctx, b.id)
}

// Write encodes and stores v, or removes the field if v is null
func (b *Binding) Write(ctx context.Context, v any) error {
	return b.dispatch.write(ctx, b.id, v)
}

// ReadAsync starts a read and returns without waiting for it
func (b *Binding) ReadAsync(ctx context.Context) *async.Future[any] {
	return async.Go(ctx, b.Read)
}

// WriteAsync starts a write and returns without waiting for it
func (b *Binding) WriteAsync(ctx context.Context, v any) *async.Future[struct{}] {
	return async.Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.Write(ctx, v)
	})
}

// List returns the view of an ordered collection field
func (b *Binding) List() *collection.List {
	return collection.NewList(b.impl.reg.client, b.Key(), b.dispatch.elem)
}

// Set returns the view of an unordered collection field
func (b *Binding) Set() *collection.Set {
	return collection.NewSet(b.impl.reg.client, b.Key(), b.dispatch.elem)
}
