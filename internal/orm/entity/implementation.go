package entity

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"reflect"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/conduit-lang/redisstore/internal/orm/async"
	"github.com/conduit-lang/redisstore/internal/orm/codec"
	"github.com/conduit-lang/redisstore/internal/orm/collection"
	"github.com/conduit-lang/redisstore/internal/orm/index"
	"github.com/conduit-lang/redisstore/internal/orm/query"
	"github.com/conduit-lang/redisstore/internal/orm/schema"
)

// Binder is implemented by the pointer of every accessor type. Constructing a
// handle binds each accessor field to its slot in the dispatch table.
type Binder interface {
	BindField(b *Binding)
}

var binderType = reflect.TypeOf((*Binder)(nil)).Elem()

// fieldDispatch is one row of the dispatch table
type fieldDispatch struct {
	desc       *schema.FieldDescriptor
	constraint index.Constraint
	elem       codec.Codec

	// read and write are the synchronous hash paths; nil for collections
	read  func(ctx context.Context, id string) (any, error)
	write func(ctx context.Context, id string, v any) error

	// get and set implement access by field name
	get func(ctx context.Context, id string) (any, error)
	set func(ctx context.Context, id string, v any) error
}

// Implementation is the synthesized implementation of one entity contract
type Implementation struct {
	reg      *Registry
	desc     *schema.EntityDescriptor
	handle   reflect.Type // *E
	identity codec.Codec
	fields   []fieldDispatch
	byName   map[string]int
}

func (r *Registry) build(st reflect.Type) (*Implementation, error) {
	desc, err := schema.Describe(st)
	if err != nil {
		return nil, err
	}

	impl := &Implementation{
		reg:      r,
		desc:     desc,
		handle:   reflect.PointerTo(st),
		identity: desc.Identity.Codec,
		fields:   make([]fieldDispatch, 0, len(desc.Fields)),
		byName:   make(map[string]int, len(desc.Fields)),
	}

	for i := range desc.Fields {
		fd := &desc.Fields[i]

		if !reflect.PointerTo(st.Field(fd.Index).Type).Implements(binderType) {
			return nil, &schema.FieldError{
				Entity:  desc.TypeName,
				Field:   fd.GoName,
				Type:    st.Field(fd.Index).Type,
				Message: "is not a bindable accessor",
				Err:     schema.ErrUnrepresentableFieldType,
			}
		}

		d, err := impl.dispatchFor(fd)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", desc.TypeName, fd.GoName, err)
		}
		impl.byName[fd.Name] = len(impl.fields)
		impl.fields = append(impl.fields, d)
	}

	return impl, nil
}

func (impl *Implementation) dispatchFor(fd *schema.FieldDescriptor) (fieldDispatch, error) {
	d := fieldDispatch{
		desc:       fd,
		elem:       fd.Codec,
		constraint: index.Constraint{Field: fd.Name},
	}
	if fd.Unique {
		d.constraint.UniqueKey = impl.desc.UniqueIndexKey(fd.Name)
	}
	if fd.Indexed {
		d.constraint.LookupKey = impl.desc.LookupIndexKey(fd.Name)
	}

	if fd.Entity {
		c, err := impl.reg.referenceCodec(fd.ElementType)
		if err != nil {
			return d, err
		}
		d.elem = c
	}

	client := impl.reg.client
	elem := d.elem
	noop := func(context.Context, string, any) error { return nil }

	switch fd.Kind {
	case schema.KindOrderedCollection:
		d.get = func(_ context.Context, id string) (any, error) {
			return collection.NewList(client, impl.desc.CollectionKey(id, fd.Name), elem), nil
		}
		d.set = noop

	case schema.KindUnorderedCollection:
		d.get = func(_ context.Context, id string) (any, error) {
			return collection.NewSet(client, impl.desc.CollectionKey(id, fd.Name), elem), nil
		}
		d.set = noop

	case schema.KindAsyncScalar:
		d.read = impl.reader(fd, elem)
		d.write = impl.writer(fd, elem, d.constraint)
		read := d.read
		d.get = func(ctx context.Context, id string) (any, error) {
			return async.PendingRead(async.Go(ctx, func(ctx context.Context) (any, error) {
				return read(ctx, id)
			})), nil
		}
		d.set = d.write

	default:
		d.read = impl.reader(fd, elem)
		d.write = impl.writer(fd, elem, d.constraint)
		d.get = d.read
		d.set = d.write
	}

	return d, nil
}

func (impl *Implementation) reader(fd *schema.FieldDescriptor, c codec.Codec) func(context.Context, string) (any, error) {
	return func(ctx context.Context, id string) (any, error) {
		key := impl.desc.HashKey(id)
		present := true
		s, err := impl.reg.client.HGet(ctx, key, fd.Name).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				return nil, fmt.Errorf("read %s of %s: %w", fd.Name, key, err)
			}
			present = false
		}
		return c.Decode(s, present)
	}
}

func (impl *Implementation) writer(fd *schema.FieldDescriptor, c codec.Codec, constraint index.Constraint) func(context.Context, string, any) error {
	return func(ctx context.Context, id string, v any) error {
		s, present, err := c.Encode(v)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", impl.desc.TypeName, fd.GoName, err)
		}
		return impl.reg.index.Write(ctx, constraint, impl.desc.HashKey(id), id, s, present)
	}
}

// Descriptor returns the validated schema of the contract
func (impl *Implementation) Descriptor() *schema.EntityDescriptor {
	return impl.desc
}

// HandleType returns the pointer type of entity handles
func (impl *Implementation) HandleType() reflect.Type {
	return impl.handle
}

// construct builds a handle around an identity value of the identity type
func (impl *Implementation) construct(idv reflect.Value) any {
	h := reflect.New(impl.desc.Type)
	h.Elem().Field(impl.desc.Identity.Index).Set(idv)

	id, _, _ := impl.identity.Encode(idv.Interface())
	for i := range impl.fields {
		d := &impl.fields[i]
		b := &Binding{impl: impl, dispatch: d, id: id}
		h.Elem().Field(d.desc.Index).Addr().Interface().(Binder).BindField(b)
	}
	return h.Interface()
}

// Get returns the handle for id without contacting the store. id may be any
// integer kind for integer identities, or a string for uuid identities.
func (impl *Implementation) Get(id any) (any, error) {
	idv, err := codec.Coerce(id, impl.desc.Identity.ElementType)
	if err != nil {
		return nil, fmt.Errorf("%s identity: %w", impl.desc.TypeName, err)
	}
	return impl.construct(idv), nil
}

// Parse returns the handle for the stored form of an identity
func (impl *Implementation) Parse(s string) (any, error) {
	id, err := impl.identity.Decode(s, true)
	if err != nil {
		return nil, fmt.Errorf("%s identity %q: %w", impl.desc.TypeName, s, err)
	}
	return impl.construct(reflect.ValueOf(id)), nil
}

// Create returns a handle with a new identity. Counter-keyed types draw the
// next counter value and take no hint. Externally keyed types use hint as the
// identity; without one, uuid identities are generated and any other type
// fails with ErrIdentityRequired.
func (impl *Implementation) Create(ctx context.Context, hint any) (any, error) {
	if !impl.desc.AutoIdentity {
		return impl.createExternal(hint)
	}

	if hint != nil {
		return nil, fmt.Errorf("%w: %s got %v", ErrIdentityAssigned, impl.desc.TypeName, hint)
	}

	n, err := impl.reg.ids.Next(ctx, impl.desc.TypeName)
	if err != nil {
		return nil, err
	}

	idv := reflect.New(impl.desc.Identity.ElementType).Elem()
	if idv.OverflowInt(n) {
		return nil, fmt.Errorf("%s identity %d overflows %s", impl.desc.TypeName, n, idv.Type())
	}
	idv.SetInt(n)
	handle := impl.construct(idv)

	if impl.reg.opts.RecordCreated && impl.desc.RecordsCreated() {
		key := impl.desc.HashKey(fmt.Sprint(n))
		now := impl.reg.opts.Now().Unix()
		if err := impl.reg.client.HSet(ctx, key, schema.CreatedField, now).Err(); err != nil {
			return nil, fmt.Errorf("record creation of %s: %w", key, err)
		}
	}

	return handle, nil
}

func (impl *Implementation) createExternal(hint any) (any, error) {
	if hint == nil {
		if impl.desc.Identity.ElementType != reflect.TypeOf(uuid.UUID{}) {
			return nil, fmt.Errorf("%w: %s is keyed by %s", ErrIdentityRequired, impl.desc.TypeName, impl.desc.Identity.ElementType)
		}
		hint = uuid.New()
	}
	return impl.Get(hint)
}

// CreateAsync runs Create without blocking the caller
func (impl *Implementation) CreateAsync(ctx context.Context, hint any) *async.Future[any] {
	return async.Go(ctx, func(ctx context.Context) (any, error) {
		return impl.Create(ctx, hint)
	})
}

// Enumerate yields a handle for every identity from 1 to the counter value read
// when iteration starts, in ascending order. Deleted identities are included.
// Externally keyed types yield nothing.
func (impl *Implementation) Enumerate(ctx context.Context) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		if !impl.desc.AutoIdentity {
			return
		}

		bound, err := impl.reg.ids.Bound(ctx, impl.desc.TypeName)
		if err != nil {
			yield(nil, err)
			return
		}

		idType := impl.desc.Identity.ElementType
		for n := int64(1); n <= bound; n++ {
			if !yield(impl.construct(reflect.ValueOf(n).Convert(idType)), nil) {
				return
			}
		}
	}
}

// Lookup answers a single field equality predicate from the field's lookup
// index. The shape and the field are checked before any store call.
func (impl *Implementation) Lookup(ctx context.Context, p query.Predicate) ([]any, error) {
	name, value, err := p.Equality()
	if err != nil {
		return nil, err
	}

	i, ok := impl.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field %s", query.ErrUnsupportedQueryShape, impl.desc.TypeName, name)
	}
	d := &impl.fields[i]
	if !d.constraint.Indexed() {
		return nil, fmt.Errorf("%w: %s.%s is not indexed", query.ErrUnsupportedQueryShape, impl.desc.TypeName, name)
	}

	s, present, err := encodeOperand(d.elem, value)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", impl.desc.TypeName, name, err)
	}
	if !present {
		return nil, nil
	}

	id, found, err := impl.reg.index.Lookup(ctx, d.constraint.LookupKey, s)
	if err != nil || !found {
		return nil, err
	}

	idv, err := impl.identity.Decode(id, true)
	if err != nil {
		return nil, err
	}
	return []any{impl.construct(reflect.ValueOf(idv))}, nil
}

// encodeOperand encodes a query value, accepting a plain value for a nullable field
func encodeOperand(c codec.Codec, v any) (string, bool, error) {
	if v != nil && c.Nullable && c.Type.Kind() == reflect.Pointer && reflect.TypeOf(v) == c.Type.Elem() {
		p := reflect.New(c.Type.Elem())
		p.Elem().Set(reflect.ValueOf(v))
		v = p.Interface()
	}
	return c.Encode(v)
}

// Exists reports whether the hash record of id is present
func (impl *Implementation) Exists(ctx context.Context, id any) (bool, error) {
	idv, err := codec.Coerce(id, impl.desc.Identity.ElementType)
	if err != nil {
		return false, fmt.Errorf("%s identity: %w", impl.desc.TypeName, err)
	}
	s, _, _ := impl.identity.Encode(idv.Interface())

	n, err := impl.reg.client.Exists(ctx, impl.desc.HashKey(s)).Result()
	if err != nil {
		return false, fmt.Errorf("check %s: %w", impl.desc.HashKey(s), err)
	}
	return n == 1, nil
}

// Delete releases the entity's unique values and index entries and removes its
// hash record and collections in one transaction. The identity is not returned
// to the counter.
func (impl *Implementation) Delete(ctx context.Context, entity any) error {
	id, err := impl.IdentityString(entity)
	if err != nil {
		return err
	}
	hashKey := impl.desc.HashKey(id)

	_, err = impl.reg.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i := range impl.fields {
			d := &impl.fields[i]
			switch {
			case d.desc.Kind.IsCollection():
				pipe.Del(ctx, impl.desc.CollectionKey(id, d.desc.Name))
			case d.constraint.Unique() || d.constraint.Indexed():
				impl.reg.index.Drop(ctx, pipe, d.constraint, hashKey, id)
			}
		}
		pipe.Del(ctx, hashKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", hashKey, err)
	}
	return nil
}

// Identity returns the identity value of a handle
func (impl *Implementation) Identity(entity any) (any, error) {
	rv, err := impl.handleValue(entity)
	if err != nil {
		return nil, err
	}
	return rv.Elem().Field(impl.desc.Identity.Index).Interface(), nil
}

// IdentityString returns the encoded identity of a handle as used in store keys
func (impl *Implementation) IdentityString(entity any) (string, error) {
	id, err := impl.Identity(entity)
	if err != nil {
		return "", err
	}
	s, _, err := impl.identity.Encode(id)
	return s, err
}

func (impl *Implementation) handleValue(entity any) (reflect.Value, error) {
	rv := reflect.ValueOf(entity)
	if !rv.IsValid() || rv.Type() != impl.handle || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("%w: %T is not a %s", ErrNotAHandle, entity, impl.handle)
	}
	return rv, nil
}

// GetField reads a field by stored name. Collections return their view,
// *collection.List or *collection.Set, and async fields an async.Handle[any].
func (impl *Implementation) GetField(ctx context.Context, entity any, name string) (any, error) {
	d, id, err := impl.field(entity, name)
	if err != nil {
		return nil, err
	}
	return d.get(ctx, id)
}

// SetField writes a field by stored name and waits for the write. Setting a
// collection field does nothing.
func (impl *Implementation) SetField(ctx context.Context, entity any, name string, v any) error {
	d, id, err := impl.field(entity, name)
	if err != nil {
		return err
	}
	return d.set(ctx, id, v)
}

func (impl *Implementation) field(entity any, name string) (*fieldDispatch, string, error) {
	id, err := impl.IdentityString(entity)
	if err != nil {
		return nil, "", err
	}
	i, ok := impl.byName[name]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s.%s", ErrUnknownField, impl.desc.TypeName, name)
	}
	return &impl.fields[i], id, nil
}
