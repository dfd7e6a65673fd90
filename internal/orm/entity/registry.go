// Package entity synthesizes store-backed implementations of entity contracts.
//
// A Registry turns each contract type into an Implementation once, on first
// use, and reuses it for the lifetime of the registry. An Implementation holds
// a dispatch table of per-field closures built from the contract's descriptor;
// entity handles it constructs carry only their identity, and every field
// access goes through the table to the store.
package entity

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/conduit-lang/redisstore/internal/orm/codec"
	"github.com/conduit-lang/redisstore/internal/orm/identity"
	"github.com/conduit-lang/redisstore/internal/orm/index"
	"github.com/conduit-lang/redisstore/internal/orm/schema"
)

var (
	// ErrDuplicateTypeName is returned when two distinct types share an entity name
	ErrDuplicateTypeName = errors.New("entity type name already registered")

	// ErrIdentityRequired is returned when an externally keyed entity is created without a key
	ErrIdentityRequired = errors.New("identity required")

	// ErrIdentityAssigned is returned when a key is supplied for a counter-keyed entity
	ErrIdentityAssigned = errors.New("identity is assigned by the store")

	// ErrUnknownField is returned when a field name is not part of the contract
	ErrUnknownField = errors.New("unknown field")

	// ErrNotAHandle is returned when a value is not a handle of the expected entity type
	ErrNotAHandle = errors.New("not an entity handle")
)

// Options configures behaviour shared by every implementation in a registry
type Options struct {
	// RecordCreated writes the creation marker on counter-keyed entities
	RecordCreated bool
	// Now returns the time recorded by the creation marker
	Now func() time.Time
}

// DefaultOptions returns the default registry options
func DefaultOptions() Options {
	return Options{
		RecordCreated: true,
		Now:           time.Now,
	}
}

// Registry synthesizes and caches entity implementations
type Registry struct {
	client redis.Cmdable
	logger *zap.Logger
	ids    *identity.Manager
	index  *index.Engine
	opts   Options

	mu     sync.RWMutex
	impls  map[reflect.Type]*Implementation
	failed map[reflect.Type]error
	names  map[string]reflect.Type
	group  singleflight.Group
}

// NewRegistry creates a registry issuing commands through client
func NewRegistry(client redis.Cmdable, logger *zap.Logger, opts Options) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Registry{
		client: client,
		logger: logger,
		ids:    identity.NewManager(client),
		index:  index.NewEngine(client, logger),
		opts:   opts,
		impls:  make(map[reflect.Type]*Implementation),
		failed: make(map[reflect.Type]error),
		names:  make(map[string]reflect.Type),
	}
}

// Client returns the store client
func (r *Registry) Client() redis.Cmdable {
	return r.client
}

// Counters returns the identity manager
func (r *Registry) Counters() *identity.Manager {
	return r.ids
}

// Implementation returns the implementation of contract t, a struct type or a
// pointer to one, synthesizing it on first use. Concurrent first calls for the
// same type share a single synthesis. A contract that fails validation fails
// the same way on every later call.
func (r *Registry) Implementation(t reflect.Type) (*Implementation, error) {
	st, ok := schema.StructType(t)
	if !ok {
		return nil, fmt.Errorf("%w: %v", schema.ErrNotAnEntityContract, t)
	}

	for {
		if impl, ok, err := r.cached(st); ok {
			return impl, err
		}

		// synthesize records its outcome, so the next pass always finds st unless
		// a different type with the same qualified name held the call
		r.group.Do(st.PkgPath()+"."+st.Name(), func() (any, error) {
			if _, ok, _ := r.cached(st); !ok {
				r.synthesize(st)
			}
			return nil, nil
		})
	}
}

func (r *Registry) cached(st reflect.Type) (*Implementation, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if impl, ok := r.impls[st]; ok {
		return impl, true, nil
	}
	if err, ok := r.failed[st]; ok {
		return nil, true, err
	}
	return nil, false, nil
}

func (r *Registry) synthesize(st reflect.Type) {
	impl, err := r.build(st)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil {
		if other, taken := r.names[impl.desc.TypeName]; taken && other != st {
			err = fmt.Errorf("%w: %s is taken by %s", ErrDuplicateTypeName, impl.desc.TypeName, other)
		}
	}

	if err != nil {
		r.failed[st] = err
		r.logger.Warn("entity contract rejected",
			zap.String("type", st.String()),
			zap.Error(err),
		)
		return
	}

	r.impls[st] = impl
	r.names[impl.desc.TypeName] = st
	r.logger.Debug("synthesized entity implementation",
		zap.String("type", impl.desc.TypeName),
		zap.String("identity", impl.desc.Identity.Name),
		zap.Bool("auto_identity", impl.desc.AutoIdentity),
		zap.Int("fields", len(impl.desc.Fields)),
	)
}

// ByName returns the registered implementation with the given entity name
func (r *Registry) ByName(name string) (*Implementation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.names[name]
	if !ok {
		return nil, false
	}
	return r.impls[st], true
}

// Implementations returns every synthesized implementation ordered by name
func (r *Registry) Implementations() []*Implementation {
	r.mu.RLock()
	out := make([]*Implementation, 0, len(r.impls))
	for _, impl := range r.impls {
		out = append(out, impl)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].desc.TypeName < out[j].desc.TypeName
	})
	return out
}

// IdentityOf returns the stored identity of a handle of any registered type
func (r *Registry) IdentityOf(entity any) (string, error) {
	t := reflect.TypeOf(entity)
	if t == nil || t.Kind() != reflect.Pointer {
		return "", fmt.Errorf("%w: %T", ErrNotAHandle, entity)
	}
	impl, err := r.Implementation(t)
	if err != nil {
		return "", err
	}
	return impl.IdentityString(entity)
}

// referenceCodec encodes handles of entity type t by identity. The referenced
// implementation is resolved when a value is decoded, so contracts may refer
// to themselves or to each other.
func (r *Registry) referenceCodec(t reflect.Type) (codec.Codec, error) {
	idField, ok := schema.IdentityField(t.Elem())
	if !ok {
		return codec.Codec{}, fmt.Errorf("%w: %s", schema.ErrNoIdentityField, t.Elem().Name())
	}
	idCodec, err := codec.Lookup(idField.Type)
	if err != nil {
		return codec.Codec{}, err
	}

	return codec.Reference(t, idCodec, idField.Index[0], func(id any) (any, error) {
		impl, err := r.Implementation(t)
		if err != nil {
			return nil, err
		}
		return impl.construct(reflect.ValueOf(id)), nil
	}), nil
}
