// Package store maps Go structs onto Redis hashes, lists and sets.
//
// An entity is a struct with an identity field and accessor fields:
//
//	type User struct {
//		Handle    string                 `store:",id"`
//		Email     store.Value[*string]   `store:",unique,index"`
//		Followers store.Set[*User]
//	}
//
// Integer identities are drawn from a per-type counter; any other identity is
// supplied by the caller. Handles carry only their identity and every accessor
// call is a store round trip.
package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/redisstore/internal/config"
	"github.com/conduit-lang/redisstore/internal/orm/entity"
	"github.com/conduit-lang/redisstore/internal/redisclient"
)

// Store is the entry point for entity operations. It is safe for concurrent use.
type Store struct {
	client redis.UniversalClient
	logger *zap.Logger
	opts   entity.Options
	reg    *entity.Registry
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger; the default discards everything
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithRecordCreated controls the creation marker on counter-keyed entities
func WithRecordCreated(record bool) Option {
	return func(s *Store) {
		s.opts.RecordCreated = record
	}
}

// WithClock sets the time source of the creation marker
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.opts.Now = now
	}
}

// New creates a Store issuing commands through client
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		logger: zap.NewNop(),
		opts:   entity.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.reg = entity.NewRegistry(client, s.logger, s.opts)
	return s
}

// Open connects to the configured server and creates a Store that owns the
// connection
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if cfg.Store.CommandLogging {
		client.AddHook(redisclient.NewLoggingHook(logger))
	}

	return New(client,
		WithLogger(logger),
		WithRecordCreated(cfg.Store.RecordCreated),
	), nil
}

// Client returns the underlying client
func (s *Store) Client() redis.UniversalClient {
	return s.client
}

// Registry returns the registry holding every synthesized entity type
func (s *Store) Registry() *entity.Registry {
	return s.reg
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}
