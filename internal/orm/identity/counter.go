// Package identity assigns counter-based identities to integer-keyed entity types.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// CounterKey is the hash holding the highest identity issued per type name
const CounterKey = "TypeCounters"

// Manager issues identities from the per-type counters
type Manager struct {
	client redis.Cmdable
}

// NewManager creates a new identity manager
func NewManager(client redis.Cmdable) *Manager {
	return &Manager{client: client}
}

// Next atomically increments the counter for typeName and returns the new value.
// Identities are unique and strictly increasing; deleted entities leave gaps that
// are never refilled.
func (m *Manager) Next(ctx context.Context, typeName string) (int64, error) {
	id, err := m.client.HIncrBy(ctx, CounterKey, typeName, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("increment %s counter: %w", typeName, err)
	}
	return id, nil
}

// Bound returns the highest identity issued for typeName, 0 if none
func (m *Manager) Bound(ctx context.Context, typeName string) (int64, error) {
	n, err := m.client.HGet(ctx, CounterKey, typeName).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("read %s counter: %w", typeName, err)
	}
	return n, nil
}

// All returns every counter keyed by type name
func (m *Manager) All(ctx context.Context) (map[string]int64, error) {
	raw, err := m.client.HGetAll(ctx, CounterKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read counters: %w", err)
	}

	out := make(map[string]int64, len(raw))
	for name, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s counter %q: %w", name, v, err)
		}
		out[name] = n
	}
	return out, nil
}
