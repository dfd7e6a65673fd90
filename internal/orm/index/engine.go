// Package index enforces uniqueness constraints and maintains the value lookup
// indexes of entity fields. Uniqueness is decided by a server-side script so the
// check, the claim and the commit happen as one atomic step.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrUniqueConstraintViolated is returned when a value is already claimed by another entity
var ErrUniqueConstraintViolated = errors.New("unique constraint violated")

// claimScript swaps ARGV[2] into hash field ARGV[1] of KEYS[1] if the uniqueness
// set KEYS[2] accepts it. Returns 1 on commit, 2 when the hash already holds the
// value and 0 when another entity owns it.
var claimScript = redis.NewScript(`
	local current = redis.call('HGET', KEYS[1], ARGV[1])
	if current == ARGV[2] then
		return 2
	end

	if redis.call('SADD', KEYS[2], ARGV[2]) == 0 then
		return 0
	end

	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	if current then
		redis.call('SREM', KEYS[2], current)
	end
	return 1
`)

// releaseScript clears hash field ARGV[1] of KEYS[1] and gives its value back
// to the uniqueness set KEYS[2].
var releaseScript = redis.NewScript(`
	local current = redis.call('HGET', KEYS[1], ARGV[1])
	if not current then
		return 0
	end

	redis.call('HDEL', KEYS[1], ARGV[1])
	redis.call('SREM', KEYS[2], current)
	return 1
`)

// reindexScript moves identity ARGV[5] in lookup hash KEYS[1] from the old value
// ARGV[1] (if ARGV[2] is "1") to the new value ARGV[3] (if ARGV[4] is "1"). The old
// entry is only dropped while it still points at this identity.
var reindexScript = redis.NewScript(`
	local hadOld = ARGV[2] == '1'
	local hasNew = ARGV[4] == '1'

	if hadOld and (not hasNew or ARGV[1] ~= ARGV[3]) then
		if redis.call('HGET', KEYS[1], ARGV[1]) == ARGV[5] then
			redis.call('HDEL', KEYS[1], ARGV[1])
		end
	end

	if hasNew then
		redis.call('HSET', KEYS[1], ARGV[3], ARGV[5])
	end
	return 1
`)

// dropScript clears hash field ARGV[1] of KEYS[1] as part of deleting identity
// ARGV[2]. The value is given back to the uniqueness set KEYS[2] when ARGV[3] is
// "1" and dropped from lookup hash KEYS[3] when ARGV[4] is "1" and the entry
// still points at this identity.
var dropScript = redis.NewScript(`
	local current = redis.call('HGET', KEYS[1], ARGV[1])
	if not current then
		return 0
	end

	if ARGV[3] == '1' then
		redis.call('SREM', KEYS[2], current)
	end
	if ARGV[4] == '1' and redis.call('HGET', KEYS[3], current) == ARGV[2] then
		redis.call('HDEL', KEYS[3], current)
	end
	redis.call('HDEL', KEYS[1], ARGV[1])
	return 1
`)

// Constraint describes the write path of one hash field
type Constraint struct {
	// Field is the hash field name
	Field string
	// UniqueKey is the uniqueness set key, empty when the field is not unique
	UniqueKey string
	// LookupKey is the lookup hash key, empty when the field is not indexed
	LookupKey string
}

// Unique returns true if writes go through the uniqueness script
func (c Constraint) Unique() bool {
	return c.UniqueKey != ""
}

// Indexed returns true if writes maintain the lookup hash
func (c Constraint) Indexed() bool {
	return c.LookupKey != ""
}

// Engine performs constrained field writes and index lookups
type Engine struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewEngine creates a new index engine
func NewEngine(client redis.Cmdable, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{client: client, logger: logger}
}

// Write stores value in field c.Field of hashKey, or removes the field when
// present is false, honouring the field's uniqueness and lookup index.
//
// A rejected unique write leaves every key untouched. Lookup index maintenance
// runs after the hash write and is best-effort: a concurrent writer may observe
// the hash updated before the index.
func (e *Engine) Write(ctx context.Context, c Constraint, hashKey, id, value string, present bool) error {
	var (
		old    string
		hadOld bool
	)
	if c.Indexed() {
		v, err := e.client.HGet(ctx, hashKey, c.Field).Result()
		switch {
		case err == nil:
			old, hadOld = v, true
		case !errors.Is(err, redis.Nil):
			return fmt.Errorf("read %s of %s: %w", c.Field, hashKey, err)
		}
	}

	if err := e.write(ctx, c, hashKey, value, present); err != nil {
		return err
	}

	if !c.Indexed() {
		return nil
	}

	err := reindexScript.Run(ctx, e.client, []string{c.LookupKey},
		old, flag(hadOld), value, flag(present), id,
	).Err()
	if err != nil {
		return fmt.Errorf("update index %s: %w", c.LookupKey, err)
	}
	return nil
}

func (e *Engine) write(ctx context.Context, c Constraint, hashKey, value string, present bool) error {
	if !c.Unique() {
		var err error
		if present {
			err = e.client.HSet(ctx, hashKey, c.Field, value).Err()
		} else {
			err = e.client.HDel(ctx, hashKey, c.Field).Err()
		}
		if err != nil {
			return fmt.Errorf("write %s of %s: %w", c.Field, hashKey, err)
		}
		return nil
	}

	if !present {
		if err := releaseScript.Run(ctx, e.client, []string{hashKey, c.UniqueKey}, c.Field).Err(); err != nil {
			return fmt.Errorf("release %s of %s: %w", c.Field, hashKey, err)
		}
		return nil
	}

	status, err := claimScript.Run(ctx, e.client, []string{hashKey, c.UniqueKey}, c.Field, value).Int64()
	if err != nil {
		return fmt.Errorf("claim %s of %s: %w", c.Field, hashKey, err)
	}
	if status == 0 {
		e.logger.Debug("unique claim rejected",
			zap.String("key", hashKey),
			zap.String("field", c.Field),
			zap.String("value", value),
		)
		return fmt.Errorf("%w: %s %q is taken", ErrUniqueConstraintViolated, c.Field, value)
	}
	return nil
}

// Drop queues the release of field c.Field of hashKey on pipe, so it commits or
// fails together with the rest of a transaction. The script is sent with EVAL
// because a missing script cannot be reloaded inside MULTI.
func (e *Engine) Drop(ctx context.Context, pipe redis.Pipeliner, c Constraint, hashKey, id string) {
	dropScript.Eval(ctx, pipe, []string{hashKey, c.UniqueKey, c.LookupKey},
		c.Field, id, flag(c.Unique()), flag(c.Indexed()),
	)
}

// Lookup returns the identity indexed under value in lookupKey
func (e *Engine) Lookup(ctx context.Context, lookupKey, value string) (string, bool, error) {
	id, err := e.client.HGet(ctx, lookupKey, value).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup %s: %w", lookupKey, err)
	}
	return id, true, nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
