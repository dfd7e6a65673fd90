// Package collection provides stateless list and set views bound to one store key.
//
// Views never cache membership or contents: every operation is a store round trip,
// and sequences re-issue their read each time they are iterated.
package collection

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/redis/go-redis/v9"

	"github.com/conduit-lang/redisstore/internal/orm/codec"
)

// ErrNullElement is returned when a nil element is pushed or added
var ErrNullElement = errors.New("collections cannot hold null elements")

// view is the key and element codec shared by lists and sets
type view struct {
	client redis.Cmdable
	key    string
	elem   codec.Codec
}

// Key returns the store key the view is bound to
func (v view) Key() string {
	return v.key
}

func (v view) encode(value any) (string, error) {
	s, present, err := v.elem.Encode(value)
	if err != nil {
		return "", err
	}
	if !present {
		return "", fmt.Errorf("%w: %s", ErrNullElement, v.key)
	}
	return s, nil
}

func (v view) decode(s string) (any, error) {
	return v.elem.Decode(s, true)
}

// sequence decodes the result of fetch lazily; fetch runs once per iteration
func (v view) sequence(fetch func() ([]string, error)) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		raw, err := fetch()
		if err != nil {
			yield(nil, err)
			return
		}
		for _, s := range raw {
			el, err := v.decode(s)
			if !yield(el, err) || err != nil {
				return
			}
		}
	}
}

// List is an ordered view over a native list
type List struct {
	view
}

// NewList binds a list view to key
func NewList(client redis.Cmdable, key string, elem codec.Codec) *List {
	return &List{view{client: client, key: key, elem: elem}}
}

// PushHead inserts v at the head of the list
func (l *List) PushHead(ctx context.Context, v any) error {
	s, err := l.encode(v)
	if err != nil {
		return err
	}
	if err := l.client.LPush(ctx, l.key, s).Err(); err != nil {
		return fmt.Errorf("push head %s: %w", l.key, err)
	}
	return nil
}

// PushTail appends v to the tail of the list
func (l *List) PushTail(ctx context.Context, v any) error {
	s, err := l.encode(v)
	if err != nil {
		return err
	}
	if err := l.client.RPush(ctx, l.key, s).Err(); err != nil {
		return fmt.Errorf("push tail %s: %w", l.key, err)
	}
	return nil
}

// PopHead removes and returns the head element; ok is false on an empty list
func (l *List) PopHead(ctx context.Context) (any, bool, error) {
	return l.pop(l.client.LPop(ctx, l.key), "pop head")
}

// PopTail removes and returns the tail element; ok is false on an empty list
func (l *List) PopTail(ctx context.Context) (any, bool, error) {
	return l.pop(l.client.RPop(ctx, l.key), "pop tail")
}

func (l *List) pop(cmd *redis.StringCmd, op string) (any, bool, error) {
	s, err := cmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s %s: %w", op, l.key, err)
	}
	el, err := l.decode(s)
	if err != nil {
		return nil, false, err
	}
	return el, true, nil
}

// Count returns the length of the list
func (l *List) Count(ctx context.Context) (int64, error) {
	n, err := l.client.LLen(ctx, l.key).Result()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", l.key, err)
	}
	return n, nil
}

// All returns the list contents head to tail. Each iteration reads a fresh
// snapshot of the whole list.
func (l *List) All(ctx context.Context) iter.Seq2[any, error] {
	return l.sequence(func() ([]string, error) {
		raw, err := l.client.LRange(ctx, l.key, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("range %s: %w", l.key, err)
		}
		return raw, nil
	})
}

// Set is an unordered view over a native set
type Set struct {
	view
}

// NewSet binds a set view to key
func NewSet(client redis.Cmdable, key string, elem codec.Codec) *Set {
	return &Set{view{client: client, key: key, elem: elem}}
}

// Add inserts v and returns false if it was already a member
func (s *Set) Add(ctx context.Context, v any) (bool, error) {
	el, err := s.encode(v)
	if err != nil {
		return false, err
	}
	n, err := s.client.SAdd(ctx, s.key, el).Result()
	if err != nil {
		return false, fmt.Errorf("add to %s: %w", s.key, err)
	}
	return n == 1, nil
}

// Remove deletes v and returns false if it was not a member
func (s *Set) Remove(ctx context.Context, v any) (bool, error) {
	el, err := s.encode(v)
	if err != nil {
		return false, err
	}
	n, err := s.client.SRem(ctx, s.key, el).Result()
	if err != nil {
		return false, fmt.Errorf("remove from %s: %w", s.key, err)
	}
	return n == 1, nil
}

// Contains reports whether v is a member
func (s *Set) Contains(ctx context.Context, v any) (bool, error) {
	el, err := s.encode(v)
	if err != nil {
		return false, err
	}
	ok, err := s.client.SIsMember(ctx, s.key, el).Result()
	if err != nil {
		return false, fmt.Errorf("check %s: %w", s.key, err)
	}
	return ok, nil
}

// Count returns the cardinality of the set
func (s *Set) Count(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.key, err)
	}
	return n, nil
}

// All returns the current members in no particular order
func (s *Set) All(ctx context.Context) iter.Seq2[any, error] {
	return s.sequence(func() ([]string, error) {
		raw, err := s.client.SMembers(ctx, s.key).Result()
		if err != nil {
			return nil, fmt.Errorf("members of %s: %w", s.key, err)
		}
		return raw, nil
	})
}

// Union returns the members of this set or any of others
func (s *Set) Union(ctx context.Context, others ...*Set) iter.Seq2[any, error] {
	return s.combine("union", others, func(keys []string) *redis.StringSliceCmd {
		return s.client.SUnion(ctx, keys...)
	})
}

// Intersect returns the members common to this set and every one of others
func (s *Set) Intersect(ctx context.Context, others ...*Set) iter.Seq2[any, error] {
	return s.combine("intersect", others, func(keys []string) *redis.StringSliceCmd {
		return s.client.SInter(ctx, keys...)
	})
}

// Diff returns the members of this set found in none of others
func (s *Set) Diff(ctx context.Context, others ...*Set) iter.Seq2[any, error] {
	return s.combine("diff", others, func(keys []string) *redis.StringSliceCmd {
		return s.client.SDiff(ctx, keys...)
	})
}

// combine runs one multi-key set command with this set's key first
func (s *Set) combine(op string, others []*Set, run func(keys []string) *redis.StringSliceCmd) iter.Seq2[any, error] {
	keys := make([]string, 0, len(others)+1)
	keys = append(keys, s.key)
	for _, o := range others {
		keys = append(keys, o.key)
	}

	return s.sequence(func() ([]string, error) {
		raw, err := run(keys).Result()
		if err != nil {
			return nil, fmt.Errorf("%s %v: %w", op, keys, err)
		}
		return raw, nil
	})
}
