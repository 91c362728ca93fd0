// Package memory is an in-process counter.Store for single-instance
// deployments, the admin CLI and tests.
package memory

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"time"

	"bulwark/internal/counter"
	"bulwark/pkg/platform/sync"
)

type entry struct {
	value     string
	set       map[string]struct{}
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store keeps entries in a sharded map and evaluates TTLs lazily against
// its clock. Expired entries are dropped on access and by Sweep.
type Store struct {
	data  *sync.ShardedMap[*entry]
	clock func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		data:  sync.NewShardedMap[*entry](),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ counter.Store             = (*Store)(nil)
	_ counter.AtomicIncrementer = (*Store)(nil)
)

// live returns the entry for key, deleting it first if it has expired.
// Must be called with the shard locked.
func (s *Store) live(m map[string]*entry, key string) *entry {
	e, ok := m[key]
	if !ok {
		return nil
	}
	if e.expired(s.clock()) {
		delete(m, key)
		return nil
	}
	return e
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return s.incr(ctx, key, 0)
}

// IncrWithExpiry increments key and, when the key was created by this call,
// arms ttl under the same lock.
func (s *Store) IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return s.incr(ctx, key, ttl)
}

func (s *Store) incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var (
		n   int64
		err error
	)
	s.data.With(key, func(m map[string]*entry) {
		e := s.live(m, key)
		if e == nil {
			e = &entry{value: "0"}
			m[key] = e
		}
		if e.set != nil {
			err = fmt.Errorf("incr %s: wrong type", key)
			return
		}
		cur, perr := strconv.ParseInt(e.value, 10, 64)
		if perr != nil {
			err = fmt.Errorf("incr %s: value is not an integer", key)
			return
		}
		n = cur + 1
		e.value = strconv.FormatInt(n, 10)
		if n == 1 && ttl > 0 {
			e.expiresAt = s.clock().Add(ttl)
		}
	})
	return n, err
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var ok bool
	s.data.With(key, func(m map[string]*entry) {
		e := s.live(m, key)
		if e == nil {
			return
		}
		if ttl <= 0 {
			delete(m, key)
		} else {
			e.expiresAt = s.clock().Add(ttl)
		}
		ok = true
	})
	return ok, nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ttl := counter.Missing
	s.data.With(key, func(m map[string]*entry) {
		e := s.live(m, key)
		switch {
		case e == nil:
		case e.expiresAt.IsZero():
			ttl = counter.NoExpiry
		default:
			ttl = e.expiresAt.Sub(s.clock())
		}
	})
	return ttl, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	var (
		value string
		found bool
		err   error
	)
	s.data.With(key, func(m map[string]*entry) {
		e := s.live(m, key)
		if e == nil {
			return
		}
		if e.set != nil {
			err = fmt.Errorf("get %s: wrong type", key)
			return
		}
		value, found = e.value, true
	})
	return value, found, err
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data.With(key, func(m map[string]*entry) {
		m[key] = s.newEntry(value, ttl)
	})
	return nil
}

func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var created bool
	s.data.With(key, func(m map[string]*entry) {
		if s.live(m, key) != nil {
			return
		}
		m[key] = s.newEntry(value, ttl)
		created = true
	})
	return created, nil
}

func (s *Store) newEntry(value string, ttl time.Duration) *entry {
	e := &entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.clock().Add(ttl)
	}
	return e
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	for _, key := range keys {
		s.data.With(key, func(m map[string]*entry) {
			if s.live(m, key) != nil {
				delete(m, key)
				n++
			}
		})
	}
	return n, nil
}

// Keys matches with path.Match, which covers the glob subset the callers use.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("keys %q: %w", pattern, err)
	}
	now := s.clock()
	var keys []string
	s.data.Range(func(m map[string]*entry, key string, e *entry) bool {
		if e.expired(now) {
			delete(m, key)
			return true
		}
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
		return true
	})
	return keys, nil
}

func (s *Store) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var (
		n   int64
		err error
	)
	s.data.With(key, func(m map[string]*entry) {
		e := s.live(m, key)
		if e == nil {
			e = &entry{set: make(map[string]struct{})}
			m[key] = e
		}
		if e.set == nil {
			err = fmt.Errorf("sadd %s: wrong type", key)
			return
		}
		for _, member := range members {
			if _, ok := e.set[member]; !ok {
				e.set[member] = struct{}{}
				n++
			}
		}
	})
	return n, err
}

func (s *Store) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	s.data.With(key, func(m map[string]*entry) {
		e := s.live(m, key)
		if e == nil || e.set == nil {
			return
		}
		for _, member := range members {
			if _, ok := e.set[member]; ok {
				delete(e.set, member)
				n++
			}
		}
		if len(e.set) == 0 {
			delete(m, key)
		}
	})
	return n, nil
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var members []string
	s.data.With(key, func(m map[string]*entry) {
		e := s.live(m, key)
		if e == nil || e.set == nil {
			return
		}
		members = make([]string, 0, len(e.set))
		for member := range e.set {
			members = append(members, member)
		}
	})
	return members, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Sweep removes every expired entry and returns how many were dropped.
func (s *Store) Sweep() int {
	now := s.clock()
	removed := 0
	s.data.Range(func(m map[string]*entry, key string, e *entry) bool {
		if e.expired(now) {
			delete(m, key)
			removed++
		}
		return true
	})
	return removed
}

// Len returns the number of stored entries, including not yet swept ones.
func (s *Store) Len() int {
	return s.data.Len()
}
