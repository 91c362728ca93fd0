// Package counter defines the contract the limiters and detectors use to
// reach the shared key/value store.
//
// Every implementation mirrors Redis semantics: keys are created lazily,
// expire by TTL, and INCR on a missing key starts at 1. Callers treat any
// returned error as "store unavailable" and fail open.
package counter

//go:generate mockgen -source=counter.go -destination=mocks/mocks.go -package=mocks Store,AtomicIncrementer

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the store cannot be reached or the circuit
// breaker in front of it is open.
var ErrUnavailable = errors.New("counter store unavailable")

// TTL sentinels, following Redis: a key without expiry reports NoExpiry and a
// missing key reports Missing.
const (
	NoExpiry time.Duration = -1
	Missing  time.Duration = -2
)

// Store is the shared counter/key-value store.
type Store interface {
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets a TTL. It reports false when the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)

	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set writes value; a zero ttl stores the key without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	// Keys returns keys matching a glob pattern (*, ?, [..]).
	Keys(ctx context.Context, pattern string) ([]string, error)

	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)

	Ping(ctx context.Context) error
}

// AtomicIncrementer is implemented by stores that can increment and arm the
// expiry of a fresh key in one round trip.
type AtomicIncrementer interface {
	IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// IncrWindow increments key and arms ttl when the increment created the key.
// With atomic set and a store implementing AtomicIncrementer the two steps are
// a single operation. Otherwise they are two calls; when arming the expiry
// fails the fresh key is deleted so the next increment starts a new window
// instead of counting forever. The Expire error is still returned.
func IncrWindow(ctx context.Context, s Store, key string, ttl time.Duration, atomic bool) (int64, error) {
	if atomic {
		if ai, ok := s.(AtomicIncrementer); ok {
			return ai.IncrWithExpiry(ctx, key, ttl)
		}
	}
	count, err := s.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if _, err := s.Expire(ctx, key, ttl); err != nil {
			_, _ = s.Del(context.WithoutCancel(ctx), key)
			return count, err
		}
	}
	return count, nil
}
