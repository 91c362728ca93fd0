// Package sync provides a sharded map for in-process stores.
package sync

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

// ShardedMap distributes keys across fixed shards, each guarded by its own
// mutex, so unrelated keys do not contend on a single lock.
type ShardedMap[V any] struct {
	shards [shardCount]shard[V]
}

type shard[V any] struct {
	mu sync.Mutex
	m  map[string]V
}

// NewShardedMap creates an empty map.
func NewShardedMap[V any]() *ShardedMap[V] {
	s := &ShardedMap[V]{}
	for i := range s.shards {
		s.shards[i].m = make(map[string]V)
	}
	return s
}

// With runs fn while holding the lock of key's shard. fn receives the shard's
// backing map and may read or mutate any entry for key. Operations on a
// single key are therefore atomic with respect to each other.
func (s *ShardedMap[V]) With(key string, fn func(m map[string]V)) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fn(sh.m)
}

// Range visits every entry shard by shard. fn may delete the visited entry
// from m. Returning false stops the walk. Entries added to a shard that was
// already visited are not seen.
func (s *ShardedMap[V]) Range(fn func(m map[string]V, key string, value V) bool) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k, v := range sh.m {
			if !fn(sh.m, k, v) {
				sh.mu.Unlock()
				return
			}
		}
		sh.mu.Unlock()
	}
}

// Len returns the number of entries across all shards.
func (s *ShardedMap[V]) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.m)
		sh.mu.Unlock()
	}
	return n
}

func (s *ShardedMap[V]) shardFor(key string) *shard[V] {
	return &s.shards[shardIndex(key)]
}

// shardIndex maps a key onto a shard. Empty keys land on shard 0.
func shardIndex(key string) int {
	if key == "" {
		return 0
	}
	return int(xxhash.Sum64String(key) % shardCount)
}
