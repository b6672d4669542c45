// Package cache implements the concurrent result cache used by the equity
// calculator. It is a plain sharded map: no eviction, no TTL, no size bound.
// Entries live exactly as long as the owning calculator does.
package cache

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash"
)

// numShards must be a power of two.
const numShards = 16

type shard[V any] struct {
	sync.Mutex
	entries map[int64]V
}

// Map is a concurrent map from int64 keys to values of type V. Gets and
// sets are safe from any number of goroutines. There is no at-most-once
// guarantee for computing values: two callers may both miss on the same key
// and both store; the last write wins.
type Map[V any] struct {
	shards [numShards]shard[V]
}

func NewMap[V any]() *Map[V] {
	m := &Map[V]{}
	for i := range m.shards {
		m.shards[i].entries = make(map[int64]V)
	}
	return m
}

func (m *Map[V]) shardFor(key int64) *shard[V] {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(key))
	return &m.shards[xxhash.Sum64(b[:])&(numShards-1)]
}

func (m *Map[V]) Get(key int64) (V, bool) {
	s := m.shardFor(key)
	s.Lock()
	defer s.Unlock()
	v, ok := s.entries[key]
	return v, ok
}

func (m *Map[V]) Set(key int64, val V) {
	s := m.shardFor(key)
	s.Lock()
	defer s.Unlock()
	s.entries[key] = val
}

// Len returns the total number of cached entries.
func (m *Map[V]) Len() int {
	n := 0
	for i := range m.shards {
		m.shards[i].Lock()
		n += len(m.shards[i].entries)
		m.shards[i].Unlock()
	}
	return n
}
