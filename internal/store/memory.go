package store

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryShards = 16

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// Memory is an in-process Store sharded by key to keep lock contention
// away from concurrent trade attempts.
type Memory struct {
	shards [memoryShards]*memoryShard
}

func NewMemory() *Memory {
	m := &Memory{}
	for i := range m.shards {
		m.shards[i] = &memoryShard{entries: make(map[string]memoryEntry)}
	}
	return m
}

func (m *Memory) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%memoryShards]
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	s := m.shard(key)
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s := m.shard(key)
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	s := m.shard(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

var _ Store = (*Memory)(nil)
