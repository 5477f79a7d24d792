package database

import (
	"context"
	"sync"
)

// MemoryBackend keeps collections in process memory. The mutex protects the
// map only; callers still race on load/modify/save like every other backend.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string][]byte)}
}

func (b *MemoryBackend) Load(_ context.Context, collection string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.docs[collection]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (b *MemoryBackend) Save(_ context.Context, collection string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.docs[collection] = append([]byte(nil), data...)
	return nil
}

func (b *MemoryBackend) Ping(context.Context) error { return nil }

func (b *MemoryBackend) Close() error { return nil }
