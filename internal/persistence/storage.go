package persistence

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Storage.Load when no snapshot exists for the key.
var ErrNotFound = errors.New("cart snapshot not found")

// Storage holds serialized snapshots. scope is the device that owns the local cart,
// key is the identity storage key within it.
type Storage interface {
	Load(ctx context.Context, scope, key string) ([]byte, error)
	Save(ctx context.Context, scope, key string, payload []byte) error
	Delete(ctx context.Context, scope, key string) error
	Ping(ctx context.Context) error
}

// MemoryStorage keeps snapshots in process. Used for local runs and tests.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[memoryKey][]byte
}

type memoryKey struct {
	scope string
	key   string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: map[memoryKey][]byte{}}
}

func (m *MemoryStorage) Load(_ context.Context, scope, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.data[memoryKey{scope, key}]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

func (m *MemoryStorage) Save(_ context.Context, scope, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[memoryKey{scope, key}] = append([]byte(nil), payload...)
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, memoryKey{scope, key})
	return nil
}

func (m *MemoryStorage) Ping(context.Context) error {
	return nil
}
