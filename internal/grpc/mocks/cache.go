package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockCacher is an in-memory stand-in for the Redis cache. Values are stored
// as JSON, as the real cache does, so hits decode into fresh values. The func
// fields override the default behaviour.
type MockCacher struct {
	GetFunc    func(ctx context.Context, key string, dest any) error
	SetFunc    func(ctx context.Context, key string, value any, expiration time.Duration) error
	DeleteFunc func(ctx context.Context, keys ...string) error
	CloseFunc  func() error

	mu    sync.Mutex
	store map[string][]byte
	sets  int
}

func (m *MockCacher) Get(ctx context.Context, key string, dest any) error {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key, dest)
	}
	m.mu.Lock()
	data, ok := m.store[key]
	m.mu.Unlock()
	if !ok {
		return redis.Nil
	}
	return json.Unmarshal(data, dest)
}

func (m *MockCacher) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		m.store = make(map[string][]byte)
	}
	m.store[key] = data
	m.sets++
	return nil
}

func (m *MockCacher) Delete(ctx context.Context, keys ...string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, keys...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.store, k)
	}
	return nil
}

// Has reports whether key currently holds a value.
func (m *MockCacher) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.store[key]
	return ok
}

func (m *MockCacher) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Sets reports how many values were written through the default Set.
func (m *MockCacher) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}
