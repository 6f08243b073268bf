package cache

import (
	"context"
	"sync"
	"time"

	"flowpilot/internal/domain"
)

type memoryItem struct {
	value   []byte
	expires time.Time
}

// Memory — кэш в памяти процесса для запуска без Redis и для тестов.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

var _ domain.Cache = (*Memory)(nil)

// NewMemory создаёт пустой кэш.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]memoryItem), now: time.Now}
}

// Once выполняет функцию, если ключ ещё не задан.
func (m *Memory) Once(_ context.Context, key string, ttl time.Duration, fn func() error) error {
	m.mu.Lock()
	if _, ok := m.lookup(key); ok {
		m.mu.Unlock()
		return nil
	}
	m.store(key, []byte("1"), ttl)
	m.mu.Unlock()

	if err := fn(); err != nil {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return err
	}
	return nil
}

// Set задаёт значение.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(key, append([]byte(nil), value...), ttl)
	return nil
}

// Get возвращает значение или domain.ErrCacheMiss.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.lookup(key)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return append([]byte(nil), item.value...), nil
}

func (m *Memory) lookup(key string) (memoryItem, bool) {
	item, ok := m.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if !item.expires.IsZero() && !m.now().Before(item.expires) {
		delete(m.items, key)
		return memoryItem{}, false
	}
	return item, true
}

func (m *Memory) store(key string, value []byte, ttl time.Duration) {
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expires = m.now().Add(ttl)
	}
	m.items[key] = item
}
