package counters

import (
	"context"
	"sync"
)

// Memory хранит счётчики в памяти процесса. Используется без Redis и в тестах.
type Memory struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]int64)}
}

// Incr увеличивает счётчик.
func (m *Memory) Incr(_ context.Context, name string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] += delta
	return nil
}

// Snapshot возвращает копию значений.
func (m *Memory) Snapshot(context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

// Reset обнуляет счётчики.
func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]int64)
	return nil
}
