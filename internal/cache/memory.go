package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store for tests and single-node runs.
type Memory struct {
	mu     sync.Mutex
	data   map[string][]byte
	expiry map[string]time.Time
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		data:   make(map[string][]byte),
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
}

// WithClock replaces the time source used for expiry.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	if exp, has := m.expiry[key]; has && !m.now().Before(exp) {
		delete(m.data, key)
		delete(m.expiry, key)
		return nil, ErrMiss
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = append([]byte(nil), val...)
	if ttl > 0 {
		m.expiry[key] = m.now().Add(ttl)
	} else {
		delete(m.expiry, key)
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.data, k)
		delete(m.expiry, k)
	}
	return nil
}

func (m *Memory) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			delete(m.expiry, k)
		}
	}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
