package cart

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Memory is an in-process Repository. Snapshot and Restore let a caller
// emulate a rolled back transaction.
type Memory struct {
	mu     sync.Mutex
	lines  map[int64]Line
	nextID int64
}

func NewMemory() *Memory {
	return &Memory{lines: make(map[int64]Line)}
}

func (m *Memory) ListByOwner(ctx context.Context, userID int64) ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Line
	for _, l := range m.lines {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Find(ctx context.Context, userID, dishID int64, flavor *string) (*Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.lines {
		if l.UserID == userID && l.DishID == dishID && sameFlavor(l.Flavor, flavor) {
			cp := l
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func sameFlavor(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *Memory) Insert(ctx context.Context, l *Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	l.ID = m.nextID
	m.lines[l.ID] = *l
	return nil
}

func (m *Memory) InsertBatch(ctx context.Context, lines []Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range lines {
		m.nextID++
		l.ID = m.nextID
		m.lines[l.ID] = l
	}
	return nil
}

func (m *Memory) UpdateQuantity(ctx context.Context, id int64, quantity int, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lines[id]
	if !ok {
		return ErrNotFound
	}
	l.Quantity = quantity
	l.Amount = amount
	m.lines[id] = l
	return nil
}

func (m *Memory) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, id)
	return nil
}

func (m *Memory) DeleteByOwner(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, l := range m.lines {
		if l.UserID == userID {
			delete(m.lines, id)
			n++
		}
	}
	return n, nil
}

// Snapshot copies the current contents.
func (m *Memory) Snapshot() map[int64]Line {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make(map[int64]Line, len(m.lines))
	for k, v := range m.lines {
		cp[k] = v
	}
	return cp
}

// Restore replaces the contents with a snapshot.
func (m *Memory) Restore(snap map[int64]Line) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lines = make(map[int64]Line, len(snap))
	for k, v := range snap {
		m.lines[k] = v
	}
}
