package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/sky-takeout/internal/cart"
)

// Memory is an in-process Repository with the same conditional update
// semantics as PGRepo. Snapshot and Restore let a caller emulate a rolled
// back transaction.
type Memory struct {
	mu     sync.Mutex
	orders map[int64]Order
	lines  []Line
	nextID int64
}

func NewMemory() *Memory {
	return &Memory{orders: make(map[int64]Order)}
}

// MemorySnapshot is an opaque copy of a Memory.
type MemorySnapshot struct {
	orders map[int64]Order
	lines  []Line
	nextID int64
}

func (m *Memory) Snapshot() MemorySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make(map[int64]Order, len(m.orders))
	for k, v := range m.orders {
		cp[k] = v
	}
	return MemorySnapshot{orders: cp, lines: append([]Line(nil), m.lines...), nextID: m.nextID}
}

func (m *Memory) Restore(st MemorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orders = st.orders
	m.lines = st.lines
	m.nextID = st.nextID
}

func (m *Memory) Insert(ctx context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cur := range m.orders {
		if cur.Number == o.Number {
			return ErrDuplicateNumber
		}
	}
	m.nextID++
	o.ID = m.nextID
	m.orders[o.ID] = *o
	return nil
}

func (m *Memory) InsertLines(ctx context.Context, lines []Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range lines {
		l.ID = int64(len(m.lines) + 1)
		m.lines = append(m.lines, l)
	}
	return nil
}

func (m *Memory) Update(ctx context.Context, p Patch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[p.ID]
	if !ok || (p.WhenStatus != 0 && o.Status != p.WhenStatus) {
		return false, nil
	}
	if p.Status != 0 {
		o.Status = p.Status
	}
	if p.PayStatus != nil {
		o.PayStatus = *p.PayStatus
	}
	if p.CheckoutTime != nil {
		o.CheckoutTime = p.CheckoutTime
	}
	if p.CancelReason != "" {
		o.CancelReason = p.CancelReason
	}
	if p.CancelTime != nil {
		o.CancelTime = p.CancelTime
	}
	if p.ClearCancel {
		o.CancelReason, o.CancelTime = "", nil
	}
	m.orders[p.ID] = o
	return true, nil
}

func (m *Memory) GetByNumberAndOwner(ctx context.Context, number string, userID int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.Number == number && o.UserID == userID {
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetByID(ctx context.Context, id int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *Memory) Lines(ctx context.Context, orderID int64) ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Line
	for _, l := range m.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Memory) sorted(keep func(Order) bool) []Order {
	var out []Order
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) ListByStatusBefore(ctx context.Context, status Status, t time.Time) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sorted(func(o Order) bool { return o.Status == status && o.OrderTime.Before(t) }), nil
}

func (m *Memory) ListByOwner(ctx context.Context, userID int64, status Status, limit, offset int) ([]Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.sorted(func(o Order) bool {
		return o.UserID == userID && (status == 0 || o.Status == status)
	})
	// newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	total := len(all)
	if offset >= total {
		return []Order{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f Filter) match(o Order) bool {
	return (f.Status == 0 || o.Status == f.Status) &&
		(f.UserID == 0 || o.UserID == f.UserID) &&
		(f.Begin.IsZero() || !o.OrderTime.Before(f.Begin)) &&
		(f.End.IsZero() || o.OrderTime.Before(f.End))
}

func (m *Memory) Count(ctx context.Context, f Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sorted(f.match)), nil
}

func (m *Memory) SumAmount(ctx context.Context, f Filter) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := decimal.Zero
	for _, o := range m.sorted(f.match) {
		sum = sum.Add(o.Amount)
	}
	return sum, nil
}

// MemoryTx runs fn against in-memory repositories and restores both when
// fn fails.
type MemoryTx struct {
	Orders *Memory
	Carts  *cart.Memory
}

func (t MemoryTx) InTx(ctx context.Context, fn func(orders Repository, carts cart.Repository) error) error {
	orders, carts := t.Orders.Snapshot(), t.Carts.Snapshot()
	if err := fn(t.Orders, t.Carts); err != nil {
		t.Orders.Restore(orders)
		t.Carts.Restore(carts)
		return err
	}
	return nil
}
