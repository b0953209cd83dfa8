package menu

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/sky-takeout/internal/cache"
)

//
// ===== STUB REPO IN MEMORY (implements menu.Repository) =====
//

type stubRepo struct {
	mu      sync.Mutex
	dishes  map[int64]*Dish
	nextID  int64
	queries map[int64]int // ListByCategoryAndStatus calls per category
}

func newStubRepo() *stubRepo {
	return &stubRepo{dishes: make(map[int64]*Dish), queries: make(map[int64]int)}
}

func (s *stubRepo) seed(name string, categoryID int64, price string, status int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.dishes[s.nextID] = &Dish{
		ID: s.nextID, Name: name, CategoryID: categoryID,
		Price: decimal.RequireFromString(price), Status: status,
	}
	return s.nextID
}

func (s *stubRepo) Create(ctx context.Context, d *Dish, actorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	d.ID = s.nextID
	cp := *d
	s.dishes[d.ID] = &cp
	return nil
}

func (s *stubRepo) GetByID(ctx context.Context, id int64) (*Dish, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dishes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *stubRepo) ListByCategoryAndStatus(ctx context.Context, categoryID int64, status int) ([]Dish, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[categoryID]++
	var out []Dish
	for _, d := range s.dishes {
		if d.CategoryID == categoryID && d.Status == status {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) List(ctx context.Context, q Query) ([]Dish, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Dish, 0, len(s.dishes))
	for _, d := range s.dishes {
		out = append(out, *d)
	}
	return out, nil
}

func (s *stubRepo) Update(ctx context.Context, d *Dish, actorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.dishes[d.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Name = d.Name
	cur.Price = d.Price
	if d.CategoryID != 0 {
		cur.CategoryID = d.CategoryID
	}
	return nil
}

func (s *stubRepo) SetStatus(ctx context.Context, id int64, status int, actorID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.dishes[id]
	if !ok {
		return 0, ErrNotFound
	}
	cur.Status = status
	return cur.CategoryID, nil
}

func (s *stubRepo) DeleteBatch(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if d, ok := s.dishes[id]; ok && d.Status == StatusEnabled {
			return ErrDishOnSale
		}
	}
	for _, id := range ids {
		delete(s.dishes, id)
	}
	return nil
}

func (s *stubRepo) queryCount(categoryID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[categoryID]
}

// flakyStore wraps a real store and fails the operations it is told to.
type flakyStore struct {
	cache.Store
	failGet    bool
	failDelete bool
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet {
		return nil, errors.New("connection refused")
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyStore) Delete(ctx context.Context, keys ...string) error {
	if f.failDelete {
		return errors.New("connection refused")
	}
	return f.Store.Delete(ctx, keys...)
}

func (f *flakyStore) DeletePrefix(ctx context.Context, prefix string) error {
	if f.failDelete {
		return errors.New("connection refused")
	}
	return f.Store.DeletePrefix(ctx, prefix)
}

//
// ===== TESTS =====
//

func TestListForCategory_MissThenHit(t *testing.T) {
	repo := newStubRepo()
	repo.seed("Mapo Tofu", 1, "18.00", StatusEnabled)
	repo.seed("Old Special", 1, "20.00", StatusDisabled)
	svc := NewService(repo, cache.NewMemory(), time.Hour)
	ctx := context.Background()

	first, err := svc.ListForCategory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.ListForCategory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.queryCount(1), "second read should be served from cache")
	require.Len(t, second, 1)
	assert.Equal(t, "Mapo Tofu", second[0].Name)
	assert.True(t, second[0].Price.Equal(decimal.RequireFromString("18.00")))
}

func TestListForCategory_EmptyIsNotCached(t *testing.T) {
	repo := newStubRepo()
	store := cache.NewMemory()
	svc := NewService(repo, store, time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		dishes, err := svc.ListForCategory(ctx, 9)
		require.NoError(t, err)
		assert.Empty(t, dishes)
	}
	assert.Equal(t, 2, repo.queryCount(9))
	assert.Equal(t, 0, store.Len())
}

func TestListForCategory_CacheDownReadsThrough(t *testing.T) {
	repo := newStubRepo()
	repo.seed("Fried Rice", 2, "12.00", StatusEnabled)
	store := &flakyStore{Store: cache.NewMemory(), failGet: true}
	svc := NewService(repo, store, time.Hour)

	dishes, err := svc.ListForCategory(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, dishes, 1)
}

func TestPreciseInvalidation_LeavesOtherCategories(t *testing.T) {
	repo := newStubRepo()
	c1 := repo.seed("Spring Rolls", 1, "9.00", StatusEnabled)
	repo.seed("Dumplings", 2, "15.00", StatusEnabled)
	svc := NewService(repo, cache.NewMemory(), time.Hour)
	ctx := context.Background()

	_, err := svc.ListForCategory(ctx, 1)
	require.NoError(t, err)
	_, err = svc.ListForCategory(ctx, 2)
	require.NoError(t, err)

	require.NoError(t, svc.SetStatus(ctx, 100, c1, StatusDisabled))

	got, err := svc.ListForCategory(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got, "category 1 must reflect the status change")
	assert.Equal(t, 2, repo.queryCount(1))

	_, err = svc.ListForCategory(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.queryCount(2), "category 2 should still be cached")
}

func TestCreate_InvalidatesOnlyItsCategory(t *testing.T) {
	repo := newStubRepo()
	repo.seed("Wonton Soup", 1, "11.00", StatusEnabled)
	repo.seed("Dumplings", 2, "15.00", StatusEnabled)
	svc := NewService(repo, cache.NewMemory(), time.Hour)
	ctx := context.Background()

	_, _ = svc.ListForCategory(ctx, 1)
	_, _ = svc.ListForCategory(ctx, 2)

	_, err := svc.Create(ctx, 100, DishRequest{Name: "Hot Pot", CategoryID: 1, Price: "58.00", Status: StatusEnabled})
	require.NoError(t, err)

	got, err := svc.ListForCategory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	_, _ = svc.ListForCategory(ctx, 2)
	assert.Equal(t, 1, repo.queryCount(2))
}

func TestBroadInvalidation_ClearsEveryCategory(t *testing.T) {
	repo := newStubRepo()
	a := repo.seed("Spring Rolls", 1, "9.00", StatusEnabled)
	repo.seed("Dumplings", 2, "15.00", StatusEnabled)
	svc := NewService(repo, cache.NewMemory(), time.Hour)
	ctx := context.Background()

	_, _ = svc.ListForCategory(ctx, 1)
	_, _ = svc.ListForCategory(ctx, 2)

	// moves the dish from category 1 to 2
	require.NoError(t, svc.Update(ctx, 100, DishRequest{ID: a, Name: "Spring Rolls", CategoryID: 2, Price: "9.50"}))

	one, err := svc.ListForCategory(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, one)
	two, err := svc.ListForCategory(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
	assert.Equal(t, 2, repo.queryCount(1))
	assert.Equal(t, 2, repo.queryCount(2))
}

func TestDelete_OnSaleRefusedAndCacheKept(t *testing.T) {
	repo := newStubRepo()
	a := repo.seed("Spring Rolls", 1, "9.00", StatusEnabled)
	svc := NewService(repo, cache.NewMemory(), time.Hour)
	ctx := context.Background()

	_, _ = svc.ListForCategory(ctx, 1)
	err := svc.Delete(ctx, []int64{a})
	require.ErrorIs(t, err, ErrDishOnSale)

	_, _ = svc.ListForCategory(ctx, 1)
	assert.Equal(t, 1, repo.queryCount(1))
}

func TestInvalidationFailure_IsSurfaced(t *testing.T) {
	repo := newStubRepo()
	a := repo.seed("Spring Rolls", 1, "9.00", StatusDisabled)
	store := &flakyStore{Store: cache.NewMemory(), failDelete: true}
	svc := NewService(repo, store, time.Hour)

	err := svc.Delete(context.Background(), []int64{a})
	require.ErrorIs(t, err, ErrStaleCache)
	_, gerr := repo.GetByID(context.Background(), a)
	assert.ErrorIs(t, gerr, ErrNotFound, "the datastore write still commits")
}

// downRepo is a datastore that is unreachable.
type downRepo struct{ *stubRepo }

var errConnRefused = errors.New("dial tcp: connection refused")

func (downRepo) ListByCategoryAndStatus(ctx context.Context, categoryID int64, status int) ([]Dish, error) {
	return nil, errConnRefused
}

func (downRepo) Create(ctx context.Context, d *Dish, actorID int64) error {
	return errConnRefused
}

func TestRepositoryFailure_IsTaggedAsStoreError(t *testing.T) {
	repo := downRepo{newStubRepo()}
	store := cache.NewMemory()
	svc := NewService(repo, store, time.Hour)
	ctx := context.Background()

	_, err := svc.ListForCategory(ctx, 1)
	require.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, errConnRefused)

	_, err = svc.Create(ctx, 1, DishRequest{Name: "Tea", CategoryID: 1, Price: "3.00"})
	assert.ErrorIs(t, err, ErrStore)

	err = svc.SetStatus(ctx, 1, 404, StatusEnabled)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStore, "known menu errors pass through untagged")
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newStubRepo(), cache.NewMemory(), time.Hour)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, DishRequest{Name: "", CategoryID: 1, Price: "1.00"})
	assert.ErrorIs(t, err, ErrInvalidDish)
	_, err = svc.Create(ctx, 1, DishRequest{Name: "Tea", CategoryID: 1, Price: "-1"})
	assert.ErrorIs(t, err, ErrInvalidDish)
	_, err = svc.Create(ctx, 1, DishRequest{Name: "Tea", Price: "3.00"})
	assert.ErrorIs(t, err, ErrInvalidDish)
	assert.ErrorIs(t, svc.SetStatus(ctx, 1, 1, 7), ErrInvalidDish)
}

func init() {
	log.SetOutput(io.Discard)
}
