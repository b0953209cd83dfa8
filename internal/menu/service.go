package menu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/sky-takeout/internal/cache"
)

// KeyPrefix scopes every cached category listing.
const KeyPrefix = "dish_"

var (
	ErrInvalidDish = errors.New("invalid dish")
	// ErrStaleCache means the write committed but its cache entries could not
	// be dropped; readers may see old data until the TTL runs out.
	ErrStaleCache = errors.New("menu cache invalidation failed")
	// ErrStore tags a datastore failure behind a menu operation.
	ErrStore = errors.New("menu store failure")
)

// store tags err as a datastore failure unless it is already a menu error.
func store(op string, err error) error {
	for _, known := range []error{ErrNotFound, ErrDishOnSale, ErrInvalidDish, ErrStaleCache, ErrStore} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func CategoryKey(categoryID int64) string {
	return KeyPrefix + strconv.FormatInt(categoryID, 10)
}

type Service struct {
	repo  Repository
	cache cache.Store
	ttl   time.Duration
}

func NewService(repo Repository, store cache.Store, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: store, ttl: ttl}
}

// ListForCategory returns the on-sale dishes of a category, serving from
// cache when it can. A failing cache degrades to a direct repository read.
func (s *Service) ListForCategory(ctx context.Context, categoryID int64) ([]Dish, error) {
	key := CategoryKey(categoryID)

	cacheUp := true
	b, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var dishes []Dish
		if jerr := json.Unmarshal(b, &dishes); jerr == nil {
			return dishes, nil
		}
		log.Printf("[menu] undecodable entry %s, reloading", key)
	case errors.Is(err, cache.ErrMiss):
	default:
		cacheUp = false
		log.Printf("[menu] cache read %s failed, reading through: %v", key, err)
	}

	dishes, err := s.repo.ListByCategoryAndStatus(ctx, categoryID, StatusEnabled)
	if err != nil {
		return nil, store("list dishes", err)
	}
	// nothing is cached for an empty result, so absent and empty stay the same thing
	if len(dishes) == 0 || !cacheUp {
		return dishes, nil
	}
	data, err := json.Marshal(dishes)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		log.Printf("[menu] warning: failed to populate %s: %v", key, err)
	}
	return dishes, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Dish, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, store("load dish", err)
	}
	return d, nil
}

func (s *Service) Page(ctx context.Context, q Query) ([]Dish, error) {
	dishes, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, store("page dishes", err)
	}
	return dishes, nil
}

func (s *Service) Create(ctx context.Context, actorID int64, req DishRequest) (*Dish, error) {
	d, err := fromRequest(req)
	if err != nil {
		return nil, err
	}
	if d.CategoryID <= 0 {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidDish)
	}
	if err := s.repo.Create(ctx, d, actorID); err != nil {
		return nil, store("create dish", err)
	}
	log.Printf("[menu] dish %d created in category %d", d.ID, d.CategoryID)
	return d, s.invalidate(ctx, cache.Exact(CategoryKey(d.CategoryID)))
}

// Update may move a dish between categories, so it drops every listing.
func (s *Service) Update(ctx context.Context, actorID int64, req DishRequest) error {
	d, err := fromRequest(req)
	if err != nil {
		return err
	}
	if d.ID <= 0 {
		return fmt.Errorf("%w: id is required", ErrInvalidDish)
	}
	if err := s.repo.Update(ctx, d, actorID); err != nil {
		return store("update dish", err)
	}
	log.Printf("[menu] dish %d updated", d.ID)
	return s.invalidate(ctx, cache.Scope(KeyPrefix))
}

// Delete removes dishes that may span categories, so it drops every listing.
func (s *Service) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no ids", ErrInvalidDish)
	}
	if err := s.repo.DeleteBatch(ctx, ids); err != nil {
		return store("delete dishes", err)
	}
	log.Printf("[menu] dishes %v deleted", ids)
	return s.invalidate(ctx, cache.Scope(KeyPrefix))
}

func (s *Service) SetStatus(ctx context.Context, actorID, id int64, status int) error {
	if status != StatusEnabled && status != StatusDisabled {
		return fmt.Errorf("%w: status %d", ErrInvalidDish, status)
	}
	categoryID, err := s.repo.SetStatus(ctx, id, status, actorID)
	if err != nil {
		return store("set dish status", err)
	}
	log.Printf("[menu] dish %d status=%d", id, status)
	return s.invalidate(ctx, cache.Exact(CategoryKey(categoryID)))
}

func (s *Service) invalidate(ctx context.Context, inv cache.Invalidation) error {
	if err := cache.Invalidate(ctx, s.cache, inv); err != nil {
		log.Printf("[menu] ALERT cache invalidation of %s failed: %v", inv, err)
		return fmt.Errorf("%w: %s: %v", ErrStaleCache, inv, err)
	}
	log.Printf("[menu] invalidated %s", inv)
	return nil
}

func fromRequest(req DishRequest) (*Dish, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidDish)
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || !price.IsPositive() {
		return nil, fmt.Errorf("%w: price %q", ErrInvalidDish, req.Price)
	}
	return &Dish{
		ID:          req.ID,
		Name:        strings.TrimSpace(req.Name),
		CategoryID:  req.CategoryID,
		Price:       price,
		Image:       req.Image,
		Description: req.Description,
		Status:      req.Status,
		Flavors:     req.Flavors,
	}, nil
}
