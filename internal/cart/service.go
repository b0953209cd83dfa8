package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/MikeMC777/sky-takeout/internal/menu"
)

var (
	ErrDishUnavailable = errors.New("dish is not on sale")
	ErrStore           = errors.New("cart store failure")
)

// store tags err as a datastore failure unless it already carries a cart or
// menu kind.
func store(op string, err error) error {
	for _, known := range []error{ErrNotFound, ErrDishUnavailable, ErrStore, menu.ErrNotFound, menu.ErrStore} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// DishLookup is the slice of the menu the cart needs for pricing.
type DishLookup interface {
	GetByID(ctx context.Context, id int64) (*menu.Dish, error)
}

type Service struct {
	repo   Repository
	dishes DishLookup
	now    func() time.Time
}

func NewService(repo Repository, dishes DishLookup) *Service {
	return &Service{repo: repo, dishes: dishes, now: time.Now}
}

func flavorOf(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Add puts one unit of a dish in the cart. The same dish with the same flavor
// choice bumps the existing line instead of creating another.
func (s *Service) Add(ctx context.Context, userID int64, req AddRequest) (*Line, error) {
	flavor := flavorOf(req.Flavor)

	cur, err := s.repo.Find(ctx, userID, req.DishID, flavor)
	switch {
	case err == nil:
		cur.SetQuantity(cur.Quantity + 1)
		if err := s.repo.UpdateQuantity(ctx, cur.ID, cur.Quantity, cur.Amount); err != nil {
			return nil, store("bump line", err)
		}
		return cur, nil
	case !errors.Is(err, ErrNotFound):
		return nil, store("find line", err)
	}

	d, err := s.dishes.GetByID(ctx, req.DishID)
	if err != nil {
		return nil, store("load dish", err)
	}
	if d.Status != menu.StatusEnabled {
		return nil, fmt.Errorf("%w: %s", ErrDishUnavailable, d.Name)
	}
	l := &Line{
		UserID:    userID,
		DishID:    d.ID,
		Name:      d.Name,
		Image:     d.Image,
		Flavor:    flavor,
		UnitPrice: d.Price,
		CreatedAt: s.now(),
	}
	l.SetQuantity(1)
	if err := s.repo.Insert(ctx, l); err != nil {
		return nil, store("insert line", err)
	}
	return l, nil
}

// Subtract removes one unit, dropping the line when it reaches zero.
func (s *Service) Subtract(ctx context.Context, userID int64, req AddRequest) error {
	cur, err := s.repo.Find(ctx, userID, req.DishID, flavorOf(req.Flavor))
	if err != nil {
		return store("find line", err)
	}
	if cur.Quantity > 1 {
		cur.SetQuantity(cur.Quantity - 1)
		if err := s.repo.UpdateQuantity(ctx, cur.ID, cur.Quantity, cur.Amount); err != nil {
			return store("drop unit", err)
		}
		return nil
	}
	if err := s.repo.Delete(ctx, cur.ID); err != nil {
		return store("delete line", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]Line, error) {
	lines, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, store("list lines", err)
	}
	return lines, nil
}

func (s *Service) Clean(ctx context.Context, userID int64) error {
	n, err := s.repo.DeleteByOwner(ctx, userID)
	if err != nil {
		return store("clear cart", err)
	}
	log.Printf("[cart] user=%d cleared %d lines", userID, n)
	return nil
}
