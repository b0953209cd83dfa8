// Package shop stores the storefront's open/closed flag in the cache service.
package shop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/MikeMC777/sky-takeout/internal/cache"
)

const Key = "SHOP_STATUS"

type Status int

const (
	Closed Status = 0
	Open   Status = 1
)

var ErrInvalidStatus = errors.New("shop status must be 0 or 1")

func (s Status) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

type Service struct {
	store cache.Store
}

func NewService(store cache.Store) *Service {
	return &Service{store: store}
}

// Set writes the flag with no expiry and returns only after the cache has
// acknowledged it.
func (s *Service) Set(ctx context.Context, st Status) error {
	if st != Open && st != Closed {
		return ErrInvalidStatus
	}
	if err := s.store.Set(ctx, Key, []byte(strconv.Itoa(int(st))), 0); err != nil {
		return fmt.Errorf("set shop status: %w", err)
	}
	log.Printf("[shop] status set to %s", st)
	return nil
}

// Get reads the flag; a shop that was never opened reads as Closed.
func (s *Service) Get(ctx context.Context) (Status, error) {
	b, err := s.store.Get(ctx, Key)
	if errors.Is(err, cache.ErrMiss) {
		return Closed, nil
	}
	if err != nil {
		return Closed, fmt.Errorf("get shop status: %w", err)
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return Closed, fmt.Errorf("corrupt shop status %q: %w", b, err)
	}
	return Status(n), nil
}
