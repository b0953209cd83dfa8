// Package cache is the TTL key-value service in front of hot reads.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMiss = errors.New("cache miss")
)

// Store is a TTL-capable key-value cache. Get reports an absent or expired
// key as ErrMiss; any other error means the cache itself failed.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores val under key. A ttl of zero keeps the entry until deleted.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Invalidation names what a write made stale: one key, or every key under a
// prefix. Build one with Exact or Scope.
type Invalidation struct {
	target string
	scope  bool
}

func Exact(key string) Invalidation { return Invalidation{target: key} }

func Scope(prefix string) Invalidation { return Invalidation{target: prefix, scope: true} }

func (i Invalidation) IsScope() bool { return i.scope }

func (i Invalidation) Target() string { return i.target }

func (i Invalidation) String() string {
	if i.scope {
		return fmt.Sprintf("scope %q", i.target)
	}
	return fmt.Sprintf("key %q", i.target)
}

// Invalidate applies inv to s.
func Invalidate(ctx context.Context, s Store, inv Invalidation) error {
	if inv.target == "" {
		return errors.New("cache: empty invalidation target")
	}
	if inv.scope {
		return s.DeletePrefix(ctx, inv.target)
	}
	return s.Delete(ctx, inv.target)
}
