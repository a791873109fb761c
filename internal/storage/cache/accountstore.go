// Package cache adds a Redis read-aside layer in front of an account store.
package cache

import (
	"context"
	"fmt"
	"time"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-wakeup-service/pkg/wakeup"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or an error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedAccountStore is a decorator that adds read-aside caching to any
// wakeup.AccountStore. Persist writes through to the real store and
// invalidates, so a reconciliation or re-registration is visible to the
// next Lookup immediately.
type CachedAccountStore struct {
	realStore wakeup.AccountStore
	cache     CacheClient
	ttl       time.Duration
}

func NewCachedAccountStore(realStore wakeup.AccountStore, cache CacheClient, ttl time.Duration) *CachedAccountStore {
	return &CachedAccountStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

func (s *CachedAccountStore) Lookup(ctx context.Context, id urn.URN) (*wakeup.Account, error) {
	key := s.cacheKey(id)

	var cached wakeup.Account
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	account, err := s.realStore.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	// Caching is an optimization, not a transaction: if Redis is down we
	// just keep serving from the real store.
	_ = s.cache.Set(ctx, key, account, s.ttl)

	return account, nil
}

func (s *CachedAccountStore) Persist(ctx context.Context, account *wakeup.Account) error {
	if err := s.realStore.Persist(ctx, account); err != nil {
		return err
	}
	// The next Lookup is forced back to the source of truth. Token clears
	// must take effect immediately, not when the TTL expires.
	return s.cache.Del(ctx, s.cacheKey(account.ID))
}

func (s *CachedAccountStore) cacheKey(id urn.URN) string {
	return fmt.Sprintf("wakeup:accounts:%s", id.String())
}
