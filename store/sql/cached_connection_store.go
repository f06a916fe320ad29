package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-spapi-push/core"
)

const connectionCacheKeyPrefix = "spapi-push::connection::v1"

// CachedConnectionStore fronts connection reads with a cache. Connections
// are read on every job advance but change only on connect and
// disconnect, so writes invalidate and reads populate.
type CachedConnectionStore struct {
	base  core.ConnectionStore
	cache repositorycache.CacheService
}

func NewCachedConnectionStore(
	base core.ConnectionStore,
	cacheService repositorycache.CacheService,
) (*CachedConnectionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base connection store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: connection cache service is required")
	}
	return &CachedConnectionStore{base: base, cache: cacheService}, nil
}

// ConnectionCacheKey is the deterministic cache key contract for
// connection reads: spapi-push::connection::v1::<user_id> with the user
// id URL-path escaped.
func ConnectionCacheKey(userID string) (string, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: user id is required")
	}
	return connectionCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachedConnectionStore) Upsert(ctx context.Context, connection core.Connection) (core.Connection, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: cached connection store is not configured")
	}
	stored, err := s.base.Upsert(ctx, connection)
	if err != nil {
		return core.Connection{}, err
	}
	cacheKey, err := ConnectionCacheKey(stored.UserID)
	if err != nil {
		return core.Connection{}, err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.Connection{}, err
	}
	return stored, nil
}

func (s *CachedConnectionStore) GetByUser(ctx context.Context, userID string) (core.Connection, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: cached connection store is not configured")
	}
	cacheKey, err := ConnectionCacheKey(userID)
	if err != nil {
		return core.Connection{}, err
	}
	connection, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Connection, error) {
		return s.base.GetByUser(ctx, userID)
	})
	if err != nil {
		return core.Connection{}, err
	}
	return connection, nil
}

func (s *CachedConnectionStore) Delete(ctx context.Context, userID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached connection store is not configured")
	}
	if err := s.base.Delete(ctx, userID); err != nil {
		return err
	}
	cacheKey, err := ConnectionCacheKey(userID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.ConnectionStore = (*CachedConnectionStore)(nil)
