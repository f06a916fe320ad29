package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-spapi-push/core"
)

type stubConnectionStore struct {
	mu          sync.Mutex
	connection  core.Connection
	getCalls    int
	upsertCalls int
	deleteCalls int
	getErr      error
}

func (s *stubConnectionStore) Upsert(_ context.Context, connection core.Connection) (core.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	s.connection = connection
	return connection, nil
}

func (s *stubConnectionStore) GetByUser(_ context.Context, _ string) (core.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return core.Connection{}, s.getErr
	}
	return s.connection, nil
}

func (s *stubConnectionStore) Delete(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	return nil
}

func TestCachedConnectionStore_Get_MissFetchThenHit(t *testing.T) {
	cacheService := newTestConnectionCacheService(t)
	base := &stubConnectionStore{
		connection: core.Connection{
			ID:       "conn_1",
			UserID:   "usr_cache_1",
			SellerID: "SELLER123",
			Mode:     core.ConnectionModeOAuth,
		},
	}

	store, err := NewCachedConnectionStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached connection store: %v", err)
	}

	if _, err := store.GetByUser(context.Background(), "usr_cache_1"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected first get to fetch base store once, got %d", base.getCalls)
	}

	if _, err := store.GetByUser(context.Background(), "usr_cache_1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected second get to be cache hit, base get calls=%d", base.getCalls)
	}
}

func TestCachedConnectionStore_WritesInvalidateCachedKey(t *testing.T) {
	cacheService := newTestConnectionCacheService(t)
	base := &stubConnectionStore{
		connection: core.Connection{
			ID:       "conn_2",
			UserID:   "usr_cache_2",
			SellerID: "SELLER_OLD",
			Mode:     core.ConnectionModeOAuth,
		},
	}
	store, err := NewCachedConnectionStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached connection store: %v", err)
	}

	if _, err := store.GetByUser(context.Background(), "usr_cache_2"); err != nil {
		t.Fatalf("prime cache with get: %v", err)
	}

	if _, err := store.Upsert(context.Background(), core.Connection{
		ID:       "conn_2",
		UserID:   "usr_cache_2",
		SellerID: "SELLER_NEW",
		Mode:     core.ConnectionModeOAuth,
	}); err != nil {
		t.Fatalf("upsert through cached store: %v", err)
	}
	if base.upsertCalls != 1 {
		t.Fatalf("expected base upsert call count=1, got %d", base.upsertCalls)
	}

	connection, err := store.GetByUser(context.Background(), "usr_cache_2")
	if err != nil {
		t.Fatalf("get after upsert invalidation: %v", err)
	}
	if base.getCalls != 2 {
		t.Fatalf("expected invalidated key to force second base read, got %d", base.getCalls)
	}
	if connection.SellerID != "SELLER_NEW" {
		t.Fatalf("expected refreshed seller id, got %q", connection.SellerID)
	}

	if err := store.Delete(context.Background(), "usr_cache_2"); err != nil {
		t.Fatalf("delete through cached store: %v", err)
	}
	if base.deleteCalls != 1 {
		t.Fatalf("expected base delete call count=1, got %d", base.deleteCalls)
	}
	if _, err := store.GetByUser(context.Background(), "usr_cache_2"); err != nil {
		t.Fatalf("get after delete invalidation: %v", err)
	}
	if base.getCalls != 3 {
		t.Fatalf("expected delete to invalidate the cached key, base get calls=%d", base.getCalls)
	}
}

func TestConnectionCacheKey_Contract(t *testing.T) {
	key, err := ConnectionCacheKey(" usr/alpha team ")
	if err != nil {
		t.Fatalf("build cache key: %v", err)
	}

	const expected = "spapi-push::connection::v1::usr%2Falpha%20team"
	if key != expected {
		t.Fatalf("unexpected cache key contract: got %q want %q", key, expected)
	}

	if _, err := ConnectionCacheKey("   "); err == nil {
		t.Fatalf("expected empty user id to be rejected")
	}
}

func TestCachedConnectionStore_PropagatesBaseErrors(t *testing.T) {
	cacheService := newTestConnectionCacheService(t)
	base := &stubConnectionStore{getErr: core.ErrConnectionNotFound}
	store, err := NewCachedConnectionStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached connection store: %v", err)
	}

	_, err = store.GetByUser(context.Background(), "usr_cache_404")
	if !errors.Is(err, core.ErrConnectionNotFound) {
		t.Fatalf("expected base error propagation, got %v", err)
	}
}

func newTestConnectionCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
