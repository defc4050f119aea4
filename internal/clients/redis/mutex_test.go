package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/asset-registry/internal/domain/registry"
	"github.com/yungbote/asset-registry/internal/platform/logger"
	"github.com/yungbote/asset-registry/internal/platform/resmutex"
)

func testClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb, err := NewClient(logger.Nop(), Config{Addr: addr})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisMutex(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	prefix := "test:mutex:" + registry.NewID() + ":"
	m, err := NewMutex(logger.Nop(), rdb, prefix, resmutex.Options{
		TTL:       time.Second,
		Wait:      50 * time.Millisecond,
		RetryBase: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewMutex: %v", err)
	}

	lease, err := m.Acquire(ctx, "asset-1", "issue")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got, _ := rdb.Get(ctx, prefix+"asset-1").Result(); got != lease.Token {
		t.Fatalf("stored token %q, want %q", got, lease.Token)
	}
	if _, err := m.Acquire(ctx, "asset-1", "burn"); !errors.Is(err, resmutex.ErrUnavailable) {
		t.Fatalf("second Acquire: expected ErrUnavailable, got %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if n, _ := rdb.Exists(ctx, prefix+"asset-1").Result(); n != 0 {
		t.Fatalf("key still present after release")
	}

	// A lease whose key was taken over must not delete the new holder's key.
	stale, err := m.Acquire(ctx, "asset-2", "update")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := rdb.Set(ctx, prefix+"asset-2", "someone-else", time.Second).Err(); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	_ = stale.Release(ctx)
	if got, _ := rdb.Get(ctx, prefix+"asset-2").Result(); got != "someone-else" {
		t.Fatalf("stale release removed the new holder, got %q", got)
	}
}
