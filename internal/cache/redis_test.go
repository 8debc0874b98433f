package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()

	c, err := NewRedis(ctx, addr, os.Getenv("REDIS_TEST_PASSWORD"), 0)
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	defer c.Close()

	key := "dispatch:test:" + uuid.NewString()
	if _, found, err := c.Get(ctx, key); err != nil || found {
		t.Fatalf("Get() on missing key = %v, %v", found, err)
	}
	if err := c.Set(ctx, key, "rows", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if value, found, err := c.Get(ctx, key); err != nil || !found || value != "rows" {
		t.Fatalf("Get() = %q, %v, %v", value, found, err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, _ := c.Get(ctx, key); found {
		t.Fatal("Get() after Delete() still hits")
	}
}
