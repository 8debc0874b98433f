package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestMemoryExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	c := NewMemory(clock.Now)
	ctx := context.Background()

	if err := c.Set(ctx, "sheet:Stations", "[]", 30*time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.now = clock.now.Add(29 * time.Second)
	if _, found, _ := c.Get(ctx, "sheet:Stations"); !found {
		t.Fatalf("Get() expected hit before ttl")
	}

	clock.now = clock.now.Add(time.Second)
	if _, found, _ := c.Get(ctx, "sheet:Stations"); found {
		t.Fatalf("Get() expected miss once ttl elapsed")
	}
}

func TestMemoryDelete(t *testing.T) {
	c := NewMemory(nil)
	ctx := context.Background()

	_ = c.Set(ctx, "a", "1", 0)
	_ = c.Set(ctx, "b", "2", 0)
	if err := c.Delete(ctx, "a", "b", "missing"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, _ := c.Get(ctx, "a"); found {
		t.Fatalf("Get(a) expected miss after delete")
	}
	if _, found, _ := c.Get(ctx, "b"); found {
		t.Fatalf("Get(b) expected miss after delete")
	}
}
