package ristretto

import (
	"context"
	"testing"
	"time"
)

func TestCacheSetGetDelete(t *testing.T) {
	c, err := New(1 << 20)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer c.Close()

	ctx := context.Background()

	if err := c.Set(ctx, "roles", []byte(`["planner"]`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	c.c.Wait() // ristretto applies writes asynchronously

	got, ok, err := c.Get(ctx, "roles")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if string(got) != `["planner"]` {
		t.Fatalf("unexpected value %q", got)
	}

	if err := c.Delete(ctx, "roles"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	c.c.Wait()

	if _, ok, _ := c.Get(ctx, "roles"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestCacheMiss(t *testing.T) {
	c, err := New(1 << 20)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer c.Close()

	if _, ok, _ := c.Get(context.Background(), "absent"); ok {
		t.Fatal("expected miss")
	}
}
