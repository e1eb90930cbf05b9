package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestMemory() (*Memory, *clock) {
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory()
	m.now = c.now
	return m, c
}

func TestMemory_SetGetExpire(t *testing.T) {
	m, clk := newTestMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get = %q %v %v", got, ok, err)
	}

	clk.t = clk.t.Add(time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("entry should expire after its ttl")
	}

	_ = m.Set(ctx, "forever", []byte("x"), 0)
	clk.t = clk.t.Add(1000 * time.Hour)
	if _, ok, _ := m.Get(ctx, "forever"); !ok {
		t.Fatalf("ttl <= 0 must not expire")
	}
	_ = m.Delete(ctx, "forever")
	if _, ok, _ := m.Get(ctx, "forever"); ok {
		t.Fatalf("Delete did not remove the key")
	}
}

func TestMemory_Incr(t *testing.T) {
	m, clk := newTestMemory()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, left, err := m.Incr(ctx, "daily:u1", 24*time.Hour)
		if err != nil || n != want {
			t.Fatalf("Incr #%d = %d err=%v", want, n, err)
		}
		if left != 24*time.Hour {
			t.Fatalf("ttl should be fixed at creation, got %v", left)
		}
	}

	clk.t = clk.t.Add(time.Hour)
	if _, left, _ := m.Incr(ctx, "daily:u1", 24*time.Hour); left != 23*time.Hour {
		t.Fatalf("later increments keep the original expiry, got %v", left)
	}

	clk.t = clk.t.Add(23 * time.Hour)
	if n, _, _ := m.Incr(ctx, "daily:u1", 24*time.Hour); n != 1 {
		t.Fatalf("counter should reset after expiry, got %d", n)
	}
}

func TestMemory_ConcurrentIncr(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = m.Incr(ctx, "k", time.Hour)
		}()
	}
	wg.Wait()
	n, _, _ := m.Incr(ctx, "k", time.Hour)
	if n != 51 {
		t.Fatalf("expected 51 after concurrent increments, got %d", n)
	}
}

func TestJSONHelpers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var out []string
	if err := GetJSON(ctx, m, "missing", &out); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
	if err := SetJSON(ctx, m, "list", []string{"a", "b"}, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	if err := GetJSON(ctx, m, "list", &out); err != nil || len(out) != 2 || out[1] != "b" {
		t.Fatalf("GetJSON = %v err=%v", out, err)
	}
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Redis)(nil)
)
