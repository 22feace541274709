package local

import (
	"context"
	"testing"
	"time"
)

func TestSetGetDel(t *testing.T) {
	ctx := context.Background()
	p := New(0)
	t.Cleanup(func() { _ = p.Close(ctx) })

	if _, ok, err := p.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "k", []byte("v"), 1, 0); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	b, ok, err := p.Get(ctx, "k")
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("Get: b=%q ok=%v err=%v", b, ok, err)
	}
	if err := p.Del(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := p.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after Del")
	}
}

func TestTTLExpiresLazily(t *testing.T) {
	ctx := context.Background()
	p := New(0)
	t.Cleanup(func() { _ = p.Close(ctx) })

	if _, err := p.Set(ctx, "short", []byte("x"), 1, 30*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := p.Get(ctx, "short"); !ok {
		t.Fatalf("expected hit before expiry")
	}
	time.Sleep(50 * time.Millisecond)
	if _, ok, _ := p.Get(ctx, "short"); ok {
		t.Fatalf("expected miss after expiry")
	}
	if p.Len() != 0 {
		t.Fatalf("expired entry should have been dropped on read, len=%d", p.Len())
	}
}

func TestCleanupPrunesExpired(t *testing.T) {
	ctx := context.Background()
	p := New(0)
	t.Cleanup(func() { _ = p.Close(ctx) })

	if _, err := p.Set(ctx, "old", []byte("x"), 1, 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Set(ctx, "keep", []byte("y"), 1, 0); err != nil {
		t.Fatal(err)
	}
	time.Sleep(40 * time.Millisecond)
	p.Cleanup()

	if p.Len() != 1 {
		t.Fatalf("Cleanup should keep only the unexpired entry, len=%d", p.Len())
	}
	if _, ok, _ := p.Get(ctx, "keep"); !ok {
		t.Fatalf("no-TTL entry must survive Cleanup")
	}
}
