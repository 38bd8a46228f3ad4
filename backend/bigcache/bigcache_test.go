package bigcache

import (
	"context"
	"testing"
	"time"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(context.Background(), Config{LifeWindow: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func TestAddGetCAS(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	if _, ok, err := b.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if ok, err := b.Add(ctx, "k", []byte("v1")); err != nil || !ok {
		t.Fatalf("Add: ok=%v err=%v", ok, err)
	}
	if ok, _ := b.Add(ctx, "k", []byte("v2")); ok {
		t.Fatalf("Add over an existing entry must fail")
	}

	it, ok, err := b.Get(ctx, "k")
	if err != nil || !ok || string(it.Value) != "v1" {
		t.Fatalf("Get: ok=%v err=%v val=%q", ok, err, it.Value)
	}
	if ok, err := b.CAS(ctx, "k", []byte("v2"), it.Token); err != nil || !ok {
		t.Fatalf("CAS: ok=%v err=%v", ok, err)
	}
	if ok, _ := b.CAS(ctx, "k", []byte("v3"), it.Token); ok {
		t.Fatalf("CAS with stale token must fail")
	}
}

func TestSetBlocksAdd(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	if err := b.Set(ctx, "k", []byte("tomb"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ok, _ := b.Add(ctx, "k", []byte("v")); ok {
		t.Fatalf("Add must fail while a live entry exists")
	}
}
