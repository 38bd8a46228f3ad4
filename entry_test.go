package idcache

import (
	"context"
	"testing"
	"time"

	"github.com/unkn0wn-root/idcache/backend/memory"
	"github.com/unkn0wn-root/idcache/codec"
)

func TestEntryRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	cd := codec.String{}

	e, err := Find[string](ctx, b, cd, "k")
	if err != nil || e.State() != Absent || e.Exists() {
		t.Fatalf("fresh slot: state=%v err=%v", e.State(), err)
	}
	if _, ok := e.Token(); ok {
		t.Fatalf("absent entry must not carry a token")
	}
	e.SetValue("hello")
	if ok, err := e.Save(ctx); err != nil || !ok {
		t.Fatalf("Save: ok=%v err=%v", ok, err)
	}

	e, _ = Find[string](ctx, b, cd, "k")
	if v, ok := e.Value(); !ok || v != "hello" || e.State() != Present {
		t.Fatalf("Find after Save: v=%q ok=%v state=%v", v, ok, e.State())
	}

	n := NewEntry[string](b, cd, "nil")
	n.SetNil()
	if ok, err := n.Save(ctx); err != nil || !ok {
		t.Fatalf("Save nil: ok=%v err=%v", ok, err)
	}
	n, _ = Find[string](ctx, b, cd, "nil")
	if !n.Exists() || n.State() != Nil {
		t.Fatalf("nil sentinel: state=%v", n.State())
	}
	if _, ok := n.Value(); ok {
		t.Fatalf("nil sentinel must not yield a value")
	}
}

func TestEntrySaveWithoutValue(t *testing.T) {
	e := NewEntry[string](memory.New(), codec.String{}, "k")
	if _, err := e.Save(context.Background()); err == nil {
		t.Fatalf("expected error saving an empty entry")
	}
}

func TestTombstoneBlocksStaleAdd(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	cd := codec.String{}

	// reader sees the slot empty and goes to the source of truth
	stale, _ := Find[string](ctx, b, cd, "k")

	// a writer commits and invalidates meanwhile
	if err := Delete(ctx, b, "k", time.Second); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	stale.SetValue("old")
	if ok, err := stale.Save(ctx); err != nil || ok {
		t.Fatalf("stale Add must lose: ok=%v err=%v", ok, err)
	}

	e, _ := Find[string](ctx, b, cd, "k")
	if e.State() != Tombstone || e.Exists() {
		t.Fatalf("tombstone: state=%v", e.State())
	}

	// a fresh reader replaces the tombstone by CAS
	e.SetValue("new")
	if ok, err := e.Save(ctx); err != nil || !ok {
		t.Fatalf("CAS over tombstone: ok=%v err=%v", ok, err)
	}
}

func TestTombstoneExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	b := memory.NewWithOptions(memory.Options{Now: func() time.Time { return now }})

	if err := Delete(ctx, b, "k", 10*time.Second); err != nil {
		t.Fatal(err)
	}
	now = now.Add(11 * time.Second)
	e, _ := Find[string](ctx, b, codec.String{}, "k")
	if e.State() != Absent {
		t.Fatalf("expired tombstone must read as absent, got %v", e.State())
	}
}

func TestCASLosesToConcurrentWriter(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	cd := codec.String{}

	seed := NewEntry[string](b, cd, "k")
	seed.SetValue("v1")
	if ok, _ := seed.Save(ctx); !ok {
		t.Fatal("seed")
	}

	a, _ := Find[string](ctx, b, cd, "k")
	c, _ := Find[string](ctx, b, cd, "k")
	a.SetValue("a")
	c.SetValue("c")
	if ok, err := a.Save(ctx); err != nil || !ok {
		t.Fatalf("first CAS: ok=%v err=%v", ok, err)
	}
	if ok, err := c.Save(ctx); err != nil || ok {
		t.Fatalf("second CAS must lose: ok=%v err=%v", ok, err)
	}
	got, _ := Find[string](ctx, b, cd, "k")
	if v, _ := got.Value(); v != "a" {
		t.Fatalf("winner value = %q", v)
	}
}

func TestCorruptEntryIsOverwritten(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	if err := b.Set(ctx, "k", []byte("garbage"), time.Minute); err != nil {
		t.Fatal(err)
	}

	e, err := Find[string](ctx, b, codec.String{}, "k")
	if err != nil || !e.Corrupt() || e.Exists() {
		t.Fatalf("corrupt: corrupt=%v exists=%v err=%v", e.Corrupt(), e.Exists(), err)
	}
	if _, ok := e.Token(); !ok {
		t.Fatalf("corrupt entry must keep its token")
	}
	e.SetValue("fixed")
	if ok, err := e.Save(ctx); err != nil || !ok {
		t.Fatalf("repair Save: ok=%v err=%v", ok, err)
	}
	e, _ = Find[string](ctx, b, codec.String{}, "k")
	if v, ok := e.Value(); !ok || v != "fixed" {
		t.Fatalf("after repair: %q %v", v, ok)
	}
}

func TestFetchReportsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, record{ID: 1, Title: "bob"})
	if err := f.backend.Backend.Set(ctx, f.records.BlobKey(1), []byte{0xff}, time.Minute); err != nil {
		t.Fatal(err)
	}
	got, ok, err := f.records.FetchByID(ctx, 1)
	if err != nil || !ok || got.Title != "bob" {
		t.Fatalf("FetchByID: got=%+v ok=%v err=%v", got, ok, err)
	}
	if f.hooks.get("corrupt") != 1 || f.backend.count("cas") != 1 {
		t.Fatalf("corrupt slot must be reported and repaired by CAS: hooks=%v ops=%v", f.hooks.counts, f.backend.ops)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{Absent: "absent", Tombstone: "tombstone", Nil: "nil", Present: "present"} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
