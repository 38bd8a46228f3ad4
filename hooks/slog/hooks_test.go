package sloghook

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBuf() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRedactsKeys(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{})
	h.BackendError("get", "blob:Record:abc:1", errors.New("down"))

	out := buf.String()
	if strings.Contains(out, "blob:Record") {
		t.Fatalf("raw key leaked: %s", out)
	}
	if !strings.Contains(out, "idcache.backend_error") || !strings.Contains(out, "op=get") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestSamplesReads(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{ReadEvery: 3, Redact: func(k string) string { return k }})
	for i := 0; i < 9; i++ {
		h.Hit("k")
	}
	if n := strings.Count(buf.String(), "idcache.hit"); n != 3 {
		t.Fatalf("logged %d hits, want 3", n)
	}
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.Hit("k")
	h.TombstoneFailed("k", errors.New("x"))
}
