package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/idcache"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Warn("cache backend error", idcache.Fields{"op": "get", "key": "k", "err": errors.New("down")})
	l.Debug("lost race", nil)

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.WarnLevel || e.LoggerName != "idcache" || e.Message != "cache backend error" {
		t.Fatalf("unexpected entry %+v", e.Entry)
	}
	ctx := e.ContextMap()
	if ctx["op"] != "get" || ctx["key"] != "k" || ctx["err"] != "down" {
		t.Fatalf("fields = %v", ctx)
	}
	if e.Context[0].Key != "err" || e.Context[2].Key != "op" {
		t.Fatalf("fields not sorted: %v", e.Context)
	}
}

func TestNewNil(t *testing.T) {
	New(nil).Error("ignored", idcache.Fields{"a": 1})
}
