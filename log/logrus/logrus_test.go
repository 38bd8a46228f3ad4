package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/idcache"
)

func TestLogrusLogger(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	boom := errors.New("down")
	l.Error("invalidation incomplete", idcache.Fields{"entity": "Record", "err": boom})

	e := hook.LastEntry()
	if e == nil || e.Level != logrus.ErrorLevel || e.Message != "invalidation incomplete" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.Data["component"] != "idcache" || e.Data["entity"] != "Record" || e.Data[logrus.ErrorKey] != boom {
		t.Fatalf("fields = %v", e.Data)
	}

	l.Debug("lost race", nil)
	if len(hook.AllEntries()) != 2 {
		t.Fatalf("debug entry missing")
	}
}
