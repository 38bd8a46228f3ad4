package keylock

import (
	"sync"
	"testing"
)

func TestForIsStable(t *testing.T) {
	s := New(16)
	if s.For("blob:Record:1") != s.For("blob:Record:1") {
		t.Fatalf("same key must map to the same stripe")
	}
}

func TestDefaultStripes(t *testing.T) {
	if got := len(New(0).mu); got != defaultStripes {
		t.Fatalf("stripes = %d, want %d", got, defaultStripes)
	}
}

func TestDoSerializesSameKey(t *testing.T) {
	s := New(4)
	var wg sync.WaitGroup
	n := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Do("k", func() { n++ })
		}()
	}
	wg.Wait()
	if n != 100 {
		t.Fatalf("n = %d, want 100", n)
	}
}
