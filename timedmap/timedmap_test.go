package timedmap

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	m := New[string, int](0, 0, nil)
	if !m.Set("a", 1) {
		t.Fatal("Set refused unbounded insert")
	}
	v, ok := m.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get = %d, %v, want 1, true", v, ok)
	}
}

func TestCapacityBound(t *testing.T) {
	m := New[string, int](1, 0, nil)
	if !m.Set("a", 1) {
		t.Fatal("first Set should succeed")
	}
	if m.Set("b", 2) {
		t.Fatal("Set beyond capacity should be refused")
	}
	if !m.Set("a", 2) {
		t.Fatal("overwriting an existing key should always succeed")
	}
}

func TestTTLExpiry(t *testing.T) {
	clock := time.Now()
	m := New[string, int](0, time.Second, nil)
	m.withClock(func() time.Time { return clock })

	m.Set("a", 1)
	clock = clock.Add(2 * time.Second)

	if _, ok := m.Get("a"); ok {
		t.Fatal("entry should have expired")
	}
}

func TestCopyFnIsolatesValue(t *testing.T) {
	type box struct{ n int }
	cp := func(b *box) *box { c := *b; return &c }
	m := New[string, *box](0, 0, cp)

	orig := &box{n: 1}
	m.Set("a", orig)
	orig.n = 99

	v, _ := m.Get("a")
	if v.n != 1 {
		t.Fatalf("stored value aliases caller's box: got n=%d", v.n)
	}
}

func TestForEachEvictsExpired(t *testing.T) {
	clock := time.Now()
	m := New[string, int](0, time.Second, nil)
	m.withClock(func() time.Time { return clock })

	m.Set("a", 1)
	clock = clock.Add(2 * time.Second)
	m.Set("b", 2)

	seen := map[string]int{}
	m.ForEach(func(k string, v int) { seen[k] = v })

	if _, ok := seen["a"]; ok {
		t.Fatal("ForEach delivered an expired entry")
	}
	if seen["b"] != 2 {
		t.Fatalf("ForEach missed live entry: %v", seen)
	}
}
