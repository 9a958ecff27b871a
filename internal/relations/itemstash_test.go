package relations

import "testing"

func TestItemStash_AddGetRemove(t *testing.T) {
	s := NewItemStash()

	h := s.Add("hello")
	v, ok := s.Get(h)
	if !ok || v.(string) != "hello" {
		t.Fatalf("Get(%v) = (%v, %v), want (hello, true)", h, v, ok)
	}

	s.Remove(h)
	if _, ok := s.Get(h); ok {
		t.Fatalf("Get(%v) after Remove should report ok=false", h)
	}
}

func TestItemStash_ReusesSlotsWithNewGeneration(t *testing.T) {
	s := NewItemStash()

	h1 := s.Add("first")
	s.Remove(h1)
	h2 := s.Add("second")

	if h1.index != h2.index {
		t.Fatalf("expected slot reuse: h1.index=%d h2.index=%d", h1.index, h2.index)
	}
	if h1.gen == h2.gen {
		t.Fatalf("expected a bumped generation on reuse, both are %d", h1.gen)
	}

	// The stale handle must not alias the new occupant.
	if _, ok := s.Get(h1); ok {
		t.Fatal("stale handle h1 should not resolve after slot reuse")
	}
	v, ok := s.Get(h2)
	if !ok || v.(string) != "second" {
		t.Fatalf("Get(h2) = (%v, %v), want (second, true)", v, ok)
	}
}

func TestItemStash_RemoveUnknownHandleIsNoop(t *testing.T) {
	s := NewItemStash()
	s.Remove(Handle{index: 99, gen: 0}) // must not panic
}
