package handler

import (
	"testing"
	"time"
)

func TestWizardRegistryExpiresIdleWizards(t *testing.T) {
	var evicted []string
	r := NewWizardRegistry(time.Minute, func(w string) { evicted = append(evicted, w) })
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	a := r.Add("a")
	b := r.Add("b")

	now = now.Add(45 * time.Second)
	if w, ok := r.Get(a); !ok || w != "a" {
		t.Fatalf("Get(a) = %q, %v", w, ok)
	}

	// b has been idle longer than the TTL, a was touched above.
	now = now.Add(30 * time.Second)
	if _, ok := r.Get(b); ok {
		t.Fatal("expected b to expire")
	}
	if _, ok := r.Get(a); !ok {
		t.Fatal("a should still be alive")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v, want [b]", evicted)
	}
}

func TestWizardRegistryRemove(t *testing.T) {
	var evicted int
	r := NewWizardRegistry(0, func(int) { evicted++ })
	id := r.Add(1)

	if !r.Remove(id) {
		t.Fatal("Remove should report the wizard existed")
	}
	if r.Remove(id) {
		t.Fatal("second Remove should report false")
	}
	if evicted != 1 {
		t.Fatalf("onEvict ran %d times, want 1", evicted)
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d", r.Len())
	}
}

func TestWizardRegistrySweepsOnAdd(t *testing.T) {
	var evicted int
	r := NewWizardRegistry(time.Minute, func(int) { evicted++ })
	now := time.Now()
	r.now = func() time.Time { return now }

	r.Add(1)
	now = now.Add(2 * time.Minute)
	r.Add(2)

	if r.Len() != 1 || evicted != 1 {
		t.Fatalf("Len = %d, evicted = %d", r.Len(), evicted)
	}
}
