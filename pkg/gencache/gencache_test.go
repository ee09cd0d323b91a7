package gencache

import (
	"testing"
	"time"
)

func TestMemStoreRoundTrip(t *testing.T) {
	m := NewMemStore(0)

	if _, _, ok := m.Get("missing"); ok {
		t.Fatal("fresh store returned a value")
	}

	expire := time.Now().Add(time.Hour)
	m.Set("key", "value", expire)

	v, e, ok := m.Get("key")
	if !ok || v != "value" {
		t.Fatalf("got (%q, %v)", v, ok)
	}
	if !e.Equal(expire) {
		t.Errorf("expiry changed: %v != %v", e, expire)
	}

	m.Delete("key")
	if _, _, ok := m.Get("key"); ok {
		t.Error("deleted entry still present")
	}
}

func TestMemStoreExpiry(t *testing.T) {
	m := NewMemStore(0)

	m.Set("gone", "value", time.Now().Add(-time.Second))
	if _, _, ok := m.Get("gone"); ok {
		t.Error("expired entry returned")
	}

	// zero expiry never expires
	m.Set("keep", "value", time.Time{})
	if v, e, ok := m.Get("keep"); !ok || v != "value" || !e.IsZero() {
		t.Errorf("got (%q, %v, %v)", v, e, ok)
	}
}

func TestMemStoreOverwrite(t *testing.T) {
	m := NewMemStore(0)

	m.Set("key", "one", time.Now().Add(time.Hour))
	m.Set("key", "two", time.Now().Add(time.Hour))

	if v, _, _ := m.Get("key"); v != "two" {
		t.Errorf("got %q, want two", v)
	}
}
