package namequery

import (
	"net/netip"
	"reflect"
	"testing"
)

func TestCacheRoundTrip(t *testing.T) {
	r := newTestResolver(t, Config{})

	want := []netip.AddrPort{ap("10.0.0.1:389"), ap("10.0.0.2")}
	r.cacheStore("fileserver", TypeServer, want)

	got, ok := r.cacheFetch("fileserver", TypeServer)
	if !ok {
		t.Fatal("stored entry not found")
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// keys are case insensitive
	if _, ok := r.cacheFetch("FILESERVER", TypeServer); !ok {
		t.Error("upper-case fetch missed")
	}

	// but type specific
	if _, ok := r.cacheFetch("fileserver", TypeDC); ok {
		t.Error("fetch with a different name type hit")
	}
}

func TestCacheStoreEmpty(t *testing.T) {
	r := newTestResolver(t, Config{})

	r.cacheStore("fileserver", TypeServer, nil)
	if _, ok := r.cacheFetch("fileserver", TypeServer); ok {
		t.Error("empty list was cached")
	}
}

func TestParseCandidate(t *testing.T) {
	cases := []struct {
		in   string
		want netip.AddrPort
		ok   bool
	}{
		{"10.0.0.1", ap("10.0.0.1"), true},
		{"10.0.0.1:389", ap("10.0.0.1:389"), true},
		{" 10.0.0.1 ", ap("10.0.0.1"), true},
		{"[2001:db8::1]:88", ap("[2001:db8::1]:88"), true},
		{"0.0.0.0", netip.AddrPort{}, false},
		{"not-an-address", netip.AddrPort{}, false},
		{"", netip.AddrPort{}, false},
	}

	for _, tc := range cases {
		got, ok := parseCandidate(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("%q: got (%v, %v), want (%v, %v)",
				tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNegConnCache(t *testing.T) {
	r := newTestResolver(t, Config{})

	addr := netip.MustParseAddr("10.0.0.1")
	if r.negConnCached("example", addr) {
		t.Fatal("fresh cache reports a negative entry")
	}

	r.AddNegConn("example", addr)
	if !r.negConnCached("EXAMPLE", addr) {
		t.Error("negative entry not found, domain should be case insensitive")
	}

	r.FlushNegConn("example", []netip.Addr{addr})
	if r.negConnCached("example", addr) {
		t.Error("flushed entry still present")
	}
}
