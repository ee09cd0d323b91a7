package namequery

import (
	"context"
	"net/netip"
	"testing"

	"darvaza.org/namequery/pkg/errors"
)

func TestLookupAddrListPartialResults(t *testing.T) {
	d := newFakeDNS()
	good := netip.MustParseAddr("10.0.0.7")
	d.ips["good.example.com"] = []netip.Addr{good}
	d.fail["bad.example.com"] = errors.ErrTimeoutMessage("bad.example.com", errors.NOANSWER)

	r := newTestResolver(t, Config{DNS: d})

	addrs, names, err := r.lookupAddrList(context.Background(),
		[]string{"bad.example.com", "good.example.com"})
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if len(addrs) != 1 || addrs[0] != good {
		t.Fatalf("unexpected addresses: %v", addrs)
	}
	if len(names) != 1 || names[0] != "good.example.com" {
		t.Errorf("unexpected source names: %v", names)
	}
}

func TestLookupAddrListNameMultiplicity(t *testing.T) {
	d := newFakeDNS()
	d.ips["multi.example.com"] = []netip.Addr{
		netip.MustParseAddr("10.0.0.1"),
		netip.MustParseAddr("10.0.0.2"),
		netip.MustParseAddr("2001:db8::1"),
	}

	r := newTestResolver(t, Config{DNS: d})

	addrs, names, err := r.lookupAddrList(context.Background(),
		[]string{"multi.example.com"})
	if err != nil {
		t.Fatalf("lookupAddrList: %v", err)
	}
	if len(addrs) != 3 || len(names) != 3 {
		t.Fatalf("expected 3 parallel entries, got %d/%d", len(addrs), len(names))
	}
	for i, n := range names {
		if n != "multi.example.com" {
			t.Errorf("names[%d] = %q", i, n)
		}
	}
	// A records ahead of AAAA records
	if !addrs[0].Is4() || !addrs[1].Is4() || addrs[2].Is4() {
		t.Errorf("unexpected family order: %v", addrs)
	}
}

func TestLookupAddrListAllFail(t *testing.T) {
	d := newFakeDNS()

	r := newTestResolver(t, Config{DNS: d})

	_, _, err := r.lookupAddrList(context.Background(), []string{"nosuchhost"})
	if !errors.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestResolveHostsNameTypeGate(t *testing.T) {
	d := newFakeDNS()
	d.ips["example"] = []netip.Addr{netip.MustParseAddr("10.0.0.1")}

	r := newTestResolver(t, Config{DNS: d})

	if _, err := r.resolveHosts(context.Background(), "example", TypeDC); err == nil {
		t.Error("host lookup accepted a domain controller name type")
	}
	if _, err := r.resolveHosts(context.Background(), "example", TypeServer); err != nil {
		t.Errorf("host lookup rejected a server name type: %v", err)
	}
}
