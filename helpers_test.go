package namequery

import (
	"context"
	"net/netip"
	"strings"
	"sync"
	"testing"

	"github.com/miekg/dns"

	"darvaza.org/namequery/pkg/dnsclient"
	"darvaza.org/namequery/pkg/errors"
)

type fakeEnv struct {
	prefixes []netip.Prefix
	bcast    []netip.Addr
}

func (e fakeEnv) Interfaces() []netip.Prefix   { return e.prefixes }
func (e fakeEnv) BroadcastAddrs() []netip.Addr { return e.bcast }

func testEnv() fakeEnv {
	return fakeEnv{
		prefixes: []netip.Prefix{netip.MustParsePrefix("192.168.1.10/24")},
		bcast:    []netip.Addr{netip.MustParseAddr("192.168.1.255")},
	}
}

type fakeDNS struct {
	mu      sync.Mutex
	ips     map[string][]netip.Addr
	srvs    map[string][]dnsclient.SRV
	fail    map[string]error
	ipCalls map[string]int
}

func newFakeDNS() *fakeDNS {
	return &fakeDNS{
		ips:     make(map[string][]netip.Addr),
		srvs:    make(map[string][]dnsclient.SRV),
		fail:    make(map[string]error),
		ipCalls: make(map[string]int),
	}
}

func (d *fakeDNS) LookupSRV(_ context.Context, name string) ([]dnsclient.SRV, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if srvs, ok := d.srvs[name]; ok {
		return srvs, nil
	}
	return nil, errors.ErrNotFound(name)
}

func (d *fakeDNS) LookupIP(_ context.Context, qType uint16, name string) ([]netip.Addr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ipCalls[name]++
	if err := d.fail[name]; err != nil {
		return nil, err
	}

	var out []netip.Addr
	for _, a := range d.ips[name] {
		if (qType == dns.TypeA) == a.Is4() {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, errors.ErrNotFound(name)
	}
	return out, nil
}

func (d *fakeDNS) calls(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ipCalls[name]
}

type fakeStatic map[string][]netip.Addr

func (s fakeStatic) Lookup(name string, _ NameType) []netip.Addr {
	return s[strings.ToUpper(name)]
}

func newTestResolver(t *testing.T, cfg Config) *Resolver {
	t.Helper()

	if cfg.Env == nil {
		cfg.Env = testEnv()
	}

	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func ap(s string) netip.AddrPort {
	if a, err := netip.ParseAddrPort(s); err == nil {
		return a
	}
	return netip.AddrPortFrom(netip.MustParseAddr(s), 0)
}
