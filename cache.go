package namequery

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Cache key layouts. The name cache stores resolved address lists,
// the negative connection cache records addresses known bad for a
// domain.
const (
	nameCacheKeyFmt = "NBT/%s#%02X"
	negConnKeyFmt   = "NEG_CONN_CACHE/%s,%s"

	// NegConnTTL is how long a failed connection keeps an address
	// out of domain controller candidate lists.
	NegConnTTL = 30 * time.Second
)

func nameCacheKey(name string, t NameType) string {
	return fmt.Sprintf(nameCacheKeyFmt, strings.ToUpper(name), t.Suffix())
}

// cacheFetch returns previously resolved candidates for (name, t).
// Unparseable and zero entries are dropped on read.
func (r *Resolver) cacheFetch(name string, t NameType) ([]netip.AddrPort, bool) {
	value, _, ok := r.cfg.Cache.Get(nameCacheKey(name, t))
	if !ok {
		return nil, false
	}

	var out []netip.AddrPort
	for _, s := range strings.Split(value, ",") {
		if ap, ok := parseCandidate(s); ok {
			out = append(out, ap)
		}
	}
	return dedupCandidates(out), true
}

// cacheStore saves a resolved candidate list.
func (r *Resolver) cacheStore(name string, t NameType, list []netip.AddrPort) {
	if len(list) == 0 {
		return
	}

	s := make([]string, len(list))
	for i, ap := range list {
		s[i] = ap.String()
	}

	expire := time.Now().Add(r.cfg.CacheTTL)
	r.cfg.Cache.Set(nameCacheKey(name, t), strings.Join(s, ","), expire)

	r.log.Debug().
		WithField("name", name).
		WithField("entries", len(list)).
		Print("cached resolution result")
}

func parseCandidate(s string) (netip.AddrPort, bool) {
	s = strings.TrimSpace(s)

	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap, !ap.Addr().IsUnspecified()
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		return netip.AddrPortFrom(addr.Unmap(), 0), !addr.IsUnspecified()
	}
	return netip.AddrPort{}, false
}

func negConnKey(domain string, addr netip.Addr) string {
	return fmt.Sprintf(negConnKeyFmt, strings.ToUpper(domain), addr)
}

// AddNegConn records that addr failed for domain, keeping it out of
// candidate lists until the entry expires.
func (r *Resolver) AddNegConn(domain string, addr netip.Addr) {
	r.cfg.Cache.Set(negConnKey(domain, addr), "1", time.Now().Add(NegConnTTL))
}

// FlushNegConn forgets recorded connection failures for domain's
// known addresses.
func (r *Resolver) FlushNegConn(domain string, addrs []netip.Addr) {
	for _, addr := range addrs {
		r.cfg.Cache.Delete(negConnKey(domain, addr))
	}
}

func (r *Resolver) negConnCached(domain string, addr netip.Addr) bool {
	_, _, ok := r.cfg.Cache.Get(negConnKey(domain, addr))
	return ok
}
