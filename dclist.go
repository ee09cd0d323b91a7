package namequery

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"darvaza.org/core"

	"darvaza.org/namequery/pkg/errors"
)

// Well-known ports attached to discovered domain controllers.
const (
	// LDAPPort is attached to ADS-only discovery results.
	LDAPPort = 389
	// KerberosPort is attached to KDC discovery results.
	KerberosPort = 88
)

type dcLookupType int

const (
	dcNormalLookup dcLookupType = iota
	dcADSOnly
	dcKDCOnly
)

// SortedDCList builds the domain controller candidate list for a
// domain: affinity entry first, then the configured server list with
// "*" expanding to automatic discovery. When nothing is found in the
// given site the lookup retries unsited; lists with explicitly named
// servers keep their configured order, automatic ones are sorted by
// locality.
func (r *Resolver) SortedDCList(ctx context.Context, domain, site string,
	adsOnly bool) ([]netip.AddrPort, error) {
	//
	lt := dcNormalLookup
	if adsOnly {
		lt = dcADSOnly
	}

	r.log.Info().
		WithField("domain", domain).
		WithField("site", site).
		Print("attempting DC lookup")

	list, ordered, err := r.getDCList(ctx, domain, site, lt)
	if site != "" && isNoLogonServers(err) {
		r.log.Warn().
			WithField("domain", domain).
			WithField("site", site).
			Print("no server available in site, falling back to all servers")
		list, ordered, err = r.getDCList(ctx, domain, "", lt)
	}
	if err != nil {
		return nil, err
	}

	if !ordered {
		r.sortByLocality(list)
	}
	return list, nil
}

// KDCList builds the Kerberos KDC candidate list for a realm,
// reusing the domain controller assembly with KDC-only discovery.
func (r *Resolver) KDCList(ctx context.Context, realm, site string) ([]netip.AddrPort, error) {
	list, ordered, err := r.getDCList(ctx, realm, site, dcKDCOnly)
	if err != nil {
		return nil, err
	}

	if !ordered {
		r.sortByLocality(list)
	}
	return list, nil
}

func isNoLogonServers(err error) bool {
	if e, ok := err.(*net.DNSError); ok {
		return e.Err == errors.NOLOGONSERVERS
	}
	return false
}

//revive:disable-next-line:cognitive-complexity
func (r *Resolver) getDCList(ctx context.Context, domain, site string,
	lt dcLookupType) (list []netip.AddrPort, ordered bool, err error) {
	//
	order, autoType, ordered := r.dcResolveOrder(lt)

	// the server we have affinity for, then the configured
	// password server list
	tokens := r.dcServerTokens(domain)

	var auto []netip.AddrPort
	doneAuto := false
	explicit := 0

	for _, tok := range tokens {
		if tok == "*" {
			if doneAuto {
				continue
			}
			doneAuto = true
			auto, _ = r.internalResolve(ctx, domain, autoType, site, order)
			continue
		}
		explicit++
	}

	if explicit == 0 && len(auto) == 0 {
		if doneAuto {
			r.log.Debug().
				WithField("domain", domain).
				Print("no servers found")
			return nil, false, errors.ErrNoLogonServers(domain)
		}

		// no configured servers at all, plain automatic lookup
		list, err = r.internalResolve(ctx, domain, autoType, site, order)
		return list, ordered, err
	}

	for _, tok := range tokens {
		if tok == "*" {
			list = append(list, r.filterNegConn(domain, auto)...)
			continue
		}

		if ap, ok := r.resolveDCToken(ctx, tok, lt); ok {
			if r.negConnCached(domain, ap.Addr()) {
				r.log.Debug().
					WithField("domain", domain).
					WithField("server", tok).
					Print("negative entry removed from DC list")
				continue
			}
			list = append(list, ap)
			ordered = true
		}
	}

	list = prioritizeIPv4(dedupCandidates(list))
	if len(list) == 0 {
		return nil, false, errors.ErrNoLogonServers(domain)
	}

	r.log.Debug().
		WithField("domain", domain).
		WithField("servers", len(list)).
		WithField("ordered", ordered).
		Print("assembled DC list")
	return list, ordered, nil
}

// dcResolveOrder picks the resolution order, the automatic discovery
// type and the initial ordered flag for a lookup type. SRV answers
// come back sorted by priority and weight already, so restricted
// lookups are born ordered.
func (r *Resolver) dcResolveOrder(lt dcLookupType) ([]Method, NameType, bool) {
	switch lt {
	case dcADSOnly:
		if methodsContain(r.cfg.ResolveOrder, MethodHost) {
			return []Method{MethodADS}, TypeDC, true
		}
		// DNS lookups disabled but ADS-only requested. Quite
		// bizarre, fail fast.
		return []Method{MethodDisabled}, TypeDC, false
	case dcKDCOnly:
		return []Method{MethodKDC}, TypeKDC, true
	default:
		return r.cfg.ResolveOrder, TypeDC, false
	}
}

// dcServerTokens merges the affinity entry with the configured
// password server list. For foreign domains the configured list does
// not apply and automatic lookup is the only option.
func (r *Resolver) dcServerTokens(domain string) []string {
	var tokens []string

	if saf := r.SAFFetch(domain); saf != "" {
		tokens = append(tokens, saf)
	}

	ours := strings.EqualFold(domain, r.cfg.Workgroup) ||
		strings.EqualFold(domain, r.cfg.Realm)
	if ours {
		for _, tok := range r.cfg.PasswordServers {
			if tok = strings.TrimSpace(tok); tok != "" {
				tokens = append(tokens, tok)
			}
		}
	} else {
		tokens = append(tokens, "*")
	}
	return tokens
}

func (r *Resolver) filterNegConn(domain string, list []netip.AddrPort) []netip.AddrPort {
	out := make([]netip.AddrPort, 0, len(list))
	for _, ap := range list {
		if r.negConnCached(domain, ap.Addr()) {
			r.log.Debug().
				WithField("domain", domain).
				WithField("address", ap.Addr().String()).
				Print("negative entry removed from DC list")
			continue
		}
		out = append(out, ap)
	}
	return out
}

// resolveDCToken turns one explicitly configured "name[:port]" entry
// into a candidate. ADS entries default to the LDAP port, KDC entries
// always use the Kerberos port regardless of any explicit one.
func (r *Resolver) resolveDCToken(ctx context.Context, tok string,
	lt dcLookupType) (netip.AddrPort, bool) {
	//
	name := tok
	var port uint16

	switch lt {
	case dcADSOnly:
		port = LDAPPort
	case dcKDCOnly:
		port = KerberosPort
	}

	if host, portStr, err := core.SplitHostPort(tok); err == nil && portStr != "" {
		name = host
		if lt != dcKDCOnly {
			if p, err := strconv.ParseUint(portStr, 10, 16); err == nil {
				port = uint16(p)
			}
		}
	}

	addr, err := r.ResolveName(ctx, name, TypeServer, true)
	if err != nil {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(addr, port), true
}

func methodsContain(order []Method, m Method) bool {
	for _, o := range order {
		if o == m {
			return true
		}
	}
	return false
}
