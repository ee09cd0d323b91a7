package namequery

import (
	"net/netip"
	"sort"
)

// dedupCandidates removes later (address, port) duplicates, keeping
// the relative order of first occurrences. Domain controller group
// lookups commonly return the PDC twice; querying it twice means two
// sets of timeouts when it is down.
func dedupCandidates(list []netip.AddrPort) []netip.AddrPort {
	out := list[:0]

	for i, a := range list {
		dup := false
		for j := 0; j < i; j++ {
			if list[j] == a {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, a)
		}
	}
	return out
}

// dropUnusable removes zero addresses and broadcast addresses; they
// are never usable as connection targets.
func (r *Resolver) dropUnusable(list []netip.AddrPort) []netip.AddrPort {
	bcast := r.cfg.Env.BroadcastAddrs()

	out := list[:0]
	for _, a := range list {
		if !a.Addr().IsValid() || a.Addr().IsUnspecified() {
			continue
		}
		if containsAddr(bcast, a.Addr()) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func containsAddr(list []netip.Addr, addr netip.Addr) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

// sortByLocality orders candidates so that addresses close to one of
// our interfaces come first. This prevents the problem where a WINS
// server returns an address unreachable from our subnet as the first
// match.
func (r *Resolver) sortByLocality(list []netip.AddrPort) {
	if len(list) <= 1 {
		return
	}

	ifaces := r.cfg.Env.Interfaces()
	scores := make(map[netip.Addr]int, len(list))
	for _, a := range list {
		if _, ok := scores[a.Addr()]; !ok {
			scores[a.Addr()] = localityScore(a.Addr(), ifaces)
		}
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]

		if a4, b4 := a.Addr().Is4(), b.Addr().Is4(); a4 != b4 {
			// IPv4 addresses first
			return a4
		}
		if sa, sb := scores[a.Addr()], scores[b.Addr()]; sa != sb {
			return sa > sb
		}
		return a.Port() < b.Port()
	})
}

// localityScore is the maximum number of leading address bits addr
// shares with a local interface of the same family, plus a large bias
// when addr is one of our own addresses.
func localityScore(addr netip.Addr, ifaces []netip.Prefix) int {
	max := 0

	for _, pfx := range ifaces {
		ifaceAddr := pfx.Addr()
		if ifaceAddr.Is4() != addr.Is4() {
			continue
		}

		bits := matchingBits(addr, ifaceAddr)
		if bits > max {
			max = bits
		}
	}

	for _, pfx := range ifaces {
		if pfx.Addr() == addr {
			max += addr.BitLen()
			break
		}
	}
	return max
}

// matchingBits counts the leading bits a and b have in common.
func matchingBits(a, b netip.Addr) int {
	pa, pb := a.AsSlice(), b.AsSlice()
	if len(pa) != len(pb) {
		return 0
	}

	bits := 0
	for i := range pa {
		x := pa[i] ^ pb[i]
		if x == 0 {
			bits += 8
			continue
		}
		for x&0x80 == 0 {
			bits++
			x <<= 1
		}
		break
	}
	return bits
}

// prioritizeIPv4 stably moves all IPv4 candidates ahead of IPv6 ones.
// Used for domain controller lists; W2K3 does not speak LDAP, KRB5 or
// CLDAP over IPv6.
func prioritizeIPv4(list []netip.AddrPort) []netip.AddrPort {
	out := make([]netip.AddrPort, 0, len(list))

	for _, a := range list {
		if a.Addr().Is4() {
			out = append(out, a)
		}
	}
	for _, a := range list {
		if !a.Addr().Is4() {
			out = append(out, a)
		}
	}

	copy(list, out)
	return list
}
