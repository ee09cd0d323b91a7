package namequery

import (
	"net"
	"net/netip"
)

// A NameType selects what kind of record a lookup is after. Values
// below 0x100 are NetBIOS name suffixes and usable on the wire;
// [TypeKDC] is deliberately out of that range and routes the lookup
// to Kerberos SRV discovery instead.
type NameType int

const (
	// TypeWorkstation is the workstation service name.
	TypeWorkstation NameType = 0x00
	// TypePDC is the domain master browser, registered by the PDC.
	TypePDC NameType = 0x1b
	// TypeDC is the domain controllers group name.
	TypeDC NameType = 0x1c
	// TypeMasterBrowser is the local master browser name.
	TypeMasterBrowser NameType = 0x1d
	// TypeServer is the file server service name.
	TypeServer NameType = 0x20

	// TypeKDC requests Kerberos KDC discovery.
	TypeKDC NameType = 0xdcdc
)

// Suffix returns the NetBIOS name suffix byte for t.
func (t NameType) Suffix() uint8 {
	return uint8(t & 0xff)
}

// A Method is one entry of the resolution order.
type Method string

const (
	// MethodHost resolves through the DNS, A and AAAA records.
	MethodHost Method = "host"
	// MethodKDC discovers Kerberos KDCs through SRV records.
	MethodKDC Method = "kdc"
	// MethodADS discovers domain controllers through SRV records.
	MethodADS Method = "ads"
	// MethodLMHosts consults the static name table.
	MethodLMHosts Method = "lmhosts"
	// MethodWINS queries the configured WINS servers.
	MethodWINS Method = "wins"
	// MethodBcast broadcasts on the local subnets.
	MethodBcast Method = "bcast"

	// MethodDisabled at the head of the order means name
	// resolution is turned off entirely.
	MethodDisabled Method = "NULL"
)

// netbiosOnly tells whether a method can only answer for names that
// fit NetBIOS naming rules.
func (m Method) netbiosOnly() bool {
	switch m {
	case MethodLMHosts, MethodWINS, MethodBcast:
		return true
	default:
		return false
	}
}

// A StaticTable answers lookups from statically configured entries,
// the lmhosts file typically.
type StaticTable interface {
	Lookup(name string, t NameType) []netip.Addr
}

// NetEnv describes the local network environment.
type NetEnv interface {
	// Interfaces returns the addresses of the local interfaces
	// with their network prefix.
	Interfaces() []netip.Prefix

	// BroadcastAddrs returns the IPv4 broadcast address of each
	// local subnet.
	BroadcastAddrs() []netip.Addr
}

var _ NetEnv = (*SysEnv)(nil)

// SysEnv is the default [NetEnv], reading the operating system's
// interface table.
type SysEnv struct{}

// Interfaces implements [NetEnv].
func (SysEnv) Interfaces() []netip.Prefix {
	var out []netip.Prefix

	forEachIfaceNet(func(pfx netip.Prefix) {
		out = append(out, pfx)
	})
	return out
}

// BroadcastAddrs implements [NetEnv].
func (SysEnv) BroadcastAddrs() []netip.Addr {
	var out []netip.Addr

	forEachIfaceNet(func(pfx netip.Prefix) {
		if addr, ok := broadcastAddr(pfx); ok {
			out = append(out, addr)
		}
	})
	return out
}

func forEachIfaceNet(fn func(netip.Prefix)) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return
	}

	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}

		for _, a := range addrs {
			if pfx, ok := asPrefix(a); ok {
				fn(pfx)
			}
		}
	}
}

func asPrefix(a net.Addr) (netip.Prefix, bool) {
	ipn, ok := a.(*net.IPNet)
	if !ok {
		return netip.Prefix{}, false
	}

	addr, ok := netip.AddrFromSlice(ipn.IP)
	if !ok {
		return netip.Prefix{}, false
	}
	addr = addr.Unmap()

	ones, _ := ipn.Mask.Size()
	pfx := netip.PrefixFrom(addr, ones)
	return pfx, pfx.IsValid()
}

// broadcastAddr computes the directed broadcast address of an IPv4
// subnet.
func broadcastAddr(pfx netip.Prefix) (netip.Addr, bool) {
	addr := pfx.Addr()
	if !addr.Is4() {
		return netip.Addr{}, false
	}

	b := addr.As4()
	bits := pfx.Bits()
	for i := 0; i < 4; i++ {
		hostBits := 8 * (i + 1)
		if bits < hostBits {
			shift := hostBits - bits
			if shift > 8 {
				shift = 8
			}
			b[i] |= byte(0xff >> (8 - shift))
		}
	}
	return netip.AddrFrom4(b), true
}
