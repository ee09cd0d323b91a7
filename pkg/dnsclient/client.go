// Package dnsclient implements the DNS transport used by the hosts,
// ads and kdc resolution methods.
package dnsclient

import (
	"context"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

var (
	_ Exchanger = (*dns.Client)(nil)
	_ Exchanger = (ExchangeFunc)(nil)
)

// An Exchanger makes a request to a server
type Exchanger interface {
	ExchangeContext(context.Context, *dns.Msg, string) (*dns.Msg, time.Duration, error)
}

// ExchangeFunc is a function that implements the [Exchanger] interface
type ExchangeFunc func(context.Context, *dns.Msg, string) (*dns.Msg, time.Duration, error)

// ExchangeContext implements the [Exchanger] interface
func (fn ExchangeFunc) ExchangeContext(ctx context.Context, req *dns.Msg,
	server string) (*dns.Msg, time.Duration, error) {
	return fn(ctx, req, server)
}

// NewDefaultExchanger allocates a default [dns.Client] in the same
// manner as dns.ExchangeContext(), plain UDP.
func NewDefaultExchanger(udpSize uint16) *dns.Client {
	if udpSize == 0 {
		udpSize = dns.DefaultMsgSize
	}

	c := &dns.Client{Net: "udp"}
	c.UDPSize = udpSize
	return c
}

// A SRV is one service-discovery record. Addrs carries any glue
// addresses the server returned alongside it.
type SRV struct {
	Target string
	Port   uint16
	Addrs  []netip.Addr
}

// A Client provides the asynchronous lookup primitives used by the
// DNS-based resolution methods. Implementations must be safe for
// concurrent use.
type Client interface {
	// LookupSRV returns the service-discovery records for name.
	LookupSRV(ctx context.Context, name string) ([]SRV, error)

	// LookupIP returns the addresses for one A or AAAA query.
	// qType must be dns.TypeA or dns.TypeAAAA.
	LookupIP(ctx context.Context, qType uint16, name string) ([]netip.Addr, error)
}
