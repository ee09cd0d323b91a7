package dnsclient

import (
	"context"
	"net/netip"

	"darvaza.org/core"
	"github.com/miekg/dns"

	"darvaza.org/namequery/pkg/errors"
)

var _ Client = (*Lookuper)(nil)

// Lookuper is the default [Client], asking the configured servers in
// order until one produces a usable response.
type Lookuper struct {
	e       Exchanger
	servers []string
}

// NewLookuper creates a [Lookuper] asking the given servers, each in
// "host" or "host:port" form. Port 53 is implied.
func NewLookuper(e Exchanger, servers ...string) (*Lookuper, error) {
	var err core.CompoundError

	if len(servers) == 0 {
		return nil, errors.ErrBadRequest()
	}

	if e == nil {
		e = NewDefaultExchanger(0)
	}

	out := make([]string, 0, len(servers))
	for _, server := range servers {
		s, e1 := AsServerAddress(server)
		if e1 != nil {
			err.AppendError(e1)
		} else {
			out = append(out, s)
		}
	}

	if len(out) == 0 {
		return nil, err.AsError()
	}

	return &Lookuper{e: e, servers: out}, nil
}

// Lookup makes one INET query and returns the validated response.
func (l *Lookuper) Lookup(ctx context.Context, qName string, qType uint16) (*dns.Msg, error) {
	req := &dns.Msg{
		MsgHdr: dns.MsgHdr{
			Id:               dns.Id(),
			RecursionDesired: true,
		},
		Question: []dns.Question{
			{Name: dns.Fqdn(qName), Qtype: qType, Qclass: dns.ClassINET},
		},
	}

	var last error
	for _, server := range l.servers {
		resp, _, err := l.e.ExchangeContext(ctx, req, server)
		if werr := errors.ValidateResponse(server, resp, err); werr != nil {
			last = werr
			continue
		}
		return resp, nil
	}

	return nil, last
}

// LookupSRV implements the [Client] interface.
func (l *Lookuper) LookupSRV(ctx context.Context, name string) ([]SRV, error) {
	resp, err := l.Lookup(ctx, name, dns.TypeSRV)
	if err != nil {
		return nil, err
	}

	glue := glueFromExtra(resp)

	var out []SRV
	ForEachAnswer(resp, func(rr *dns.SRV) {
		out = append(out, SRV{
			Target: rr.Target,
			Port:   rr.Port,
			Addrs:  glue[rr.Target],
		})
	})

	return out, nil
}

// LookupIP implements the [Client] interface.
func (l *Lookuper) LookupIP(ctx context.Context, qType uint16, name string) ([]netip.Addr, error) {
	resp, err := l.Lookup(ctx, name, qType)
	if err != nil {
		return nil, err
	}

	var out []netip.Addr
	switch qType {
	case dns.TypeA:
		ForEachAnswer(resp, func(rr *dns.A) {
			if addr, ok := netip.AddrFromSlice(rr.A.To4()); ok {
				out = append(out, addr)
			}
		})
	case dns.TypeAAAA:
		ForEachAnswer(resp, func(rr *dns.AAAA) {
			if addr, ok := netip.AddrFromSlice(rr.AAAA); ok {
				out = append(out, addr)
			}
		})
	default:
		return nil, errors.ErrBadRequest()
	}

	if len(out) == 0 {
		return nil, errors.ErrNotFound(name)
	}
	return out, nil
}

func glueFromExtra(resp *dns.Msg) map[string][]netip.Addr {
	glue := make(map[string][]netip.Addr)

	for _, rr := range resp.Extra {
		switch r := rr.(type) {
		case *dns.A:
			if addr, ok := netip.AddrFromSlice(r.A.To4()); ok {
				glue[r.Hdr.Name] = append(glue[r.Hdr.Name], addr)
			}
		case *dns.AAAA:
			if addr, ok := netip.AddrFromSlice(r.AAAA); ok {
				glue[r.Hdr.Name] = append(glue[r.Hdr.Name], addr)
			}
		}
	}

	return glue
}

// ForEachAnswer calls fn on each answer record of the given type.
func ForEachAnswer[T dns.RR](msg *dns.Msg, fn func(T)) {
	if msg == nil || fn == nil {
		return
	}

	for _, rr := range msg.Answer {
		if r, ok := rr.(T); ok {
			fn(r)
		}
	}
}
