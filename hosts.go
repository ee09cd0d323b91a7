package namequery

import (
	"context"
	"net/netip"
	"sync"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"

	"darvaza.org/namequery/pkg/errors"
)

// resolveHosts implements the "host" method, a plain DNS lookup.
// It only applies to server and workstation names.
func (r *Resolver) resolveHosts(ctx context.Context, name string, t NameType) ([]netip.AddrPort, error) {
	if t != TypeServer && t != TypeWorkstation {
		return nil, errors.ErrNotSupported(name)
	}
	if r.cfg.DNS == nil {
		return nil, errors.ErrNotSupported(name)
	}

	r.log.Debug().
		WithField("name", name).
		Print("attempting host lookup")

	addrs, _, err := r.lookupAddrList(ctx, []string{name})
	if err != nil {
		return nil, err
	}

	out := make([]netip.AddrPort, len(addrs))
	for i, a := range addrs {
		out[i] = netip.AddrPortFrom(a, 0)
	}
	return out, nil
}

// lookupAddrList resolves many names at once, A and AAAA records for
// each, under one shared deadline. When the deadline fires, whatever
// has arrived is the result; sub-lookups that failed or produced
// nothing simply contribute nothing. The returned name list runs
// parallel to the address list, repeating the source name once per
// address it produced.
func (r *Resolver) lookupAddrList(ctx context.Context,
	names []string) ([]netip.Addr, []string, error) {
	//
	if len(names) == 0 {
		return nil, nil, errors.ErrBadRequest()
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.DNSTimeout)
	defer cancel()

	qTypes := []uint16{dns.TypeA, dns.TypeAAAA}

	var mu sync.Mutex
	var g errgroup.Group

	// slots[i][j] holds the answers for names[i], qTypes[j], so
	// the merged output is deterministic regardless of arrival
	// order.
	slots := make([][][]netip.Addr, len(names))
	for i := range slots {
		slots[i] = make([][]netip.Addr, len(qTypes))
	}

	for i, name := range names {
		for j, qType := range qTypes {
			i, j, name, qType := i, j, name, qType

			g.Go(func() error {
				addrs, err := r.cfg.DNS.LookupIP(ctx, qType, name)
				if err != nil {
					// no contribution
					return nil
				}

				mu.Lock()
				slots[i][j] = addrs
				mu.Unlock()
				return nil
			})
		}
	}

	_ = g.Wait()

	var addrs []netip.Addr
	var srcNames []string
	for i, perName := range slots {
		for _, perType := range perName {
			for _, a := range perType {
				addrs = append(addrs, a.Unmap())
				srcNames = append(srcNames, names[i])
			}
		}
	}

	if len(addrs) == 0 {
		return nil, nil, errors.ErrNotFound(names[0])
	}
	return addrs, srcNames, nil
}
