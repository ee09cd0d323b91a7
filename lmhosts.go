package namequery

import (
	"context"
	"net/netip"

	"darvaza.org/namequery/pkg/errors"
)

// resolveLMHosts implements the "lmhosts" method through the static
// table collaborator.
func (r *Resolver) resolveLMHosts(_ context.Context, name string, t NameType) ([]netip.AddrPort, error) {
	if r.cfg.Static == nil {
		return nil, errors.ErrNotSupported(name)
	}

	addrs := r.cfg.Static.Lookup(name, t)
	if len(addrs) == 0 {
		return nil, errors.ErrNotFound(name)
	}

	out := make([]netip.AddrPort, len(addrs))
	for i, a := range addrs {
		out[i] = netip.AddrPortFrom(a.Unmap(), 0)
	}
	return out, nil
}
