package namequery

import (
	"context"
	"net/netip"

	"darvaza.org/namequery/pkg/dnsclient"
	"darvaza.org/namequery/pkg/errors"
)

// resolveADS implements the "ads" and "kdc" methods: SRV record
// discovery of domain controllers, the domain master browser, or
// Kerberos KDCs.
//
// SRV answers carrying glue addresses are used directly. Targets that
// came back as bare hostnames are resolved in one batched DNS lookup,
// and each resulting address inherits the port of the SRV record that
// named it.
func (r *Resolver) resolveADS(ctx context.Context, name string,
	t NameType, site string) ([]netip.AddrPort, error) {
	//
	if r.cfg.DNS == nil {
		return nil, errors.ErrNotSupported(name)
	}

	var qName string
	switch t {
	case TypePDC:
		qName = dnsclient.PDCName(name)
	case TypeDC:
		qName = dnsclient.DCName(name, site)
	case TypeKDC:
		qName = dnsclient.KDCName(name, site)
	default:
		return nil, errors.ErrBadRequest()
	}

	r.log.Debug().
		WithField("domain", name).
		WithField("query", qName).
		Print("attempting SRV discovery")

	ctx, cancel := context.WithTimeout(ctx, r.cfg.DNSTimeout)
	defer cancel()

	srvs, err := r.cfg.DNS.LookupSRV(ctx, qName)
	if err != nil {
		return nil, errors.Wrap(name, err)
	}
	if len(srvs) == 0 {
		return nil, errors.ErrNotFound(name)
	}

	out, hostnames, ports := splitSRVs(srvs)
	if len(hostnames) == 0 {
		return out, nil
	}

	addrs, srcNames, err := r.lookupAddrList(ctx, hostnames)
	if err != nil {
		if len(out) > 0 {
			return out, nil
		}
		return nil, err
	}

	for i, a := range addrs {
		out = append(out, netip.AddrPortFrom(a, ports[srcNames[i]]))
	}
	return out, nil
}

// splitSRVs separates SRV answers with glue addresses from
// hostname-only ones.
func splitSRVs(srvs []dnsclient.SRV) (out []netip.AddrPort, hostnames []string, ports map[string]uint16) {
	ports = make(map[string]uint16, len(srvs))

	for _, srv := range srvs {
		if len(srv.Addrs) == 0 {
			if _, dup := ports[srv.Target]; !dup {
				hostnames = append(hostnames, srv.Target)
				ports[srv.Target] = srv.Port
			}
			continue
		}

		for _, a := range srv.Addrs {
			out = append(out, netip.AddrPortFrom(a.Unmap(), srv.Port))
		}
	}
	return out, hostnames, ports
}
