package namequery

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"darvaza.org/core"

	"darvaza.org/namequery/pkg/errors"
	"darvaza.org/namequery/pkg/task"
)

// maxNetBIOSName is the longest name NetBIOS can carry.
const maxNetBIOSName = 15

// Resolve turns a name into a candidate address list using the
// configured resolution order. Literal addresses short-circuit
// everything, then the name cache, then the method chain in order; the
// first method to produce a result wins and the result is cached.
// Concurrent lookups for the same key are collapsed into one.
func (r *Resolver) Resolve(ctx context.Context, name string, t NameType,
	site string) ([]netip.AddrPort, error) {
	//
	key := fmt.Sprintf("%s#%04x@%s", strings.ToUpper(name), int(t), site)

	v, err, _ := r.sf.Do(key, func() (any, error) {
		return r.internalResolve(ctx, name, t, site, r.cfg.ResolveOrder)
	})
	if err != nil {
		return nil, err
	}

	list, ok := v.([]netip.AddrPort)
	if !ok {
		return nil, errors.ErrInternalError(name, "resolve")
	}
	return list, nil
}

func (r *Resolver) internalResolve(ctx context.Context, name string, t NameType,
	site string, order []Method) ([]netip.AddrPort, error) {
	//
	r.log.Debug().
		WithField("name", name).
		WithField("type", int(t)).
		WithField("site", site).
		Print("looking up")

	if addr, err := core.ParseAddr(name); err == nil {
		if addr.IsUnspecified() {
			return nil, errors.ErrInvalidAddress(name)
		}
		// no port preference attached to a literal
		return []netip.AddrPort{netip.AddrPortFrom(addr.Unmap(), 0)}, nil
	}

	if list, ok := r.cacheFetch(name, t); ok {
		if len(list) == 0 {
			return nil, errors.ErrNotFound(name)
		}
		return list, nil
	}

	order, err := usableOrder(name, order)
	if err != nil {
		return nil, err
	}

	return r.runChain(ctx, name, t, site, order)
}

// usableOrder applies the disabled sentinel and strips NetBIOS-only
// methods for names NetBIOS cannot carry.
func usableOrder(name string, order []Method) ([]Method, error) {
	if len(order) > 0 && order[0] == MethodDisabled {
		return nil, errors.ErrNotSupported(name)
	}
	if len(order) == 0 {
		order = []Method{MethodHost}
	}

	if len(name) > maxNetBIOSName || strings.Contains(name, ".") {
		// the name would not fit on the wire anyway
		filtered := make([]Method, 0, len(order))
		for _, m := range order {
			if !m.netbiosOnly() {
				filtered = append(filtered, m)
			}
		}
		order = filtered
	}
	return order, nil
}

func (r *Resolver) runChain(ctx context.Context, name string, t NameType,
	site string, order []Method) ([]netip.AddrPort, error) {
	//
	var lastErr error

	for _, m := range order {
		list, cacheType, err := r.runMethod(ctx, m, name, t, site)
		if err != nil {
			lastErr = err
			continue
		}

		list = dedupCandidates(dropZero(list))
		if len(list) == 0 {
			return nil, errors.ErrNotFound(name)
		}

		r.cacheStore(name, cacheType, list)
		return list, nil
	}

	if lastErr == nil {
		lastErr = errors.ErrNotFound(name)
	}
	return nil, errors.Wrap(name, lastErr)
}

// runMethod dispatches one chain entry. The returned NameType is the
// one to cache under; the "kdc" method rebinds the lookup so the
// result is never cached with the KDC port under the original type.
func (r *Resolver) runMethod(ctx context.Context, m Method, name string,
	t NameType, site string) ([]netip.AddrPort, NameType, error) {
	//
	var list []netip.AddrPort
	var err error

	switch m {
	case MethodHost:
		list, err = r.resolveHosts(ctx, name, t)
	case MethodKDC:
		list, err = r.resolveADS(ctx, name, TypeKDC, site)
		t = TypeKDC
	case MethodADS:
		list, err = r.resolveADS(ctx, name, t, site)
	case MethodLMHosts:
		list, err = r.resolveLMHosts(ctx, name, t)
	case MethodWINS:
		if t == TypeMasterBrowser {
			// never resolve the master browser via WINS
			err = errors.ErrNotSupported(name)
			break
		}
		list, err = r.resolveWINS(ctx, name, t)
	case MethodBcast:
		list, err = r.resolveBcast(ctx, name, t)
	default:
		r.log.Error().
			WithField("method", string(m)).
			Print("unknown resolution method")
		err = errors.ErrNotSupported(name)
	}

	return list, t, err
}

func dropZero(list []netip.AddrPort) []netip.AddrPort {
	out := list[:0]
	for _, a := range list {
		if a.Addr().IsValid() && !a.Addr().IsUnspecified() {
			out = append(out, a)
		}
	}
	return out
}

// ResolveAsync starts a lookup in the background and returns a handle
// the caller can wait on, attach a continuation to, or abandon.
func (r *Resolver) ResolveAsync(ctx context.Context, name string, t NameType,
	site string) *task.Task[[]netip.AddrPort] {
	//
	tk := task.New[[]netip.AddrPort]()

	go func() {
		list, err := r.Resolve(ctx, name, t, site)
		if err != nil {
			tk.Fail(err)
			return
		}
		tk.Complete(list)
	}()
	return tk
}

// ResolveName resolves a name to a single usable address. Broadcast
// addresses are never returned; with preferV4 an IPv4 address is
// picked over earlier IPv6 ones when available.
func (r *Resolver) ResolveName(ctx context.Context, name string, t NameType,
	preferV4 bool) (netip.Addr, error) {
	//
	site := r.SiteFetch(r.cfg.Realm)

	list, err := r.Resolve(ctx, name, t, site)
	if err != nil {
		return netip.Addr{}, err
	}

	bcast := r.cfg.Env.BroadcastAddrs()

	if preferV4 {
		for _, a := range list {
			if a.Addr().Is4() && !containsAddr(bcast, a.Addr()) {
				return a.Addr(), nil
			}
		}
	}
	for _, a := range list {
		if !containsAddr(bcast, a.Addr()) {
			return a.Addr(), nil
		}
	}
	return netip.Addr{}, errors.ErrNotFound(name)
}

// ResolveNameList resolves a name to every address the chain
// produces, minus broadcast and zero addresses.
func (r *Resolver) ResolveNameList(ctx context.Context, name string,
	t NameType) ([]netip.AddrPort, error) {
	//
	site := r.SiteFetch(r.cfg.Realm)

	list, err := r.Resolve(ctx, name, t, site)
	if err != nil {
		return nil, err
	}

	list = r.dropUnusable(list)
	if len(list) == 0 {
		return nil, errors.ErrNotFound(name)
	}
	return list, nil
}

// FindMasterIP locates the master browser of a workgroup, preferring
// the local master browser name and falling back to the domain master
// browser.
func (r *Resolver) FindMasterIP(ctx context.Context, group string) (netip.Addr, error) {
	if r.cfg.DisableNetBIOS {
		return netip.Addr{}, errors.ErrNotSupported(group)
	}

	list, err := r.Resolve(ctx, group, TypeMasterBrowser, "")
	if err != nil {
		list, err = r.Resolve(ctx, group, TypePDC, "")
	}
	if err != nil {
		return netip.Addr{}, err
	}
	return list[0].Addr(), nil
}

// PDCIP returns the address of a domain's primary domain controller.
// Under ADS security, SRV discovery is tried before the regular
// resolution order.
func (r *Resolver) PDCIP(ctx context.Context, domain string) (netip.Addr, error) {
	var list []netip.AddrPort
	var err error = errors.ErrNotFound(domain)

	if r.cfg.SecurityADS {
		list, err = r.internalResolve(ctx, domain, TypePDC, "",
			[]Method{MethodADS})
	}
	if err != nil || len(list) == 0 {
		list, err = r.Resolve(ctx, domain, TypePDC, "")
		if err != nil {
			return netip.Addr{}, err
		}
	}

	if len(list) > 1 {
		// multi-homed PDC, pick the nearest address
		r.log.Info().
			WithField("domain", domain).
			WithField("addresses", len(list)).
			Print("PDC is multi-homed")
		r.sortByLocality(list)
	}
	return list[0].Addr(), nil
}
