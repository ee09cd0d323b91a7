package namequery

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"darvaza.org/namequery/pkg/errors"
	"darvaza.org/namequery/pkg/nbt"
)

// DefaultStatusTimeout bounds a node status query.
const DefaultStatusTimeout = 10 * time.Second

const statusCacheKeyFmt = "NBT_STATUS/%s#%02X.%02X.%s"

// NodeStatus asks the node at addr which names it has registered.
func (r *Resolver) NodeStatus(ctx context.Context, name string, t NameType,
	addr netip.Addr) ([]nbt.StatusRecord, error) {
	//
	if r.cfg.Codec == nil {
		return nil, errors.ErrNotSupported(name)
	}

	q := nbt.Name{Name: strings.ToUpper(name), Type: t.Suffix()}
	dest := netip.AddrPortFrom(addr.Unmap(), nbt.Port)

	ctx, cancel := context.WithTimeout(ctx, DefaultStatusTimeout)
	defer cancel()

	return r.tr.NodeStatusQuery(ctx, r.cfg.Codec, q, dest)
}

// NameStatusFind queries the node at addr for its registered names
// and returns the first one of the wanted type. Results are cached;
// the NetBIOS machine name of a server does not change often.
func (r *Resolver) NameStatusFind(ctx context.Context, qName string,
	qType, findType NameType, addr netip.Addr) (string, error) {
	//
	key := fmt.Sprintf(statusCacheKeyFmt,
		strings.ToUpper(qName), qType.Suffix(), findType.Suffix(), addr)

	if found, _, ok := r.cfg.Cache.Get(key); ok {
		if found == "" {
			return "", errors.ErrNotFound(qName)
		}
		return found, nil
	}

	statuses, err := r.NodeStatus(ctx, qName, qType, addr)
	if err != nil {
		if errors.IsNotFound(err) {
			// remember the miss too
			r.cfg.Cache.Set(key, "", time.Now().Add(r.cfg.CacheTTL))
		}
		return "", err
	}

	for _, st := range statuses {
		if NameType(st.Type) == findType {
			r.cfg.Cache.Set(key, st.Name, time.Now().Add(r.cfg.CacheTTL))
			return st.Name, nil
		}
	}

	r.cfg.Cache.Set(key, "", time.Now().Add(r.cfg.CacheTTL))
	return "", errors.ErrNotFound(qName)
}
