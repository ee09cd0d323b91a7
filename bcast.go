package namequery

import (
	"context"
	"net/netip"
	"strings"

	"darvaza.org/namequery/pkg/errors"
	"darvaza.org/namequery/pkg/nbt"
)

// resolveBcast implements the "bcast" method: the name query is sent
// to the broadcast address of every local subnet at once, each attempt
// bounded by its own short timeout.
func (r *Resolver) resolveBcast(ctx context.Context, name string, t NameType) ([]netip.AddrPort, error) {
	if r.cfg.DisableNetBIOS || r.cfg.Codec == nil {
		r.log.Debug().
			WithField("name", name).
			Print("netbios is disabled")
		return nil, errors.ErrNotSupported(name)
	}

	bcastAddrs := r.cfg.Env.BroadcastAddrs()
	if len(bcastAddrs) == 0 {
		return nil, errors.ErrNotFound(name)
	}

	r.log.Debug().
		WithField("name", name).
		WithField("subnets", len(bcastAddrs)).
		Print("attempting broadcast lookup")

	dests := make([]netip.AddrPort, len(bcastAddrs))
	for i, a := range bcastAddrs {
		dests[i] = netip.AddrPortFrom(a, nbt.Port)
	}

	q := nbt.Name{Name: strings.ToUpper(name), Type: t.Suffix()}
	fn := func(ctx context.Context, dest netip.AddrPort) ([]nbt.NameRecord, error) {
		return r.tr.NameQuery(ctx, r.cfg.Codec, q, dest, true)
	}

	s := &nbt.Queries{
		Timeout: r.cfg.BcastTimeout,
		Log:     r.log,
	}

	recs, _, err := s.Run(ctx, dests, fn)
	if err != nil {
		return nil, errors.Wrap(name, err)
	}
	return recordsToCandidates(recs), nil
}
