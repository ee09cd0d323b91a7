package namequery

import (
	"context"
	"net/netip"
	"strings"
	"time"

	"darvaza.org/namequery/pkg/errors"
	"darvaza.org/namequery/pkg/nbt"
)

// resolveWINS implements the "wins" method. Tags are queried in
// parallel; within a tag, servers are strict-order alternates. The
// first tag to succeed wins; the aggregate failure is reported only
// once every tag has finished.
func (r *Resolver) resolveWINS(ctx context.Context, name string, t NameType) ([]netip.AddrPort, error) {
	if r.cfg.Codec == nil {
		return nil, errors.ErrNotSupported(name)
	}
	if countWINSServers(r.cfg.WINSServers) == 0 {
		r.log.Debug().
			WithField("name", name).
			Print("WINS resolution selected and no WINS servers listed")
		return nil, errors.ErrNotSupported(name)
	}

	src := r.sourceAddrV4()
	own := r.cfg.Env.Interfaces()

	q := nbt.Name{Name: strings.ToUpper(name), Type: t.Suffix()}

	results := make(chan winsResult, len(r.cfg.WINSServers))
	sent := 0
	for tag, servers := range r.cfg.WINSServers {
		alive := r.aliveServers(servers, src, own, tag)
		if len(alive) == 0 {
			continue
		}

		go r.queryWINSList(ctx, q, tag, alive, src, results)
		sent++
	}

	if sent == 0 {
		return nil, errors.ErrNotFound(name)
	}

	var lastErr error
	for i := 0; i < sent; i++ {
		select {
		case <-ctx.Done():
			return nil, errors.ErrTimeout(name, ctx.Err())
		case res := <-results:
			if res.err == nil {
				return recordsToCandidates(res.recs), nil
			}
			lastErr = res.err
		}
	}
	return nil, errors.Wrap(name, lastErr)
}

type winsResult struct {
	recs []nbt.NameRecord
	err  error
}

// queryWINSList walks one tag's servers in order. A timeout marks the
// server dead and moves on; a well-formed negative response proves the
// server alive and ends the tag with not-found.
func (r *Resolver) queryWINSList(ctx context.Context, q nbt.Name,
	tag string, servers []netip.Addr, src netip.Addr, results chan<- winsResult) {
	//
	var lastErr error

	for _, server := range servers {
		dest := netip.AddrPortFrom(server, nbt.Port)

		ctx2, cancel := context.WithTimeout(ctx, r.cfg.UnicastTimeout)
		recs, err := r.tr.NameQuery(ctx2, r.cfg.Codec, q, dest, false)
		cancel()

		switch {
		case err == nil:
			results <- winsResult{recs: recs}
			return
		case errors.IsTimeout(err):
			r.markDead(server, src)
			lastErr = err
		default:
			// the server answered. its word is final for
			// this tag.
			r.log.Debug().
				WithField("server", server.String()).
				WithField("tag", tag).
				Print("WINS server answered negatively")
			results <- winsResult{err: err}
			return
		}
	}

	if lastErr == nil {
		lastErr = errors.ErrNotFound(q.String())
	}
	results <- winsResult{err: lastErr}
}

// aliveServers filters out our own addresses and servers recently
// marked dead.
func (r *Resolver) aliveServers(servers []netip.Addr, src netip.Addr,
	own []netip.Prefix, tag string) []netip.Addr {
	//
	alive := make([]netip.Addr, 0, len(servers))
	for _, server := range servers {
		if isOwnAddr(own, server) {
			// we would loop forever
			continue
		}
		if r.isDead(server, src) {
			continue
		}

		r.log.Debug().
			WithField("server", server.String()).
			WithField("tag", tag).
			Print("using WINS server")
		alive = append(alive, server)
	}
	return alive
}

func isOwnAddr(own []netip.Prefix, addr netip.Addr) bool {
	for _, pfx := range own {
		if pfx.Addr() == addr {
			return true
		}
	}
	return false
}

// sourceAddrV4 is the local address WINS replies would reach us on,
// used to scope dead-server entries to the network we saw the
// failure from.
func (r *Resolver) sourceAddrV4() netip.Addr {
	for _, pfx := range r.cfg.Env.Interfaces() {
		if pfx.Addr().Is4() {
			return pfx.Addr()
		}
	}
	return netip.IPv4Unspecified()
}

func deadKey(server, src netip.Addr) string {
	return server.String() + ";" + src.String()
}

func (r *Resolver) markDead(server, src netip.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.dead.Add(deadKey(server, src), now, 1, now.Add(DeadServerTimeout))
}

func (r *Resolver) isDead(server, src netip.Addr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _, ok := r.dead.Get(deadKey(server, src))
	return ok
}

func countWINSServers(tags map[string][]netip.Addr) int {
	n := 0
	for _, servers := range tags {
		n += len(servers)
	}
	return n
}

func recordsToCandidates(recs []nbt.NameRecord) []netip.AddrPort {
	out := make([]netip.AddrPort, len(recs))
	for i, rec := range recs {
		out[i] = netip.AddrPortFrom(rec.Addr.Unmap(), 0)
	}
	return out
}
