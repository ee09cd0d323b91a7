package nbt

import (
	"context"
	"net/netip"
	"sync"

	"darvaza.org/namequery/pkg/errors"
)

// NameQuery queries dest for the addresses registered under q. A fresh
// transaction id is generated for the exchange. Broadcast queries
// accumulate answers until the context deadline; the wildcard name "*"
// collects everything heard, any other broadcast name terminates early
// once a globally unique owner answers. Unicast queries terminate on
// the first positive answer, and a negative response code from the
// server is a terminal not-found, distinct from hearing nothing.
func (t *Transaction) NameQuery(ctx context.Context, codec Codec,
	q Name, dest netip.AddrPort, bcast bool) ([]NameRecord, error) {
	//
	if codec == nil || q.Name == "" {
		return nil, errors.ErrBadRequest()
	}
	if !dest.IsValid() || !dest.Addr().Is4() {
		return nil, errors.ErrInvalidAddress(q.String())
	}

	trnID := NewTrnID()
	payload, err := codec.EncodeNameQuery(q, trnID, bcast, !bcast)
	if err != nil {
		return nil, errors.Wrap(q.String(), err)
	}

	c := &nameCollector{
		bcast:      bcast,
		collectAll: bcast && q.Name == "*",
	}

	_, err = t.Exchange(ctx, dest, bcast, payload, trnID, codec, c.validate)

	recs, server, negative := c.result()
	switch {
	case negative:
		return nil, errors.ErrNegativeResponse(q.String(), server)
	case err == nil:
		return recs, nil
	case bcast && errors.IsTimeout(err) && len(recs) > 0:
		// collected answers before the deadline
		return recs, nil
	default:
		return nil, errors.Wrap(q.String(), err)
	}
}

// NodeStatusQuery asks dest, always unicast, for the names registered
// on that node.
func (t *Transaction) NodeStatusQuery(ctx context.Context, codec Codec,
	q Name, dest netip.AddrPort) ([]StatusRecord, error) {
	//
	if codec == nil {
		return nil, errors.ErrBadRequest()
	}
	if !dest.IsValid() || !dest.Addr().Is4() {
		return nil, errors.ErrInvalidAddress(q.String())
	}

	trnID := NewTrnID()
	payload, err := codec.EncodeStatusQuery(q, trnID)
	if err != nil {
		return nil, errors.Wrap(q.String(), err)
	}

	p, err := t.Exchange(ctx, dest, false, payload, trnID, codec, validStatusResponse)
	if err != nil {
		return nil, errors.Wrap(q.String(), err)
	}
	return p.Statuses, nil
}

func validStatusResponse(p *Packet) bool {
	switch {
	case !p.Response, p.Opcode != 0, p.Broadcast, p.RCode != 0:
		return false
	case len(p.Statuses) == 0:
		return false
	default:
		return true
	}
}

// nameCollector accumulates name query answers across candidate
// packets. The socket and the side channel feed it concurrently.
type nameCollector struct {
	bcast      bool
	collectAll bool

	mu        sync.Mutex
	recs      []NameRecord
	negative  bool
	negServer string
}

func (c *nameCollector) result() ([]NameRecord, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recs, c.negServer, c.negative
}

// validate implements the acceptance policy. true terminates the
// exchange, false keeps it waiting.
func (c *nameCollector) validate(p *Packet) bool {
	if !p.Response {
		return false
	}

	if p.Opcode == 0 && !c.bcast && p.RCode != 0 {
		// negative name query response from a server we asked
		// directly. terminal, and authoritative.
		c.mu.Lock()
		c.negative = true
		c.negServer = p.Source.Addr().String()
		c.mu.Unlock()
		return true
	}

	if p.Opcode != 0 || p.Broadcast || p.RCode != 0 || len(p.Answers) == 0 {
		// could be a redirect. discard it and keep waiting.
		return false
	}

	return c.append(p.Answers)
}

func (c *nameCollector) append(answers []NameRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	gotUnique := false
	for _, a := range answers {
		if !c.contains(a.Addr) {
			c.recs = append(c.recs, a)
		}
		if !a.IsGroup() {
			gotUnique = true
		}
	}

	if c.bcast {
		// keep collecting answers from the broadcast area.
		// a unique owner ends the wait unless we asked for
		// every name out there.
		if !gotUnique || c.collectAll {
			return false
		}
	}
	return true
}

func (c *nameCollector) contains(addr netip.Addr) bool {
	for _, r := range c.recs {
		if r.Addr == addr {
			return true
		}
	}
	return false
}
