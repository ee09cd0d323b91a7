package nbt

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"time"

	"darvaza.org/slog"
	"darvaza.org/slog/handlers/discard"

	"darvaza.org/namequery/pkg/errors"
)

// A SideChannel delivers packets captured by a cooperating local
// daemon listening on the name service port. Read blocks until a
// packet arrives or the channel fails; a failed side channel is
// simply absent, not an error, as long as the socket still works.
type SideChannel interface {
	Read(ctx context.Context) (*Packet, error)
}

// A Dialer opens the datagram socket a transaction sends and
// receives on. bcast indicates the payload goes to a broadcast
// address.
type Dialer func(bcast bool) (net.PacketConn, error)

func defaultDialer(bool) (net.PacketConn, error) {
	return net.ListenPacket("udp4", ":0")
}

// A Transaction performs one send-and-wait exchange: the payload is
// sent once, retransmitted on a fixed cadence, and the socket read is
// raced against the optional side channel until a packet passes the
// transaction id check and the validator.
type Transaction struct {
	// Side is the optional local daemon feed.
	Side SideChannel

	// Dial opens the socket. Defaults to an unbound IPv4 UDP
	// socket.
	Dial Dialer

	// RetryInterval overrides [DefaultRetryInterval].
	RetryInterval time.Duration

	// Log receives debug output.
	Log slog.Logger
}

func (t *Transaction) logger() slog.Logger {
	if t.Log != nil {
		return t.Log
	}
	return discard.New()
}

func (t *Transaction) retryInterval() time.Duration {
	if t.RetryInterval > 0 {
		return t.RetryInterval
	}
	return DefaultRetryInterval
}

func (t *Transaction) dial(bcast bool) (net.PacketConn, error) {
	if t.Dial != nil {
		return t.Dial(bcast)
	}
	return defaultDialer(bcast)
}

// Exchange sends payload to dest and waits for a packet accepted by
// validate. Exactly one terminal outcome is produced: an accepted
// packet or a single propagated error. Retransmissions reuse the
// identical payload, so the transaction id never changes mid-flight.
func (t *Transaction) Exchange(ctx context.Context, dest netip.AddrPort, bcast bool,
	payload []byte, trnID uint16, codec Codec, validate Validator) (*Packet, error) {
	//
	if ctx == nil || codec == nil || len(payload) == 0 {
		return nil, errors.ErrBadRequest()
	}

	conn, err := t.dial(bcast)
	if err != nil {
		return nil, errors.Wrap("", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() { _ = conn.Close() }()

	st := newRaceState(t.Side != nil)
	go t.readSocket(conn, dest, trnID, codec, validate, st)
	if t.Side != nil {
		go t.readSide(ctx, validate, st)
	}

	if err := t.send(conn, dest, payload); err != nil {
		return nil, err
	}

	tick := time.NewTicker(t.retryInterval())
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, errors.ErrTimeout("", ctx.Err())
		case <-tick.C:
			// no terminal result yet, resend as-is
			t.logger().Debug().
				WithField("dest", dest.String()).
				WithField("trn_id", int(trnID)).
				Print("retransmitting")
			if err := t.send(conn, dest, payload); err != nil {
				return nil, err
			}
		case r := <-st.ch:
			return r.pkt, r.err
		}
	}
}

func (*Transaction) send(conn net.PacketConn, dest netip.AddrPort, payload []byte) error {
	if _, err := conn.WriteTo(payload, net.UDPAddrFromAddrPort(dest)); err != nil {
		return errors.Wrap("", err)
	}
	return nil
}

// readSocket keeps reading the socket until a packet is accepted.
// Rejections of any kind cause a fresh read attempt, never a fresh
// send.
func (t *Transaction) readSocket(conn net.PacketConn, dest netip.AddrPort,
	trnID uint16, codec Codec, validate Validator, st *raceState) {
	//
	buf := make([]byte, 2048)
	log := t.logger()

	for {
		n, ra, err := conn.ReadFrom(buf)
		if err != nil {
			st.socketFailed(errors.Wrap("", err))
			return
		}

		src := asAddrPort(ra)
		if src.Addr().Is4() != dest.Addr().Is4() {
			// wrong address family
			continue
		}

		p, err := codec.Decode(buf[:n], src)
		if err != nil {
			log.Debug().
				WithField("source", src.String()).
				Print("undecodable packet ignored")
			continue
		}

		if trnID != TrnIDWildcard && p.TrnID != trnID {
			log.Debug().
				WithField("expected", int(trnID)).
				WithField("got", int(p.TrnID)).
				Print("transaction id mismatch")
			continue
		}

		if validate != nil && !validate(p) {
			continue
		}

		st.deliver(p)
		return
	}
}

// readSide races the local daemon feed against the socket. The daemon
// already filters by transaction id, so only the validator applies.
func (t *Transaction) readSide(ctx context.Context, validate Validator, st *raceState) {
	for {
		p, err := t.Side.Read(ctx)
		if err != nil {
			t.logger().Debug().Print("side channel gone")
			st.sideFailed()
			return
		}

		if validate != nil && !validate(p) {
			continue
		}

		st.deliver(p)
		return
	}
}

type raceResult struct {
	pkt *Packet
	err error
}

// raceState coordinates the socket read and the side channel so that
// exactly one terminal outcome reaches the transaction: the first
// accepted packet wins, a lone side channel failure is ignored while
// the socket still works, and when both fail the socket's error is
// surfaced.
type raceState struct {
	mu sync.Mutex
	ch chan raceResult

	delivered bool
	sideUp    bool
	sideDown  bool
	sockDown  bool
	sockErr   error
}

func newRaceState(sideUp bool) *raceState {
	return &raceState{
		ch:     make(chan raceResult, 1),
		sideUp: sideUp,
	}
}

func (st *raceState) deliver(p *Packet) {
	st.post(raceResult{pkt: p})
}

func (st *raceState) socketFailed(err error) {
	st.mu.Lock()
	st.sockDown = true
	st.sockErr = err
	fail := !st.sideUp || st.sideDown
	st.mu.Unlock()

	if fail {
		st.post(raceResult{err: err})
	}
}

func (st *raceState) sideFailed() {
	st.mu.Lock()
	st.sideDown = true
	err := st.sockErr
	fail := st.sockDown
	st.mu.Unlock()

	if fail {
		st.post(raceResult{err: err})
	}
}

func (st *raceState) post(r raceResult) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.delivered {
		st.delivered = true
		st.ch <- r
	}
}

func asAddrPort(a net.Addr) netip.AddrPort {
	if ua, ok := a.(*net.UDPAddr); ok {
		ap := ua.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}

	ap, _ := netip.ParseAddrPort(a.String())
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
