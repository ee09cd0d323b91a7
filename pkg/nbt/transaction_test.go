package nbt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"
)

var (
	testDest = netip.MustParseAddrPort("192.168.1.5:137")
	testSrc  = testDest
)

type fakeDatagram struct {
	payload []byte
	src     net.Addr
}

type fakeConn struct {
	mu     sync.Mutex
	in     chan fakeDatagram
	closed chan struct{}
	once   sync.Once

	onWrite func(payload []byte, dest net.Addr)
	writes  [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan fakeDatagram, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case d := <-c.in:
		n := copy(p, d.payload)
		return n, d.src, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	c.writes = append(c.writes, append([]byte{}, p...))
	fn := c.onWrite
	c.mu.Unlock()

	if fn != nil {
		fn(p, addr)
	}
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sentPayloads() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

func (*fakeConn) LocalAddr() net.Addr              { return &net.UDPAddr{IP: net.IPv4zero} }
func (*fakeConn) SetDeadline(time.Time) error      { return nil }
func (*fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (*fakeConn) SetWriteDeadline(time.Time) error { return nil }

// deliver queues a packet as if it had arrived from src.
func (c *fakeConn) deliver(p *Packet, src netip.AddrPort) {
	b, _ := json.Marshal(p)
	c.in <- fakeDatagram{payload: b, src: net.UDPAddrFromAddrPort(src)}
}

// fakeCodec encodes queries as a bare big-endian transaction id and
// decodes responses from JSON.
type fakeCodec struct{}

func encodeTrnID(trnID uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, trnID)
	return b
}

func (fakeCodec) EncodeNameQuery(_ Name, trnID uint16, _, _ bool) ([]byte, error) {
	return encodeTrnID(trnID), nil
}

func (fakeCodec) EncodeStatusQuery(_ Name, trnID uint16) ([]byte, error) {
	return encodeTrnID(trnID), nil
}

func (fakeCodec) Decode(buf []byte, src netip.AddrPort) (*Packet, error) {
	var p Packet
	if err := json.Unmarshal(buf, &p); err != nil {
		return nil, err
	}
	p.Source = src
	return &p, nil
}

type fakeSide struct {
	ch chan *Packet
}

func (s *fakeSide) Read(ctx context.Context) (*Packet, error) {
	select {
	case p, ok := <-s.ch:
		if !ok {
			return nil, errors.New("side channel closed")
		}
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newTestTransaction(conn *fakeConn) *Transaction {
	return &Transaction{
		Dial: func(bool) (net.PacketConn, error) { return conn, nil },
	}
}

func acceptResponse(p *Packet) bool { return p.Response }

func TestExchangeTrnIDMismatch(t *testing.T) {
	conn := newFakeConn()
	tr := newTestTransaction(conn)

	good := netip.MustParseAddr("10.0.0.7")
	conn.deliver(&Packet{TrnID: 0x5678, Response: true}, testSrc)
	conn.deliver(&Packet{
		TrnID:    0x1234,
		Response: true,
		Answers:  []NameRecord{{Addr: good}},
	}, testSrc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := tr.Exchange(ctx, testDest, false,
		encodeTrnID(0x1234), 0x1234, fakeCodec{}, acceptResponse)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if p.TrnID != 0x1234 {
		t.Errorf("accepted wrong transaction id 0x%04x", p.TrnID)
	}
	if len(p.Answers) != 1 || p.Answers[0].Addr != good {
		t.Errorf("unexpected answers: %v", p.Answers)
	}
}

func TestExchangeWildcardTrnID(t *testing.T) {
	conn := newFakeConn()
	tr := newTestTransaction(conn)

	conn.deliver(&Packet{TrnID: 0x0042, Response: true}, testSrc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := tr.Exchange(ctx, testDest, false,
		encodeTrnID(TrnIDWildcard), TrnIDWildcard, fakeCodec{}, acceptResponse)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if p.TrnID != 0x0042 {
		t.Errorf("got trn id 0x%04x", p.TrnID)
	}
}

func TestExchangeRetransmit(t *testing.T) {
	conn := newFakeConn()
	tr := newTestTransaction(conn)
	tr.RetryInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	payload := encodeTrnID(0x1234)
	_, err := tr.Exchange(ctx, testDest, false,
		payload, 0x1234, fakeCodec{}, acceptResponse)
	if err == nil || !err.(net.Error).Timeout() {
		t.Fatalf("expected timeout, got %v", err)
	}

	writes := conn.sentPayloads()
	if len(writes) < 2 {
		t.Fatalf("expected retransmissions, got %d sends", len(writes))
	}
	for i, w := range writes {
		if !bytes.Equal(w, payload) {
			t.Errorf("send %d altered the payload", i)
		}
	}
}

func TestExchangeSideChannelWins(t *testing.T) {
	conn := newFakeConn()
	side := &fakeSide{ch: make(chan *Packet, 1)}
	side.ch <- &Packet{TrnID: 0x1234, Response: true, Source: testSrc}

	tr := newTestTransaction(conn)
	tr.Side = side

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := tr.Exchange(ctx, testDest, false,
		encodeTrnID(0x1234), 0x1234, fakeCodec{}, acceptResponse)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if p.Source != testSrc {
		t.Errorf("unexpected source %s", p.Source)
	}
}

func TestExchangeSideChannelFailureIgnored(t *testing.T) {
	conn := newFakeConn()
	side := &fakeSide{ch: make(chan *Packet)}
	close(side.ch)

	tr := newTestTransaction(conn)
	tr.Side = side

	conn.deliver(&Packet{TrnID: 0x1234, Response: true}, testSrc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := tr.Exchange(ctx, testDest, false,
		encodeTrnID(0x1234), 0x1234, fakeCodec{}, acceptResponse)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if p.TrnID != 0x1234 {
		t.Errorf("got trn id 0x%04x", p.TrnID)
	}
}

func TestExchangeWrongFamilyFiltered(t *testing.T) {
	conn := newFakeConn()
	tr := newTestTransaction(conn)

	v6 := netip.MustParseAddrPort("[2001:db8::1]:137")
	conn.deliver(&Packet{TrnID: 0x1234, Response: true}, v6)
	conn.deliver(&Packet{TrnID: 0x1234, Response: true, RCode: 0}, testSrc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	p, err := tr.Exchange(ctx, testDest, false,
		encodeTrnID(0x1234), 0x1234, fakeCodec{}, acceptResponse)
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if !p.Source.Addr().Is4() {
		t.Errorf("accepted wrong family source %s", p.Source)
	}
}
