package namequery

import (
	"context"
	"encoding/json"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"darvaza.org/namequery/pkg/errors"
	"darvaza.org/namequery/pkg/nbt"
)

// silentConn swallows writes and blocks reads until closed, like a
// server that never answers.
type silentConn struct {
	closed chan struct{}
	once   sync.Once
}

func newSilentConn() *silentConn {
	return &silentConn{closed: make(chan struct{})}
}

func (c *silentConn) ReadFrom([]byte) (int, net.Addr, error) {
	<-c.closed
	return 0, nil, net.ErrClosed
}

func (*silentConn) WriteTo(p []byte, _ net.Addr) (int, error) { return len(p), nil }

func (c *silentConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (*silentConn) LocalAddr() net.Addr              { return &net.UDPAddr{IP: net.IPv4zero} }
func (*silentConn) SetDeadline(time.Time) error      { return nil }
func (*silentConn) SetReadDeadline(time.Time) error  { return nil }
func (*silentConn) SetWriteDeadline(time.Time) error { return nil }

// answerConn replies to every query with one positive answer.
type answerConn struct {
	silentConn
	answer netip.Addr
	src    netip.AddrPort
	in     chan []byte
}

func newAnswerConn(answer netip.Addr, src netip.AddrPort) *answerConn {
	return &answerConn{
		silentConn: silentConn{closed: make(chan struct{})},
		answer:     answer,
		src:        src,
		in:         make(chan []byte, 4),
	}
}

func (c *answerConn) WriteTo(p []byte, _ net.Addr) (int, error) {
	var q nbt.Packet
	if err := json.Unmarshal(p, &q); err == nil {
		b, _ := json.Marshal(&nbt.Packet{
			TrnID:    q.TrnID,
			Response: true,
			Answers:  []nbt.NameRecord{{Addr: c.answer}},
		})
		select {
		case c.in <- b:
		default:
		}
	}
	return len(p), nil
}

func (c *answerConn) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case b := <-c.in:
		n := copy(p, b)
		return n, net.UDPAddrFromAddrPort(c.src), nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

// jsonCodec carries packets as JSON; queries encode their header
// fields so a test peer can echo the transaction id.
type jsonCodec struct{}

func (jsonCodec) EncodeNameQuery(q nbt.Name, trnID uint16, bcast, _ bool) ([]byte, error) {
	return json.Marshal(&nbt.Packet{TrnID: trnID, Broadcast: bcast})
}

func (jsonCodec) EncodeStatusQuery(_ nbt.Name, trnID uint16) ([]byte, error) {
	return json.Marshal(&nbt.Packet{TrnID: trnID})
}

func (jsonCodec) Decode(buf []byte, src netip.AddrPort) (*nbt.Packet, error) {
	var p nbt.Packet
	if err := json.Unmarshal(buf, &p); err != nil {
		return nil, err
	}
	p.Source = src
	return &p, nil
}

func TestWINSEmptyServerList(t *testing.T) {
	r := newTestResolver(t, Config{Codec: jsonCodec{}})

	_, err := r.resolveWINS(context.Background(), "SOMEHOST", TypeServer)
	if !errors.IsNotSupported(err) {
		t.Errorf("expected fast not-supported failure, got %v", err)
	}
}

func TestWINSMarksDeadOnTimeout(t *testing.T) {
	server := netip.MustParseAddr("192.168.1.44")

	r := newTestResolver(t, Config{
		Codec:          jsonCodec{},
		WINSServers:    map[string][]netip.Addr{"": {server}},
		UnicastTimeout: 30 * time.Millisecond,
	})
	r.tr.Dial = func(bool) (net.PacketConn, error) {
		return newSilentConn(), nil
	}

	_, err := r.resolveWINS(context.Background(), "SOMEHOST", TypeServer)
	if err == nil {
		t.Fatal("expected failure")
	}

	src := r.sourceAddrV4()
	if !r.isDead(server, src) {
		t.Error("unresponsive server not marked dead")
	}

	// dead servers are skipped, leaving no one to ask
	_, err = r.resolveWINS(context.Background(), "SOMEHOST", TypeServer)
	if !errors.IsNotFound(err) {
		t.Errorf("expected not-found with all servers dead, got %v", err)
	}
}

func TestWINSSkipsOwnAddress(t *testing.T) {
	r := newTestResolver(t, Config{
		Codec: jsonCodec{},
		WINSServers: map[string][]netip.Addr{
			"": {netip.MustParseAddr("192.168.1.10")}, // ourselves
		},
	})

	_, err := r.resolveWINS(context.Background(), "SOMEHOST", TypeServer)
	if !errors.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestWINSSuccess(t *testing.T) {
	server := netip.MustParseAddrPort("192.168.1.44:137")
	answer := netip.MustParseAddr("10.0.0.7")

	r := newTestResolver(t, Config{
		Codec:          jsonCodec{},
		WINSServers:    map[string][]netip.Addr{"": {server.Addr()}},
		UnicastTimeout: time.Second,
	})
	r.tr.Dial = func(bool) (net.PacketConn, error) {
		return newAnswerConn(answer, server), nil
	}

	list, err := r.resolveWINS(context.Background(), "SOMEHOST", TypeServer)
	if err != nil {
		t.Fatalf("resolveWINS: %v", err)
	}
	if len(list) != 1 || list[0].Addr() != answer {
		t.Errorf("unexpected result: %v", list)
	}
}
