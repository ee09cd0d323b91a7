// Package nbt drives NetBIOS name service exchanges: a single
// transaction with retransmission, name and node-status queries on top
// of it, and a staggered multi-destination scheduler.
//
// Wire-format encoding and decoding is delegated to a [Codec]; this
// package only owns the exchange and validation logic.
package nbt

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net/netip"
	"time"
)

const (
	// Port is the NetBIOS name service port.
	Port = 137

	// TrnIDWildcard matches any transaction id. The generator never
	// produces it.
	TrnIDWildcard uint16 = 0xffff

	// GroupFlag marks an answer record as a group name rather than
	// a globally unique one.
	GroupFlag uint16 = 0x8000

	// DefaultRetryInterval is how long after a send the payload is
	// retransmitted when no terminal result has occurred.
	DefaultRetryInterval = time.Second
)

// A Name identifies what is being queried: a NetBIOS name plus its
// one-byte type suffix.
type Name struct {
	Name string
	Type uint8
}

func (n Name) String() string {
	return fmt.Sprintf("%s#%02x", n.Name, n.Type)
}

// NewTrnID returns a fresh random 15-bit nonzero transaction id.
func NewTrnID() uint16 {
	var b [2]byte

	for {
		_, _ = rand.Read(b[:])
		if id := binary.BigEndian.Uint16(b[:]) % 0x7fff; id != 0 {
			return id
		}
	}
}

// A NameRecord is one address entry of a positive name query response.
type NameRecord struct {
	Addr  netip.Addr
	Flags uint16
}

// IsGroup reports whether the record names a group rather than a
// unique owner.
func (r NameRecord) IsGroup() bool {
	return r.Flags&GroupFlag != 0
}

// A StatusRecord is one name entry of a node status response.
type StatusRecord struct {
	Name  string
	Type  uint8
	Flags uint8
}

// A Packet is the decoded form of a name service datagram.
type Packet struct {
	TrnID     uint16
	Opcode    uint8
	Response  bool
	Broadcast bool
	RCode     uint8

	Answers  []NameRecord
	Statuses []StatusRecord

	Source netip.AddrPort
}

// A Codec translates between logical queries and wire bytes.
// Decode failures mean "not a valid reply"; the transaction keeps
// waiting rather than failing.
type Codec interface {
	// EncodeNameQuery produces the wire form of a name query.
	EncodeNameQuery(q Name, trnID uint16, bcast, recurse bool) ([]byte, error)

	// EncodeStatusQuery produces the wire form of a node status
	// query.
	EncodeStatusQuery(q Name, trnID uint16) ([]byte, error)

	// Decode parses a received datagram.
	Decode(buf []byte, src netip.AddrPort) (*Packet, error)
}

// A Validator judges candidate response packets. Returning true
// terminates the exchange with this packet; returning false discards
// it and keeps waiting.
type Validator func(*Packet) bool
