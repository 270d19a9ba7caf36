// Package icmpv4 implements ICMP echo-reply generation and
// destination-unreachable replies invoked by IPv4 and UDP when they have
// no handler for an inbound datagram.
package icmpv4

import (
	"encoding/binary"
	"errors"
	"strconv"

	"github.com/nilreach/netcore/arp"
	"github.com/nilreach/netcore/buf"
	"github.com/nilreach/netcore/internal/checksum"
	"github.com/nilreach/netcore/internal/metrics"
	"github.com/nilreach/netcore/ipv4"
)

// HeaderLen is the size in bytes of an ICMP header: type, code, checksum,
// id, sequence.
const HeaderLen = 8

// unreachablePayloadLen is the amount of the offending packet echoed back
// in a destination-unreachable reply: the IP header plus the next 8 bytes.
const unreachablePayloadLen = 20 + 8

const (
	TypeEchoReply   = 0
	TypeEchoRequest = 8
	TypeUnreachable = 3
)

const (
	CodeProtocolUnreachable = 2
	CodePortUnreachable     = 3
)

var errShort = errors.New("icmpv4: packet shorter than header")

// Out is the subset of ipv4.Handler that icmpv4.Handler depends on to
// transmit ICMP messages.
type Out interface {
	Out(b *buf.Buffer, dst arp.Addr, proto ipv4.Proto) error
}

// Handler emits ICMP echo replies and destination-unreachable messages.
type Handler struct {
	ip Out
}

// New constructs a Handler that transmits via the given IPv4 layer.
func New(ip Out) *Handler {
	return &Handler{ip: ip}
}

// In processes a received ICMP message. Echo requests get a full-buffer
// copy echoed back with the type rewritten and the checksum recomputed;
// every other type is ignored.
func (h *Handler) In(pkt []byte, _ []byte, src arp.Addr) error {
	if len(pkt) < HeaderLen {
		return errShort
	}
	if pkt[0] != TypeEchoRequest {
		return nil
	}

	b := buf.New(len(pkt))
	reply := b.Data()
	copy(reply, pkt)
	reply[0] = TypeEchoReply
	reply[2], reply[3] = 0, 0
	binary.BigEndian.PutUint16(reply[2:4], checksum.Generic(reply))

	return h.ip.Out(b, src, ipv4.ProtoICMP)
}

// Unreachable builds and sends a destination-unreachable reply carrying
// the offending packet's IP header plus the next 8 bytes.
func (h *Handler) Unreachable(offending []byte, src arp.Addr, code uint8) error {
	n := unreachablePayloadLen
	if n > len(offending) {
		n = len(offending)
	}
	b := buf.New(HeaderLen + n)
	msg := b.Data()
	msg[0] = TypeUnreachable
	msg[1] = code
	msg[2], msg[3] = 0, 0
	msg[4], msg[5] = 0, 0
	msg[6], msg[7] = 0, 0
	copy(msg[HeaderLen:], offending[:n])
	binary.BigEndian.PutUint16(msg[2:4], checksum.Generic(msg))

	metrics.ICMPUnreachableSent.WithLabelValues(strconv.Itoa(int(code))).Inc()
	return h.ip.Out(b, src, ipv4.ProtoICMP)
}
