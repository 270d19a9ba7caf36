// Package udp implements pseudo-header checksumming and port
// demultiplexing: inbound delivery to per-port application handlers, and
// outbound header assembly.
package udp

import (
	"encoding/binary"
	"errors"

	"github.com/nilreach/netcore/arp"
	"github.com/nilreach/netcore/buf"
	"github.com/nilreach/netcore/internal/checksum"
	"github.com/nilreach/netcore/internal/metrics"
	"github.com/nilreach/netcore/ipv4"
	"github.com/nilreach/netcore/timedmap"
)

// HeaderLen is the size in bytes of a UDP header: source port,
// destination port, length, checksum.
const HeaderLen = 8

var (
	errShort     = errors.New("udp: datagram shorter than header")
	errTruncated = errors.New("udp: total length exceeds buffer")
	errChecksum  = errors.New("udp: checksum mismatch")
)

// Handler func is invoked with the payload delivered to an open port,
// along with the sender's address.
type HandlerFunc func(payload []byte, src arp.Addr, srcPort uint16)

// Out is the subset of ipv4.Handler that udp.Handler depends on to
// transmit datagrams.
type Out interface {
	Out(b *buf.Buffer, dst arp.Addr, proto ipv4.Proto) error
}

// Unreachable is the subset of icmpv4.Handler that udp.Handler depends on
// to report an unopened destination port.
type Unreachable interface {
	Unreachable(offending []byte, src arp.Addr, code uint8) error
}

const codePortUnreachable = 3

// Handler demultiplexes inbound UDP datagrams by destination port and
// assembles outbound ones.
type Handler struct {
	ip          arp.Addr
	out         Out
	unreachable Unreachable

	ports *timedmap.Map[uint16, HandlerFunc]
}

// New constructs a Handler bound to the interface's own IPv4 address.
func New(ip arp.Addr, out Out, unreachable Unreachable) *Handler {
	return &Handler{
		ip:          ip,
		out:         out,
		unreachable: unreachable,
		ports:       timedmap.New[uint16, HandlerFunc](0, 0, nil),
	}
}

// Open registers fn as the handler for port, returning false if the table
// rejects the insertion.
func (h *Handler) Open(port uint16, fn HandlerFunc) bool {
	return h.ports.Set(port, fn)
}

// Close removes the handler registered for port, if any.
func (h *Handler) Close(port uint16) {
	h.ports.Delete(port)
}

// In validates a received UDP datagram and delivers it to the handler
// registered for its destination port. If the checksum (when nonzero) does
// not verify, the datagram is dropped. If no handler is open on the
// destination port, an ICMP port-unreachable reply is sent, reconstructed
// from the given IP header and the first 8 bytes of payload.
func (h *Handler) In(dgram []byte, ipHeader []byte, src arp.Addr) error {
	if len(dgram) < HeaderLen {
		return errShort
	}
	totalLen := int(binary.BigEndian.Uint16(dgram[4:6]))
	if totalLen > len(dgram) {
		return errTruncated
	}
	dgram = dgram[:totalLen]

	wantChecksum := binary.BigEndian.Uint16(dgram[6:8])
	if wantChecksum != 0 {
		dgram[6], dgram[7] = 0, 0
		gotChecksum := checksum.Pseudo(src, h.ip, uint8(ipv4.ProtoUDP), dgram)
		binary.BigEndian.PutUint16(dgram[6:8], wantChecksum)
		if gotChecksum != wantChecksum {
			return errChecksum
		}
	}

	srcPort := binary.BigEndian.Uint16(dgram[0:2])
	dstPort := binary.BigEndian.Uint16(dgram[2:4])

	fn, ok := h.ports.Get(dstPort)
	if !ok {
		metrics.FramesDropped.WithLabelValues("udp", "unopened_port").Inc()
		if h.unreachable != nil {
			offending := append(append([]byte(nil), ipHeader...), dgram[:8]...)
			return h.unreachable.Unreachable(offending, src, codePortUnreachable)
		}
		return nil
	}
	metrics.UDPDatagramsDelivered.Inc()
	fn(dgram[HeaderLen:], src, srcPort)
	return nil
}

// Send populates a new buffer with data and transmits it as a UDP
// datagram from srcPort to dstIP:dstPort.
func (h *Handler) Send(data []byte, srcPort uint16, dstIP arp.Addr, dstPort uint16) error {
	b := buf.New(len(data))
	copy(b.Data(), data)
	return h.Out(b, srcPort, dstIP, dstPort)
}

// Out prepends a UDP header to b's active window, computes the pseudo
// header checksum, and hands the datagram to IPv4.
func (h *Handler) Out(b *buf.Buffer, srcPort uint16, dstIP arp.Addr, dstPort uint16) error {
	hdr, err := b.AddHeader(HeaderLen)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(hdr[0:2], srcPort)
	binary.BigEndian.PutUint16(hdr[2:4], dstPort)
	binary.BigEndian.PutUint16(hdr[4:6], uint16(b.Len()))
	hdr[6], hdr[7] = 0, 0
	crc := checksum.Pseudo(h.ip, dstIP, uint8(ipv4.ProtoUDP), b.Data())
	binary.BigEndian.PutUint16(hdr[6:8], crc)

	return h.out.Out(b, dstIP, ipv4.ProtoUDP)
}
