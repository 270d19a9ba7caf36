// Package ipv4 implements header validation, length and checksum checks,
// upstream protocol demux, and fragmentation on transmit for IPv4 without
// options.
package ipv4

import (
	"encoding/binary"
	"errors"
	"strconv"

	"github.com/nilreach/netcore/arp"
	"github.com/nilreach/netcore/buf"
	"github.com/nilreach/netcore/ethernet"
	"github.com/nilreach/netcore/internal/checksum"
	"github.com/nilreach/netcore/internal/metrics"
)

// HeaderLen is the size in bytes of an IPv4 header with no options.
const HeaderLen = 20

// DefaultTTL is the time-to-live written into every outgoing packet.
const DefaultTTL = 64

// Proto is an IP protocol number.
type Proto uint8

const (
	ProtoICMP Proto = 1
	ProtoUDP  Proto = 17
)

const (
	flagMoreFragments = 1 << 13 // bit 13 of the 16-bit flags+offset field (wire layout: 3 flag bits then 13 offset bits)
)

var (
	errShort      = errors.New("ipv4: packet shorter than header")
	errVersion    = errors.New("ipv4: not version 4")
	errTruncated  = errors.New("ipv4: total length exceeds buffer")
	errChecksum   = errors.New("ipv4: header checksum mismatch")
	errForeignDst = errors.New("ipv4: foreign destination")
)

// Upper is implemented by the protocol handler registered for an IP
// protocol number (ICMP, UDP). In receives the de-headered payload, the
// packet's source address, and (when no handler claims the protocol) is
// used to drive an ICMP protocol-unreachable reply from Handler itself.
type Upper interface {
	// In receives the de-headered payload, the original 20-byte IP
	// header (checksum field restored), and the packet's source
	// address. header lets UDP reconstruct the offending packet for a
	// port-unreachable reply without IPv4 needing to know about it.
	In(payload []byte, header []byte, src arp.Addr) error
}

// Unreachable is implemented by the ICMP layer, invoked when IPv4 has no
// registered handler for an incoming protocol.
type Unreachable interface {
	Unreachable(offending []byte, src arp.Addr, code uint8) error
}

const codeProtocolUnreachable = 2

// Handler validates, demuxes and fragments IPv4 traffic for the single
// attached interface.
type Handler struct {
	ip  arp.Addr
	mtu int
	arp *arp.Resolver

	uppers      map[Proto]Upper
	unreachable Unreachable

	nextID uint16
}

// New constructs a Handler bound to the interface's own IPv4 address, MTU,
// and the ARP resolver used to reach egress next-hops.
func New(ip arp.Addr, mtu int, resolver *arp.Resolver) *Handler {
	return &Handler{
		ip:     ip,
		mtu:    mtu,
		arp:    resolver,
		uppers: make(map[Proto]Upper),
	}
}

// Register binds an upper-layer handler to an IP protocol number,
// implementing the L3 protocol demux table.
func (h *Handler) Register(p Proto, u Upper) {
	h.uppers[p] = u
}

// SetUnreachable wires the ICMP layer used to emit protocol-unreachable
// replies; set once during initialization after ICMP is constructed.
func (h *Handler) SetUnreachable(u Unreachable) {
	h.unreachable = u
}

// In validates a received IPv4 packet and dispatches its payload by
// protocol number. If no handler is registered for the protocol, it
// re-prepends the header and emits an ICMP protocol-unreachable reply.
func (h *Handler) In(pkt []byte, _ ethernet.Addr) error {
	if len(pkt) < HeaderLen {
		metrics.FramesDropped.WithLabelValues("ipv4", "short").Inc()
		return errShort
	}
	version := pkt[0] >> 4
	ihl := int(pkt[0]&0x0f) * 4
	totalLen := int(binary.BigEndian.Uint16(pkt[2:4]))
	if version != 4 {
		metrics.FramesDropped.WithLabelValues("ipv4", "bad_version").Inc()
		return errVersion
	}
	if totalLen > len(pkt) {
		metrics.FramesDropped.WithLabelValues("ipv4", "truncated").Inc()
		return errTruncated
	}

	hdr := pkt[:ihl]
	wantChecksum := binary.BigEndian.Uint16(hdr[10:12])
	hdr[10], hdr[11] = 0, 0
	gotChecksum := checksum.IPv4(hdr)
	binary.BigEndian.PutUint16(hdr[10:12], wantChecksum)
	if gotChecksum != wantChecksum {
		metrics.FramesDropped.WithLabelValues("ipv4", "bad_checksum").Inc()
		return errChecksum
	}

	var dst arp.Addr
	copy(dst[:], pkt[16:20])
	if dst != h.ip {
		metrics.FramesDropped.WithLabelValues("ipv4", "foreign_destination").Inc()
		return errForeignDst
	}

	var src arp.Addr
	copy(src[:], pkt[12:16])

	payload := pkt[ihl:totalLen]
	proto := Proto(pkt[9])

	upper, ok := h.uppers[proto]
	if !ok {
		metrics.FramesDropped.WithLabelValues("ipv4", "unregistered_protocol").Inc()
		if h.unreachable != nil {
			return h.unreachable.Unreachable(pkt[:totalLen], src, codeProtocolUnreachable)
		}
		return nil
	}
	metrics.IPPacketsIn.WithLabelValues(strconv.Itoa(int(proto))).Inc()
	return upper.In(payload, hdr, src)
}

// Out transmits b's active window as one or more IPv4 fragments addressed
// to dst, via ARP resolution and the Ethernet layer.
func (h *Handler) Out(b *buf.Buffer, dst arp.Addr, proto Proto) error {
	maxPayload := h.mtu - HeaderLen
	if b.Len() <= maxPayload {
		return h.fragmentOut(b, dst, proto, h.id(), 0, false)
	}

	fragSize := (maxPayload / 8) * 8
	payload := append([]byte(nil), b.Data()...)
	id := h.id()
	offset := 0
	for offset < len(payload) {
		n := fragSize
		last := false
		if offset+n >= len(payload) {
			n = len(payload) - offset
			last = true
		}
		frag := buf.New(n)
		copy(frag.Data(), payload[offset:offset+n])
		if err := h.fragmentOut(frag, dst, proto, id, offset/8, !last); err != nil {
			return err
		}
		offset += n
	}
	return nil
}

func (h *Handler) fragmentOut(b *buf.Buffer, dst arp.Addr, proto Proto, id uint16, offset8 int, mf bool) error {
	hdr, err := b.AddHeader(HeaderLen)
	if err != nil {
		return err
	}
	hdr[0] = 0x40 | 5 // version 4, ihl 5
	hdr[1] = 0
	binary.BigEndian.PutUint16(hdr[2:4], uint16(b.Len()))
	binary.BigEndian.PutUint16(hdr[4:6], id)
	flagsOffset := uint16(offset8 & 0x1fff)
	if mf {
		flagsOffset |= flagMoreFragments
	}
	binary.BigEndian.PutUint16(hdr[6:8], flagsOffset)
	hdr[8] = DefaultTTL
	hdr[9] = byte(proto)
	hdr[10], hdr[11] = 0, 0
	copy(hdr[12:16], h.ip[:])
	copy(hdr[16:20], dst[:])
	binary.BigEndian.PutUint16(hdr[10:12], checksum.IPv4(hdr))
	metrics.IPFragmentsSent.Inc()

	return h.arp.Out(b, dst)
}

func (h *Handler) id() uint16 {
	id := h.nextID
	h.nextID++ // 16-bit counter; overflow wraps and is acceptable.
	return id
}
