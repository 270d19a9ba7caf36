// Package ethernet implements frame demultiplexing on receive and frame
// assembly and padding on transmit for the link layer.
package ethernet

import (
	"encoding/binary"
	"errors"
	"strconv"

	"github.com/nilreach/netcore/buf"
	"github.com/nilreach/netcore/internal/metrics"
)

// HeaderLen is the size in bytes of an Ethernet II header: destination MAC,
// source MAC, ethertype.
const HeaderLen = 14

// MinTransportUnit is the smallest L2 payload length; shorter frames are
// zero-padded at the tail before transmit.
const MinTransportUnit = 46

// Addr is a 6-byte hardware address.
type Addr [6]byte

// Broadcast is the all-ones hardware address.
var Broadcast = Addr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Type is an EtherType field value.
type Type uint16

const (
	TypeIPv4 Type = 0x0800
	TypeARP  Type = 0x0806
)

var errShort = errors.New("ethernet: frame shorter than header")

// Upper is implemented by the protocol handler registered for an EtherType
// (ARP, IPv4). In receives the de-headered payload along with the frame's
// source hardware address.
type Upper interface {
	In(payload []byte, src Addr) error
}

// Handler dispatches received frames to per-EtherType upper-layer handlers
// and emits frames toward the driver.
type Handler struct {
	mac    Addr
	send   func(frame []byte) error
	uppers map[Type]Upper
}

// New constructs a Handler bound to the interface's own hardware address.
// send is called with a complete, padded, ready-to-transmit frame.
func New(mac Addr, send func(frame []byte) error) *Handler {
	return &Handler{mac: mac, send: send, uppers: make(map[Type]Upper)}
}

// Register binds an upper-layer handler to an EtherType, implementing the
// L2 protocol demux table.
func (h *Handler) Register(t Type, u Upper) {
	h.uppers[t] = u
}

// MAC returns the interface's own hardware address.
func (h *Handler) MAC() Addr { return h.mac }

// In processes one received frame: validates length and destination,
// extracts the EtherType, and dispatches the payload to the registered
// upper-layer handler. Frames addressed to neither our MAC nor the
// broadcast address are silently dropped, as are frames with no registered
// handler for their EtherType.
func (h *Handler) In(frame []byte) error {
	if len(frame) < HeaderLen {
		metrics.FramesDropped.WithLabelValues("ethernet", "short").Inc()
		return errShort
	}
	dst := Addr(frame[0:6])
	if dst != h.mac && dst != Broadcast {
		metrics.FramesDropped.WithLabelValues("ethernet", "foreign_destination").Inc()
		return nil
	}
	var src Addr
	copy(src[:], frame[6:12])
	ethType := Type(binary.BigEndian.Uint16(frame[12:14]))

	upper, ok := h.uppers[ethType]
	if !ok {
		metrics.FramesDropped.WithLabelValues("ethernet", "unregistered_ethertype").Inc()
		return nil
	}
	metrics.FramesReceived.WithLabelValues(strconv.Itoa(int(ethType))).Inc()
	return upper.In(frame[HeaderLen:], src)
}

// Out prepends an Ethernet header to b's active window, padding the payload
// to MinTransportUnit first if needed, and hands the resulting frame to the
// driver send function.
func (h *Handler) Out(b *buf.Buffer, dst Addr, ethType Type) error {
	if b.Len() < MinTransportUnit {
		if _, err := b.AddPadding(MinTransportUnit - b.Len()); err != nil {
			return err
		}
	}
	hdr, err := b.AddHeader(HeaderLen)
	if err != nil {
		return err
	}
	copy(hdr[0:6], dst[:])
	copy(hdr[6:12], h.mac[:])
	binary.BigEndian.PutUint16(hdr[12:14], uint16(ethType))
	return h.send(b.Data())
}
