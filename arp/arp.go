// Package arp implements IPv4-over-Ethernet address resolution: the
// resolve-and-queue state machine that couples egress IP packets to
// delayed ARP resolution, and inbound request/reply handling with
// unconditional table learning.
package arp

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/nilreach/netcore/buf"
	"github.com/nilreach/netcore/ethernet"
	"github.com/nilreach/netcore/internal/metrics"
	"github.com/nilreach/netcore/timedmap"
)

// HeaderLen is the size in bytes of an Ethernet ARP packet: hw_type,
// proto_type, hw_len, proto_len, opcode, sender MAC, sender IP,
// target MAC, target IP.
const HeaderLen = 28

const (
	hwTypeEthernet = 1
	protoTypeIPv4  = 0x0800
	hwLenEthernet  = 6
	protoLenIPv4   = 4
)

// Op is an ARP opcode.
type Op uint16

const (
	OpRequest Op = 1
	OpReply   Op = 2
)

// Addr is an IPv4 address.
type Addr [4]byte

var errShort = errors.New("arp: packet shorter than header")

// Ethernet is the subset of ethernet.Handler that arp.Resolver depends on.
type Ethernet interface {
	Out(b *buf.Buffer, dst ethernet.Addr, ethType ethernet.Type) error
}

// Resolver resolves IPv4 addresses to hardware addresses, holding at most
// one pending egress buffer per unresolved destination IP.
type Resolver struct {
	mac ethernet.Addr
	ip  Addr
	eth Ethernet

	table   *timedmap.Map[Addr, ethernet.Addr]
	pending *timedmap.Map[Addr, *buf.Buffer]
}

// Config holds the TTLs governing the ARP table and pending-buffer map.
type Config struct {
	// TableTTL bounds how long a learned IP-to-MAC mapping is trusted.
	TableTTL time.Duration
	// PendingTTL bounds both the retry rate of outstanding requests and
	// the lifetime of a queued egress buffer.
	PendingTTL time.Duration
}

// New constructs a Resolver bound to the interface's own address pair.
func New(mac ethernet.Addr, ip Addr, eth Ethernet, cfg Config) *Resolver {
	return &Resolver{
		mac:     mac,
		ip:      ip,
		eth:     eth,
		table:   timedmap.New[Addr, ethernet.Addr](0, cfg.TableTTL, nil),
		pending: timedmap.New[Addr, *buf.Buffer](0, cfg.PendingTTL, buf.Copy),
	}
}

// Announce emits a gratuitous ARP request (probe) for the resolver's own
// IP, used at startup to announce presence and detect collisions.
func (r *Resolver) Announce() error {
	return r.request(r.ip)
}

// Out resolves ip and either forwards b to Ethernet immediately, queues it
// pending resolution, or drops it if a resolution is already in flight for
// ip (single-slot, drop-on-contention policy).
func (r *Resolver) Out(b *buf.Buffer, ip Addr) error {
	if mac, ok := r.table.Get(ip); ok {
		return r.eth.Out(b, mac, ethernet.TypeIPv4)
	}
	if r.pending.Has(ip) {
		return nil // a request is already in flight; drop.
	}
	if !r.pending.Set(ip, b) {
		return nil
	}
	metrics.ARPPendingSize.Set(float64(r.pending.Len()))
	return r.request(ip)
}

// In processes one received ARP packet: validates it, unconditionally
// learns sender_ip -> sender_mac, flushes any buffer pending on sender_ip,
// and, when nothing was pending, replies to requests for our own IP.
func (r *Resolver) In(pkt []byte, src ethernet.Addr) error {
	if len(pkt) < HeaderLen {
		return errShort
	}
	hwType := binary.BigEndian.Uint16(pkt[0:2])
	protoType := binary.BigEndian.Uint16(pkt[2:4])
	hwLen := pkt[4]
	protoLen := pkt[5]
	op := Op(binary.BigEndian.Uint16(pkt[6:8]))
	if hwType != hwTypeEthernet || protoType != protoTypeIPv4 ||
		hwLen != hwLenEthernet || protoLen != protoLenIPv4 {
		return nil
	}
	if op != OpRequest && op != OpReply {
		return nil
	}

	var senderMAC ethernet.Addr
	copy(senderMAC[:], pkt[8:14])
	var senderIP Addr
	copy(senderIP[:], pkt[14:18])
	var targetIP Addr
	copy(targetIP[:], pkt[24:28])

	r.table.Set(senderIP, senderMAC)
	metrics.ARPTableSize.Set(float64(r.table.Len()))

	if b, ok := r.pending.Get(senderIP); ok {
		r.pending.Delete(senderIP)
		metrics.ARPPendingSize.Set(float64(r.pending.Len()))
		return r.eth.Out(b, senderMAC, ethernet.TypeIPv4)
	}

	if op == OpRequest && targetIP == r.ip {
		return r.reply(senderMAC, senderIP)
	}
	return nil
}

// Stats reports the current size of the learned address table and the
// queue of buffers awaiting resolution, for operator visibility into a
// running resolver.
type Stats struct {
	TableSize   int
	PendingSize int
}

// Stats returns a snapshot of the resolver's table and pending-queue sizes.
func (r *Resolver) Stats() Stats {
	return Stats{TableSize: r.table.Len(), PendingSize: r.pending.Len()}
}

func (r *Resolver) request(target Addr) error {
	metrics.ARPRequestsSent.Inc()
	return r.emit(ethernet.Broadcast, OpRequest, ethernet.Addr{}, target)
}

func (r *Resolver) reply(dstMAC ethernet.Addr, dstIP Addr) error {
	metrics.ARPRepliesSent.Inc()
	return r.emit(dstMAC, OpReply, dstMAC, dstIP)
}

func (r *Resolver) emit(dst ethernet.Addr, op Op, targetMAC ethernet.Addr, targetIP Addr) error {
	b := buf.New(HeaderLen)
	pkt := b.Data()
	binary.BigEndian.PutUint16(pkt[0:2], hwTypeEthernet)
	binary.BigEndian.PutUint16(pkt[2:4], protoTypeIPv4)
	pkt[4] = hwLenEthernet
	pkt[5] = protoLenIPv4
	binary.BigEndian.PutUint16(pkt[6:8], uint16(op))
	copy(pkt[8:14], r.mac[:])
	copy(pkt[14:18], r.ip[:])
	copy(pkt[18:24], targetMAC[:])
	copy(pkt[24:28], targetIP[:])
	return r.eth.Out(b, dst, ethernet.TypeARP)
}
