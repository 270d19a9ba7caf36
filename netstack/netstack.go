// Package netstack wires the Ethernet, ARP, IPv4, ICMP and UDP layers into
// a single poll-driven stack instance, mirroring the ethernet_init ->
// arp_init -> ip_init -> icmp_init -> udp_init initialization order.
package netstack

import (
	"context"
	"log/slog"
	"time"

	"github.com/nilreach/netcore/arp"
	"github.com/nilreach/netcore/driver"
	"github.com/nilreach/netcore/ethernet"
	"github.com/nilreach/netcore/internal/metrics"
	"github.com/nilreach/netcore/internal/slogx"
	"github.com/nilreach/netcore/ipv4"
	"github.com/nilreach/netcore/ipv4/icmpv4"
	"github.com/nilreach/netcore/udp"
)

// Config describes the single directly-attached interface and the tunables
// for ARP table/queue lifetime.
type Config struct {
	MAC ethernet.Addr
	IP  arp.Addr
	MTU int

	ARPTableTTL    time.Duration
	ARPMinInterval time.Duration
}

// Stack is the complete packet-processing pipeline: driver <-> Ethernet <->
// {ARP, IPv4 <-> {ICMP, UDP}}.
type Stack struct {
	drv driver.Driver
	log *slog.Logger

	Ethernet *ethernet.Handler
	ARP      *arp.Resolver
	IPv4     *ipv4.Handler
	ICMP     *icmpv4.Handler
	UDP      *udp.Handler

	rxbuf [65536]byte
}

// New constructs a Stack bound to drv, wiring layers in their required
// initialization order, and emits the gratuitous self-announce ARP request.
func New(drv driver.Driver, cfg Config, log *slog.Logger) *Stack {
	if log == nil {
		log = slog.Default()
	}
	s := &Stack{drv: drv, log: log}

	s.Ethernet = ethernet.New(cfg.MAC, s.send)
	s.ARP = arp.New(cfg.MAC, cfg.IP, s.Ethernet, arp.Config{
		TableTTL:   cfg.ARPTableTTL,
		PendingTTL: cfg.ARPMinInterval,
	})
	s.Ethernet.Register(ethernet.TypeARP, s.ARP)

	s.IPv4 = ipv4.New(cfg.IP, cfg.MTU, s.ARP)
	s.Ethernet.Register(ethernet.TypeIPv4, s.IPv4)

	s.ICMP = icmpv4.New(s.IPv4)
	s.IPv4.Register(ipv4.ProtoICMP, s.ICMP)
	s.IPv4.SetUnreachable(s.ICMP)

	s.UDP = udp.New(cfg.IP, s.IPv4, s.ICMP)
	s.IPv4.Register(ipv4.ProtoUDP, s.UDP)

	s.log.Info("netstack: initialized", slogx.MAC("mac", cfg.MAC), slogx.IPv4("ip", cfg.IP))
	if err := s.ARP.Announce(); err != nil {
		s.log.Warn("netstack: gratuitous announce failed", slog.Any("err", err))
	}
	return s
}

// OpenUDP registers an application handler on a UDP port.
func (s *Stack) OpenUDP(port uint16, fn udp.HandlerFunc) bool {
	ok := s.UDP.Open(port, fn)
	metrics.UDPOpenPorts.Inc()
	return ok
}

// CloseUDP removes the handler registered on a UDP port.
func (s *Stack) CloseUDP(port uint16) {
	s.UDP.Close(port)
	metrics.UDPOpenPorts.Dec()
}

// SendUDP transmits data as a UDP datagram from srcPort to dstIP:dstPort.
func (s *Stack) SendUDP(data []byte, srcPort uint16, dstIP arp.Addr, dstPort uint16) error {
	return s.UDP.Send(data, srcPort, dstIP, dstPort)
}

func (s *Stack) send(frame []byte) error {
	metrics.FramesSent.Inc()
	return s.drv.Send(frame)
}

// Poll drains at most one frame from the driver and runs it through the
// entire ingress pipeline to completion, single-threaded and
// run-to-completion. It returns (false, nil) when the driver had no frame
// ready.
func (s *Stack) Poll() (bool, error) {
	n, err := s.drv.Recv(s.rxbuf[:])
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if err := s.Ethernet.In(s.rxbuf[:n]); err != nil {
		s.log.Debug("netstack: dropped inbound frame", slog.Any("err", err))
	}
	return true, nil
}

// Run calls Poll in a loop until ctx is cancelled.
func (s *Stack) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		ok, err := s.Poll()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
	}
}
