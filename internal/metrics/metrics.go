// Package metrics defines all Prometheus metrics for netcored. All metrics
// use the "netcore_" prefix.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "netcore"

// --- Ethernet / frame metrics ---

var (
	// FramesReceived counts frames accepted by the Ethernet layer, by
	// ethertype.
	FramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_received_total",
		Help:      "Total Ethernet frames accepted, by ethertype.",
	}, []string{"ethertype"})

	// FramesSent counts frames handed to the driver.
	FramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_sent_total",
		Help:      "Total Ethernet frames transmitted.",
	})

	// FramesDropped counts frames dropped at any layer, by reason.
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_dropped_total",
		Help:      "Total frames dropped, by layer and reason.",
	}, []string{"layer", "reason"})
)

// --- ARP metrics ---

var (
	// ARPTableSize is a gauge of live entries in the ARP table.
	ARPTableSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "arp_table_entries",
		Help:      "Number of live entries in the ARP table.",
	})

	// ARPPendingSize is a gauge of buffers queued awaiting resolution.
	ARPPendingSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "arp_pending_entries",
		Help:      "Number of egress buffers queued awaiting ARP resolution.",
	})

	// ARPRequestsSent counts ARP requests emitted.
	ARPRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "arp_requests_sent_total",
		Help:      "Total ARP requests emitted.",
	})

	// ARPRepliesSent counts ARP replies emitted.
	ARPRepliesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "arp_replies_sent_total",
		Help:      "Total ARP replies emitted.",
	})
)

// --- IPv4 / ICMP / UDP metrics ---

var (
	// IPPacketsIn counts accepted IPv4 packets, by protocol.
	IPPacketsIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ip_packets_received_total",
		Help:      "Total IPv4 packets accepted, by protocol.",
	}, []string{"protocol"})

	// IPFragmentsSent counts IPv4 fragments emitted on transmit.
	IPFragmentsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ip_fragments_sent_total",
		Help:      "Total IPv4 fragments transmitted.",
	})

	// ICMPUnreachableSent counts ICMP destination-unreachable replies, by
	// code.
	ICMPUnreachableSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "icmp_unreachable_sent_total",
		Help:      "Total ICMP destination-unreachable replies sent, by code.",
	}, []string{"code"})

	// UDPOpenPorts is a gauge of currently registered UDP port handlers.
	UDPOpenPorts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "udp_open_ports",
		Help:      "Number of UDP ports with a registered handler.",
	})

	// UDPDatagramsDelivered counts datagrams delivered to an application
	// handler.
	UDPDatagramsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "udp_datagrams_delivered_total",
		Help:      "Total UDP datagrams delivered to an open port.",
	})
)
