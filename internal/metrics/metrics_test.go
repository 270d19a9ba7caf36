package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistered(t *testing.T) {
	FramesReceived.WithLabelValues("0x0800").Inc()
	FramesSent.Inc()
	FramesDropped.WithLabelValues("ethernet", "too_short").Inc()
	ARPTableSize.Set(3)
	ARPPendingSize.Set(1)
	ARPRequestsSent.Inc()
	ARPRepliesSent.Inc()
	IPPacketsIn.WithLabelValues("udp").Inc()
	IPFragmentsSent.Inc()
	ICMPUnreachableSent.WithLabelValues("3").Inc()
	UDPOpenPorts.Set(2)
	UDPDatagramsDelivered.Inc()

	if got := testutil.ToFloat64(ARPTableSize); got != 3 {
		t.Errorf("ARPTableSize = %v, want 3", got)
	}
	if got := testutil.ToFloat64(UDPOpenPorts); got != 2 {
		t.Errorf("UDPOpenPorts = %v, want 2", got)
	}
}

func TestMetricsNamespace(t *testing.T) {
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		name := mf.GetName()
		if strings.HasPrefix(name, "go_") || strings.HasPrefix(name, "process_") || strings.HasPrefix(name, "promhttp_") {
			continue
		}
		if !strings.HasPrefix(name, "netcore_") {
			t.Errorf("metric %q does not have netcore_ prefix", name)
		}
	}
}
