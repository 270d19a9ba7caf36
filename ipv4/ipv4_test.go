package ipv4

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/nilreach/netcore/arp"
	"github.com/nilreach/netcore/buf"
	"github.com/nilreach/netcore/ethernet"
	"github.com/nilreach/netcore/internal/checksum"
)

type fakeEthernet struct {
	frames [][]byte
}

func (f *fakeEthernet) Out(b *buf.Buffer, dst ethernet.Addr, typ ethernet.Type) error {
	f.frames = append(f.frames, append([]byte(nil), b.Data()...))
	return nil
}

type recordingUpper struct {
	payload []byte
	header  []byte
	src     arp.Addr
}

func (r *recordingUpper) In(payload []byte, header []byte, src arp.Addr) error {
	r.payload = append([]byte(nil), payload...)
	r.header = append([]byte(nil), header...)
	r.src = src
	return nil
}

type recordingUnreachable struct {
	called bool
	code   uint8
}

func (r *recordingUnreachable) Unreachable(offending []byte, src arp.Addr, code uint8) error {
	r.called = true
	r.code = code
	return nil
}

var (
	ownIP = arp.Addr{10, 0, 0, 15}
	peerIP = arp.Addr{10, 0, 0, 1}
)

func newHandler() (*Handler, *fakeEthernet) {
	eth := &fakeEthernet{}
	resolver := arp.New(ethernet.Addr{1, 2, 3, 4, 5, 6}, ownIP, eth, arp.Config{TableTTL: time.Hour, PendingTTL: time.Second})
	resolver.In(arpReply(), ethernet.Addr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	return New(ownIP, 1500, resolver), eth
}

func arpReply() []byte {
	pkt := make([]byte, arp.HeaderLen)
	binary.BigEndian.PutUint16(pkt[0:2], 1)
	binary.BigEndian.PutUint16(pkt[2:4], 0x0800)
	pkt[4], pkt[5] = 6, 4
	binary.BigEndian.PutUint16(pkt[6:8], uint16(arp.OpReply))
	copy(pkt[8:14], []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})
	copy(pkt[14:18], peerIP[:])
	copy(pkt[18:24], []byte{1, 2, 3, 4, 5, 6})
	copy(pkt[24:28], ownIP[:])
	return pkt
}

func buildIPv4(payload []byte, proto Proto, src, dst arp.Addr) []byte {
	pkt := make([]byte, HeaderLen+len(payload))
	pkt[0] = 0x45
	binary.BigEndian.PutUint16(pkt[2:4], uint16(len(pkt)))
	pkt[8] = DefaultTTL
	pkt[9] = byte(proto)
	copy(pkt[12:16], src[:])
	copy(pkt[16:20], dst[:])
	binary.BigEndian.PutUint16(pkt[10:12], checksum.IPv4(pkt[:HeaderLen]))
	copy(pkt[HeaderLen:], payload)
	return pkt
}

func TestInDeliversToUpper(t *testing.T) {
	h, _ := newHandler()
	u := &recordingUpper{}
	h.Register(ProtoUDP, u)

	pkt := buildIPv4([]byte("hello"), ProtoUDP, peerIP, ownIP)
	if err := h.In(pkt, ethernet.Addr{}); err != nil {
		t.Fatalf("In: %v", err)
	}
	if string(u.payload) != "hello" || u.src != peerIP {
		t.Fatalf("upper got %q from %v, want hello from %v", u.payload, u.src, peerIP)
	}
}

func TestInRejectsBadChecksum(t *testing.T) {
	h, _ := newHandler()
	pkt := buildIPv4([]byte("x"), ProtoUDP, peerIP, ownIP)
	pkt[10] ^= 0xff
	if err := h.In(pkt, ethernet.Addr{}); err != errChecksum {
		t.Fatalf("In(bad checksum) = %v, want errChecksum", err)
	}
}

func TestInRejectsForeignDestination(t *testing.T) {
	h, _ := newHandler()
	other := arp.Addr{1, 1, 1, 1}
	pkt := buildIPv4([]byte("x"), ProtoUDP, peerIP, other)
	if err := h.In(pkt, ethernet.Addr{}); err != errForeignDst {
		t.Fatalf("In(foreign dst) = %v, want errForeignDst", err)
	}
}

func TestInEmitsProtocolUnreachable(t *testing.T) {
	h, _ := newHandler()
	u := &recordingUnreachable{}
	h.SetUnreachable(u)

	pkt := buildIPv4([]byte("x"), Proto(99), peerIP, ownIP)
	if err := h.In(pkt, ethernet.Addr{}); err != nil {
		t.Fatalf("In: %v", err)
	}
	if !u.called || u.code != codeProtocolUnreachable {
		t.Fatalf("unreachable called=%v code=%d, want true/%d", u.called, u.code, codeProtocolUnreachable)
	}
}

func TestOutSingleFragment(t *testing.T) {
	h, eth := newHandler()
	b := buf.New(4)
	copy(b.Data(), []byte{1, 2, 3, 4})
	if err := h.Out(b, peerIP, ProtoUDP); err != nil {
		t.Fatalf("Out: %v", err)
	}
	if len(eth.frames) != 1 {
		t.Fatalf("expected one fragment, got %d", len(eth.frames))
	}
	frame := eth.frames[0]
	if frame[6]&0x20 != 0 { // MF bit of the flags byte
		t.Fatal("single fragment must not set MF")
	}
}

func TestFragmentationLaw(t *testing.T) {
	h, eth := newHandler()
	payload := make([]byte, 2008) // UDP payload 2000 + 8-byte UDP header, simulated directly
	for i := range payload {
		payload[i] = byte(i)
	}
	b := buf.New(len(payload))
	copy(b.Data(), payload)

	if err := h.Out(b, peerIP, ProtoUDP); err != nil {
		t.Fatalf("Out: %v", err)
	}
	if len(eth.frames) != 2 {
		t.Fatalf("expected 2 fragments for 2008-byte payload, got %d", len(eth.frames))
	}

	id0 := binary.BigEndian.Uint16(eth.frames[0][4:6])
	id1 := binary.BigEndian.Uint16(eth.frames[1][4:6])
	if id0 != id1 {
		t.Fatalf("fragments do not share an id: %d != %d", id0, id1)
	}

	flagsOff0 := binary.BigEndian.Uint16(eth.frames[0][6:8])
	flagsOff1 := binary.BigEndian.Uint16(eth.frames[1][6:8])
	if flagsOff0&0x1fff != 0 {
		t.Fatalf("first fragment offset = %d, want 0", flagsOff0&0x1fff)
	}
	if flagsOff0&0x2000 == 0 {
		t.Fatal("first fragment must have MF set")
	}
	if flagsOff1&0x2000 != 0 {
		t.Fatal("last fragment must not have MF set")
	}
	if flagsOff1&0x1fff != 185 {
		t.Fatalf("second fragment offset = %d, want 185", flagsOff1&0x1fff)
	}

	len0 := binary.BigEndian.Uint16(eth.frames[0][2:4])
	len1 := binary.BigEndian.Uint16(eth.frames[1][2:4])
	if int(len0-HeaderLen)+int(len1-HeaderLen) != len(payload) {
		t.Fatalf("fragment payloads do not sum to original length: %d + %d != %d", len0-HeaderLen, len1-HeaderLen, len(payload))
	}
}
