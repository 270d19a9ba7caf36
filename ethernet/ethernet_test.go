package ethernet

import (
	"bytes"
	"testing"

	"github.com/nilreach/netcore/buf"
)

type recordingUpper struct {
	payload []byte
	src     Addr
	called  bool
}

func (r *recordingUpper) In(payload []byte, src Addr) error {
	r.payload = append([]byte(nil), payload...)
	r.src = src
	r.called = true
	return nil
}

func TestInDropsShortFrame(t *testing.T) {
	h := New(Addr{1, 2, 3, 4, 5, 6}, func([]byte) error { return nil })
	if err := h.In(make([]byte, 10)); err != errShort {
		t.Fatalf("In(short) = %v, want errShort", err)
	}
}

func TestInDropsForeignDestination(t *testing.T) {
	own := Addr{1, 2, 3, 4, 5, 6}
	h := New(own, func([]byte) error { return nil })
	u := &recordingUpper{}
	h.Register(TypeIPv4, u)

	frame := make([]byte, HeaderLen+4)
	copy(frame[0:6], Addr{9, 9, 9, 9, 9, 9}[:])
	frame[12], frame[13] = 0x08, 0x00

	if err := h.In(frame); err != nil {
		t.Fatalf("In: %v", err)
	}
	if u.called {
		t.Fatal("upper handler invoked for foreign destination")
	}
}

func TestInDeliversToRegisteredHandler(t *testing.T) {
	own := Addr{1, 2, 3, 4, 5, 6}
	h := New(own, func([]byte) error { return nil })
	u := &recordingUpper{}
	h.Register(TypeIPv4, u)

	src := Addr{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	frame := make([]byte, HeaderLen+3)
	copy(frame[0:6], own[:])
	copy(frame[6:12], src[:])
	frame[12], frame[13] = 0x08, 0x00
	copy(frame[14:], []byte("abc"))

	if err := h.In(frame); err != nil {
		t.Fatalf("In: %v", err)
	}
	if !u.called || !bytes.Equal(u.payload, []byte("abc")) || u.src != src {
		t.Fatalf("upper handler got payload=%v src=%v, want abc/%v", u.payload, u.src, src)
	}
}

func TestOutPadsAndPrependsHeader(t *testing.T) {
	own := Addr{1, 2, 3, 4, 5, 6}
	var sent []byte
	h := New(own, func(f []byte) error { sent = append([]byte(nil), f...); return nil })

	b := buf.New(4)
	copy(b.Data(), []byte{1, 2, 3, 4})
	dst := Addr{9, 9, 9, 9, 9, 9}

	if err := h.Out(b, dst, TypeIPv4); err != nil {
		t.Fatalf("Out: %v", err)
	}
	if len(sent) != HeaderLen+MinTransportUnit {
		t.Fatalf("sent frame len = %d, want %d", len(sent), HeaderLen+MinTransportUnit)
	}
	if Addr(sent[0:6]) != dst {
		t.Fatalf("dst mismatch: %v", sent[0:6])
	}
	if Addr(sent[6:12]) != own {
		t.Fatalf("src mismatch: %v", sent[6:12])
	}
	if sent[12] != 0x08 || sent[13] != 0x00 {
		t.Fatalf("ethertype mismatch: %v %v", sent[12], sent[13])
	}
}
