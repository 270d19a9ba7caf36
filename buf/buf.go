// Package buf implements the contiguous byte buffer primitive shared by every
// layer of the stack: a fixed backing array with a logically active window
// that can grow or shrink at either end without reallocation or copying of
// unrelated bytes.
package buf

import "errors"

// HeaderReserve is the number of bytes of headroom reserved in front of the
// active window by New, sized to absorb the worst-case cumulative header
// push across all layers (UDP 8 + IPv4 20 + Ethernet 14 = 42) with margin
// for re-prepending an IP header ahead of an ICMP unreachable.
const HeaderReserve = 64

// PaddingReserve is the tailroom reserved behind the active window, sized to
// cover Ethernet's minimum transport unit padding (46 bytes).
const PaddingReserve = 46

var (
	// ErrNoCapacity is returned when a header or padding push would exceed
	// the buffer's backing capacity.
	ErrNoCapacity = errors.New("buf: no capacity")
	// ErrUnderflow is returned when a header or padding pop would retract
	// past the start of the active window.
	ErrUnderflow = errors.New("buf: underflow")
)

// Buffer is an owned growable byte region: a backing array of fixed capacity
// with an active window [head, tail) that can be extended or retracted at
// either end. The zero value is not usable; construct with New.
type Buffer struct {
	data []byte
	head int
	tail int
}

// New allocates a Buffer whose active window holds size zero-filled bytes,
// with HeaderReserve bytes of headroom and PaddingReserve bytes of tailroom
// available for in-place header and padding pushes.
func New(size int) *Buffer {
	return NewReserve(size, HeaderReserve, PaddingReserve)
}

// NewReserve is like New but lets the caller size the headroom and tailroom
// explicitly, for callers that need a reserve other than the default.
func NewReserve(size, headroom, tailroom int) *Buffer {
	b := &Buffer{
		data: make([]byte, headroom+size+tailroom),
		head: headroom,
		tail: headroom + size,
	}
	return b
}

// Len returns the number of bytes in the active window.
func (b *Buffer) Len() int { return b.tail - b.head }

// Data returns the active window. The slice aliases the Buffer's backing
// array and is invalidated by any subsequent header/padding operation.
func (b *Buffer) Data() []byte { return b.data[b.head:b.tail] }

// AddHeader extends the active window forward by n bytes, returning the
// newly exposed prefix (zero-filled) so the caller can write a header into
// it. Fails if the headroom is exhausted.
func (b *Buffer) AddHeader(n int) ([]byte, error) {
	if n < 0 || n > b.head {
		return nil, ErrNoCapacity
	}
	b.head -= n
	hdr := b.data[b.head : b.head+n]
	for i := range hdr {
		hdr[i] = 0
	}
	return hdr, nil
}

// RemoveHeader retracts the front of the active window by n bytes,
// discarding them. Fails if n exceeds the current length.
func (b *Buffer) RemoveHeader(n int) error {
	if n < 0 || n > b.Len() {
		return ErrUnderflow
	}
	b.head += n
	return nil
}

// AddPadding extends the active window backward by n bytes, returning the
// newly exposed zero-filled suffix. Fails if the tailroom is exhausted.
func (b *Buffer) AddPadding(n int) ([]byte, error) {
	if n < 0 || n > len(b.data)-b.tail {
		return nil, ErrNoCapacity
	}
	pad := b.data[b.tail : b.tail+n]
	for i := range pad {
		pad[i] = 0
	}
	b.tail += n
	return pad, nil
}

// RemovePadding retracts the back of the active window by n bytes. Fails if
// n exceeds the current length.
func (b *Buffer) RemovePadding(n int) error {
	if n < 0 || n > b.Len() {
		return ErrUnderflow
	}
	b.tail -= n
	return nil
}

// Clone returns a deep copy of b, preserving headroom and tailroom. Used by
// the ARP pending map, whose value-copy hook must not alias the caller's
// buffer.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{
		data: make([]byte, len(b.data)),
		head: b.head,
		tail: b.tail,
	}
	copy(c.data, b.data)
	return c
}

// Copy is the TimedMap value-copy hook for Buffer-valued maps (e.g. the ARP
// pending buffer), matching the shape required by timedmap.Map's CopyFn.
func Copy(b *Buffer) *Buffer { return b.Clone() }
