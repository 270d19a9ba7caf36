package driver

import "errors"

// ErrClosed is returned by Recv once a Loopback has been closed and its
// queue drained.
var ErrClosed = errors.New("driver: loopback closed")

// Loopback is an in-memory Driver double: frames sent via Send are
// delivered to the Peer's Recv, and vice versa. It has no concurrency
// story beyond a buffered channel, matching the single-threaded stack it
// feeds.
type Loopback struct {
	out    chan []byte
	Peer   *Loopback
	closed bool
}

// NewLoopbackPair returns two Loopback drivers wired to each other: frames
// sent on a arrive at b's Recv and vice versa.
func NewLoopbackPair() (a, b *Loopback) {
	a = &Loopback{out: make(chan []byte, 64)}
	b = &Loopback{out: make(chan []byte, 64)}
	a.Peer, b.Peer = b, a
	return a, b
}

func (l *Loopback) Send(frame []byte) error {
	if l.closed {
		return ErrClosed
	}
	l.Peer.out <- append([]byte(nil), frame...)
	return nil
}

func (l *Loopback) Recv(frame []byte) (int, error) {
	f, ok := <-l.out
	if !ok {
		return 0, ErrClosed
	}
	return copy(frame, f), nil
}

// RecvNonBlocking returns (0, nil) immediately if no frame is queued,
// instead of blocking — used by tests driving the poll loop manually.
func (l *Loopback) RecvNonBlocking(frame []byte) (int, error) {
	select {
	case f, ok := <-l.out:
		if !ok {
			return 0, ErrClosed
		}
		return copy(frame, f), nil
	default:
		return 0, nil
	}
}

func (l *Loopback) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.out)
	return nil
}
