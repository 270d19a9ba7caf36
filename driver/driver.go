// Package driver defines the link-layer transport contract and provides
// implementations: a Linux TAP device backed by songgao/water, and an
// in-memory Loopback double for tests.
package driver

// Driver is the external collaborator that moves complete Ethernet frames
// between the stack and the link. FCS is stripped on receive and computed
// on send by the driver, never by the stack.
type Driver interface {
	// Send transmits a complete Ethernet frame.
	Send(frame []byte) error
	// Recv blocks until a frame is available, fills frame and returns its
	// length, or returns 0 if none was available before the driver gave
	// up (e.g. on Close).
	Recv(frame []byte) (n int, err error)
	// Close releases the underlying device.
	Close() error
}
