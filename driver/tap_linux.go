//go:build linux

package driver

import (
	"fmt"

	"github.com/songgao/water"
)

// Tap is a Driver backed by a Linux TAP character device.
type Tap struct {
	iface *water.Interface
}

// NewTap creates (or attaches to, if name already exists) a TAP interface.
// An empty name lets the kernel assign one (tapN).
func NewTap(name string) (*Tap, error) {
	cfg := water.Config{DeviceType: water.TAP}
	cfg.Name = name
	iface, err := water.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("driver: opening tap device: %w", err)
	}
	return &Tap{iface: iface}, nil
}

// Name returns the kernel-assigned or configured interface name.
func (t *Tap) Name() string { return t.iface.Name() }

func (t *Tap) Send(frame []byte) error {
	_, err := t.iface.Write(frame)
	return err
}

func (t *Tap) Recv(frame []byte) (int, error) {
	return t.iface.Read(frame)
}

func (t *Tap) Close() error {
	return t.iface.Close()
}
