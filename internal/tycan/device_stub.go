//go:build !linux

package tycan

import "errors"

// errUnsupported is returned by the non-Linux stub since raw AF_CAN sockets
// are a Linux-only facility.
var errUnsupported = errors.New("tycan: socketcan backend unsupported on this platform")

type device struct{}

func openDevice(iface string, selfID uint8) (*device, error) {
	return nil, errUnsupported
}

func (d *device) ReadFrame(fr *RawFrame) error { return errUnsupported }
func (d *device) WriteFrame(fr RawFrame) error { return errUnsupported }
func (d *device) Close() error                 { return nil }
