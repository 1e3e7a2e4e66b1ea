//go:build linux

package tycan

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// device is the Linux raw AF_CAN socket implementation of Dev.
type device struct {
	fd int
}

// openDevice opens a raw CAN socket bound to iface and installs the
// destination-ID filter: accept only frames whose
// destination field matches selfID or BroadcastID.
func openDevice(iface string, selfID uint8) (*device, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socket(AF_CAN): %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 0); err != nil {
		if err != unix.ENOPROTOOPT {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("disable CAN FD: %w", err)
		}
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("if %q: %w", iface, err)
	}
	if err := installFilter(fd, selfID); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("install filter: %w", err)
	}
	sa := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind(can@%s): %w", iface, err)
	}
	return &device{fd: fd}, nil
}

// installFilter configures CAN_RAW_FILTER so the kernel only delivers
// frames whose destination-ID field (mask 0x1fe000, offset 13) equals
// selfID or BroadcastID — two filter entries OR'd together.
func installFilter(fd int, selfID uint8) error {
	filters := []unix.CanFilter{
		{Id: uint32(selfID) << IDFilterOffset, Mask: IDFilterMask},
		{Id: uint32(BroadcastID) << IDFilterOffset, Mask: IDFilterMask},
	}
	return unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filters)
}

func (d *device) Close() error { return unix.Close(d.fd) }

// ReadFrame reads one classic CAN frame from the raw CAN socket.
func (d *device) ReadFrame(fr *RawFrame) error {
	var buf [unix.CAN_MTU]byte
	n, err := unix.Read(d.fd, buf[:])
	if err != nil {
		return err
	}
	if n != unix.CAN_MTU {
		return fmt.Errorf("short read: %d", n)
	}
	id := binary.LittleEndian.Uint32(buf[0:4])
	dlc := int(buf[4])
	if dlc < 0 || dlc > 8 {
		dlc = 8
	}
	fr.ID = id
	fr.Len = uint8(dlc)
	copy(fr.Data[:], buf[8:8+dlc])
	return nil
}

// WriteFrame writes one classic CAN frame to the raw CAN socket, always
// setting the extended-frame flag since Ty CAN only uses 29-bit IDs.
func (d *device) WriteFrame(fr RawFrame) error {
	var buf [unix.CAN_MTU]byte
	binary.LittleEndian.PutUint32(buf[0:4], fr.ID|unix.CAN_EFF_FLAG)
	buf[4] = fr.Len
	copy(buf[8:], fr.Data[:fr.Len])
	_, err := unix.Write(d.fd, buf[:])
	return err
}
