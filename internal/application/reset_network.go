package application

import (
	"context"
	"net"
	"os/exec"

	"github.com/shannmu/tcsp-server/internal/dispatch"
	"github.com/shannmu/tcsp-server/internal/envelope"
)

// Network control sub-commands, carried in the first request byte.
const (
	netCmdList     uint8 = 1
	netCmdResetAll uint8 = 2
)

// Network control status codes, carried in the first response byte.
const (
	netStatusOK            uint8 = 1
	netStatusRunError      uint8 = 2
	netStatusUnknownCmd    uint8 = 3
)

// ResetNetwork accepts List/ResetAll/unknown sub-commands: List reports the
// live up/down state and first IPv4 address of each configured interface in
// a fixed 5-bytes-per-interface layout, ResetAll invokes a configurable
// external command and reports success/failure, and unknown sub-commands
// report UnknownCommand.
type ResetNetwork struct {
	// resetCmd runs the network reset; overridable in tests. Defaults to
	// "netplan apply", mirroring the original's Command::new("netplan").
	resetCmd func(ctx context.Context) error
	// interfaces lists the network interfaces to report status for.
	interfaces []string
}

// NewResetNetwork builds a ResetNetwork handler that shells out to
// `netplan apply` and reports status for eth0/eth1, matching the original.
func NewResetNetwork() *ResetNetwork {
	return &ResetNetwork{
		resetCmd:   defaultResetCmd,
		interfaces: []string{"eth0", "eth1"},
	}
}

func defaultResetCmd(ctx context.Context) error {
	return exec.CommandContext(ctx, "netplan", "apply").Run()
}

var _ dispatch.Application = (*ResetNetwork)(nil)

func (*ResetNetwork) ApplicationID() uint8 { return dispatch.AppResetNetwork }
func (*ResetNetwork) Name() string         { return "reset-network" }

func (r *ResetNetwork) Handle(ctx context.Context, req *envelope.Frame, _ int) (*envelope.Frame, error) {
	data := req.Buf.Data()
	if len(data) == 0 {
		return nil, nil
	}

	switch data[0] {
	case netCmdList:
		resp := make([]byte, 2+len(r.interfaces)*5)
		resp[0] = netCmdList
		resp[1] = netStatusOK
		off := 2
		for _, name := range r.interfaces {
			up, ip := interfaceStatus(name)
			resp[off] = boolToByte(up)
			copy(resp[off+1:off+5], ip[:])
			off += 5
		}
		return envelope.NewFrame(dispatch.AppResetNetwork, req.Buf.Meta, resp)

	case netCmdResetAll:
		status := netStatusOK
		if err := r.resetCmd(ctx); err != nil {
			status = netStatusRunError
		}
		return envelope.NewFrame(dispatch.AppResetNetwork, req.Buf.Meta, []byte{data[0], status})

	default:
		return envelope.NewFrame(dispatch.AppResetNetwork, req.Buf.Meta, []byte{data[0], netStatusUnknownCmd})
	}
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// interfaceStatus reports whether name is up and its first IPv4 address,
// looked up the portable way via net.InterfaceByName rather than shelling out to
// ifconfig as the original does.
func interfaceStatus(name string) (up bool, ip [4]byte) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return false, ip
	}
	up = iface.Flags&net.FlagUp != 0
	addrs, err := iface.Addrs()
	if err != nil {
		return up, ip
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		v4 := ipNet.IP.To4()
		if v4 == nil {
			continue
		}
		copy(ip[:], v4)
		break
	}
	return up, ip
}
