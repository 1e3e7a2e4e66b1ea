package application

import (
	"context"
	"fmt"

	"github.com/shannmu/tcsp-server/internal/dispatch"
	"github.com/shannmu/tcsp-server/internal/envelope"
	"github.com/shannmu/tcsp-server/internal/fallback"
)

// udpCustomCode is the original's marker prefix identifying a forwarded UDP
// command, preserved verbatim on the wire into the fallback channel.
var udpCustomCode = [4]byte{0, 0, 0xea, 0x62}

// maxUDPCommandLength bounds how much of the request payload is forwarded,
// matching the original's MAX_UDP_COMMAND_LENGTH.
const maxUDPCommandLength = 124

// UDPBackup prefixes the request with the original's 4-byte UDP_CUSTOM_CODE
// marker and forwards it over the fallback channel; it never responds on
// the bus.
type UDPBackup struct {
	fallback fallback.Client
}

// NewUDPBackup wires a fallback side channel into the UDP-backup handler.
func NewUDPBackup(fb fallback.Client) *UDPBackup { return &UDPBackup{fallback: fb} }

var _ dispatch.Application = (*UDPBackup)(nil)

func (*UDPBackup) ApplicationID() uint8 { return dispatch.AppUDPBackup }
func (*UDPBackup) Name() string         { return "udp-backup" }

func (u *UDPBackup) Handle(ctx context.Context, req *envelope.Frame, _ int) (*envelope.Frame, error) {
	data := req.Buf.Data()
	n := len(data)
	if n > maxUDPCommandLength {
		n = maxUDPCommandLength
	}

	cmd := make([]byte, 0, len(udpCustomCode)+n)
	cmd = append(cmd, udpCustomCode[:]...)
	cmd = append(cmd, data[:n]...)

	ctx, cancel := context.WithTimeout(ctx, fallbackTimeout)
	defer cancel()
	if _, err := u.fallback.Fallback(ctx, cmd); err != nil {
		return nil, fmt.Errorf("udp-backup: fallback: %w", err)
	}
	return nil, nil
}
