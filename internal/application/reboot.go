package application

import (
	"context"
	"log/slog"

	"github.com/shannmu/tcsp-server/internal/dispatch"
	"github.com/shannmu/tcsp-server/internal/envelope"
	"github.com/shannmu/tcsp-server/internal/logging"
)

// Reboot logs the request and acknowledges with a 2-byte "ok" payload; it
// does not actually restart the process, which is out of scope for the
// core dispatch server.
type Reboot struct {
	logger *slog.Logger
}

// NewReboot builds a Reboot handler using the package default logger.
func NewReboot() *Reboot { return &Reboot{logger: logging.L()} }

var _ dispatch.Application = (*Reboot)(nil)

func (*Reboot) ApplicationID() uint8 { return dispatch.AppReboot }
func (*Reboot) Name() string         { return "reboot" }

func (r *Reboot) Handle(_ context.Context, req *envelope.Frame, _ int) (*envelope.Frame, error) {
	r.logger.Info("reboot_requested", "src_id", req.Buf.Meta.SrcID)
	return envelope.NewFrame(dispatch.AppReboot, req.Buf.Meta, []byte("ok"))
}
