package application

import (
	"context"

	"github.com/shannmu/tcsp-server/internal/dispatch"
	"github.com/shannmu/tcsp-server/internal/envelope"
)

// Echo returns the request payload unchanged.
type Echo struct{}

var _ dispatch.Application = Echo{}

func (Echo) ApplicationID() uint8 { return dispatch.AppEcho }
func (Echo) Name() string         { return "echo" }

func (Echo) Handle(_ context.Context, req *envelope.Frame, _ int) (*envelope.Frame, error) {
	payload := append([]byte(nil), req.Buf.Data()...)
	return envelope.NewFrame(dispatch.AppEcho, req.Buf.Meta, payload)
}
