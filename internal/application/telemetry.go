package application

import (
	"context"

	"github.com/shannmu/tcsp-server/internal/dispatch"
	"github.com/shannmu/tcsp-server/internal/envelope"
)

// Telemetry answers every request with an mtu-2 byte incrementing pattern,
// standing in for a real telemetry source (out of scope; demonstrates the
// Application contract end-to-end).
type Telemetry struct{}

var _ dispatch.Application = Telemetry{}

func (Telemetry) ApplicationID() uint8 { return dispatch.AppTelemetry }
func (Telemetry) Name() string         { return "telemetry" }

func (Telemetry) Handle(_ context.Context, req *envelope.Frame, mtu int) (*envelope.Frame, error) {
	n := mtu - 2
	if n < 0 {
		n = 0
	}
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i)
	}
	meta := req.Buf.Meta
	meta.ExchangeSrcDest()
	return envelope.NewFrame(dispatch.AppTelemetry, meta, payload)
}
