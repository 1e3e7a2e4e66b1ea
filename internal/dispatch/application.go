package dispatch

import (
	"context"

	"github.com/shannmu/tcsp-server/internal/envelope"
)

// Application is one of up to 256 request/response handlers the dispatch
// server routes decoded frames to by application id.
type Application interface {
	// ApplicationID is this application's stable routing id.
	ApplicationID() uint8
	// Name is an optional human-readable label used only for logging.
	Name() string
	// Handle processes a decoded request frame (its envelope header already
	// removed) and optionally returns a response frame to be sent back with
	// the envelope header re-added. A nil response means nothing is sent.
	Handle(ctx context.Context, req *envelope.Frame, mtu int) (*envelope.Frame, error)
}

// Reserved application ids.
const (
	AppTelemetry    uint8 = 0
	AppTimeSync     uint8 = 1
	AppEcho         uint8 = 2
	AppReboot       uint8 = 3
	AppUpload       uint8 = 4
	AppResetNetwork uint8 = 5
	AppUDPBackup    uint8 = 6
	AppDownload     uint8 = 7
)
