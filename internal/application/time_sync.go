package application

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/shannmu/tcsp-server/internal/dispatch"
	"github.com/shannmu/tcsp-server/internal/envelope"
	"github.com/shannmu/tcsp-server/internal/fallback"
	"github.com/shannmu/tcsp-server/internal/logging"
)

// fallbackTimeout bounds every TimeSync.Handle call to the side-channel's
// contractual 100ms response window.
const fallbackTimeout = 100 * time.Millisecond

// TimeSync parses the 4-byte big-endian Unix timestamp carried by the
// synthetic CAN time-broadcast dispatch, forwards the raw
// bytes over the fallback side-channel padded to 6 bytes, and never
// responds on the bus — matching the original's fire-and-forget semantics.
type TimeSync struct {
	fallback fallback.Client
	logger   *slog.Logger
}

// NewTimeSync wires a fallback side channel into the time-sync handler.
func NewTimeSync(fb fallback.Client) *TimeSync {
	return &TimeSync{fallback: fb, logger: logging.L()}
}

var _ dispatch.Application = (*TimeSync)(nil)

func (*TimeSync) ApplicationID() uint8 { return dispatch.AppTimeSync }
func (*TimeSync) Name() string         { return "time-sync" }

func (t *TimeSync) Handle(ctx context.Context, req *envelope.Frame, _ int) (*envelope.Frame, error) {
	data := req.Buf.Data()
	if len(data) < 4 {
		return nil, fmt.Errorf("time-sync: payload too short: %d bytes", len(data))
	}
	timeSlice := data[:4]

	ctx, cancel := context.WithTimeout(ctx, fallbackTimeout)
	defer cancel()
	padded := []byte{timeSlice[0], timeSlice[1], timeSlice[2], timeSlice[3], 0, 0}
	if _, err := t.fallback.Fallback(ctx, padded); err != nil {
		return nil, fmt.Errorf("time-sync: fallback: %w", err)
	}

	timestamp := binary.BigEndian.Uint32(timeSlice)
	t.logger.Debug("time_sync_received", "unix", timestamp, "datetime", time.Unix(int64(timestamp), 0).UTC())
	return nil, nil
}
