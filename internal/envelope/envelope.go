// Package envelope implements the 2-byte version+application header that
// wraps every application payload on both buses, along with the two
// bus-flag-driven synthetic dispatch rules (UART telemetry, CAN time
// broadcast) that let some payloads skip the header entirely.
package envelope

import (
	"fmt"

	"github.com/shannmu/tcsp-server/internal/buffer"
)

// VersionID is the only envelope version this codec understands.
const VersionID = 0x20

const (
	applicationTelemetry = 0
	applicationTimeSync  = 1
)

// HeaderSize is the on-wire size of the version+application header.
const HeaderSize = 2

// Frame is the protocol-level view of a bus payload: a Buffer plus a
// decoded application ID and a marker recording whether the envelope header
// has already been materialised into the buffer.
type Frame struct {
	Buf            *buffer.Buffer
	Application    uint8
	headerInserted bool
}

// Decode turns a raw bus Buffer into a dispatch-ready Frame, applying the
// UartTelemetry and CanTimeBroadcast synthetic-dispatch rules before falling
// back to the normal version+application header read.
func Decode(buf *buffer.Buffer) (*Frame, error) {
	switch {
	case buf.Meta.Flag.Has(buffer.FlagUartTelemetry):
		// The UART telemetry application identifies itself purely by flag;
		// no header bytes are present or consumed.
		return &Frame{Buf: buf, Application: applicationTelemetry, headerInserted: true}, nil

	case buf.Meta.Flag.Has(buffer.FlagCanTimeBroadcast):
		// The two 0x50 0x05 marker bytes are already stripped by the CAN
		// adaptor, which hands us exactly the 4 timestamp bytes; this branch
		// only needs to synthesise the application id, not shrink anything.
		return &Frame{Buf: buf, Application: applicationTimeSync, headerInserted: true}, nil

	default:
		if buf.Len() < HeaderSize {
			return nil, fmt.Errorf("envelope: buffer too short for header: %d bytes", buf.Len())
		}
		data := buf.Data()
		version, application := data[0], data[1]
		if version != VersionID {
			return nil, fmt.Errorf("envelope: version 0x%02x does not match 0x%02x", version, VersionID)
		}
		if err := buf.ShrinkHead(HeaderSize); err != nil {
			return nil, fmt.Errorf("envelope: shrink_head: %w", err)
		}
		return &Frame{Buf: buf, Application: application, headerInserted: true}, nil
	}
}

// Encode inserts the version+application header into the frame's buffer, if
// it has not already been inserted, and returns the buffer ready for adaptor
// send.
func Encode(f *Frame) (*buffer.Buffer, error) {
	if f.headerInserted {
		return f.Buf, nil
	}
	if err := f.Buf.ExpandHead(HeaderSize); err != nil {
		return nil, fmt.Errorf("envelope: expand_head: %w", err)
	}
	data := f.Buf.DataMut()
	data[0] = VersionID
	data[1] = f.Application
	f.headerInserted = true
	return f.Buf, nil
}

// NewFrame builds a Frame around a fresh payload for a given application ID,
// ready to be Encode'd with its header not yet inserted.
func NewFrame(application uint8, meta buffer.Meta, payload []byte) (*Frame, error) {
	buf, err := buffer.New(meta, payload)
	if err != nil {
		return nil, err
	}
	return &Frame{Buf: buf, Application: application, headerInserted: false}, nil
}
