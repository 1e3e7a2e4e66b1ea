package tycan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/shannmu/tcsp-server/internal/bus"
	"github.com/shannmu/tcsp-server/internal/buffer"
	"github.com/shannmu/tcsp-server/internal/logging"
	"github.com/shannmu/tcsp-server/internal/slot"
	"github.com/shannmu/tcsp-server/internal/transport"
)

const (
	singleHeaderSize = 2
	multiHeaderSize  = 4
	maxSendLen       = 144
	maxSingleDataLen = 6
	canChunkSize     = 8

	txQueueSize      = 64
	recoveryBound    = 10 * time.Second
	recoveryInterval = 1 * time.Second
)

// Adaptor implements bus.Adaptor over the Ty CAN vendor protocol: CAN-ID
// bit-packed framing, single/multi-frame reassembly, time-broadcast
// decoding, and interface reset/recovery.
type Adaptor struct {
	selfID     uint8
	primaryIf  string
	secondaryIf string
	bitrate    int

	dev   Dev
	iface ifaceController

	slots *slot.Table
	pid   atomic.Uint32

	sendMu sync.Mutex
	tx     *transport.AsyncTx[RawFrame]

	logger *slog.Logger
}

// Config supplies the construction-time parameters for a Ty CAN adaptor.
type Config struct {
	SelfID      uint8
	PrimaryIf   string
	SecondaryIf string
	Bitrate     int
	Logger      *slog.Logger
}

// New opens the primary CAN interface, installs the destination-ID filter,
// and returns a ready-to-use adaptor. The caller must hold root privileges;
// opening the raw socket will fail otherwise.
func New(ctx context.Context, cfg Config) (*Adaptor, error) {
	dev, err := openDevice(cfg.PrimaryIf, cfg.SelfID)
	if err != nil {
		return nil, bus.WrapBusError(fmt.Errorf("open %s: %w", cfg.PrimaryIf, err))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.L()
	}
	a := &Adaptor{
		selfID:      cfg.SelfID,
		primaryIf:   cfg.PrimaryIf,
		secondaryIf: cfg.SecondaryIf,
		bitrate:     cfg.Bitrate,
		dev:         dev,
		iface:       newIPLinkController(),
		slots:       slot.NewTable(),
		logger:      logger.With("bus", "can", "iface", cfg.PrimaryIf),
	}
	a.tx = transport.NewAsyncTx(ctx, txQueueSize, a.writeRaw, transport.Hooks[RawFrame]{
		OnError: func(err error) { a.logger.Warn("can_send_error", "error", err) },
	})
	return a, nil
}

func (a *Adaptor) writeRaw(fr RawFrame) error {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()
	return a.dev.WriteFrame(fr)
}

var _ bus.Adaptor = (*Adaptor)(nil)

// MTU returns the maximum application payload for a Ty CAN transaction; the
// flag parameter is accepted for interface-uniformity with other adaptors
// but Ty CAN does not vary its MTU by flag.
func (a *Adaptor) MTU(buffer.Flag) int { return maxSendLen }

// Close releases the underlying CAN socket and stops the async writer.
func (a *Adaptor) Close() error {
	a.tx.Close()
	return a.dev.Close()
}

// Recv reads and reassembles the next Ty CAN logical frame, applying the
// receive algorithm.
func (a *Adaptor) Recv() (*buffer.Buffer, error) {
	for {
		var raw RawFrame
		if err := a.dev.ReadFrame(&raw); err != nil {
			return nil, bus.WrapBusError(err)
		}
		if raw.IsError() {
			a.logger.Warn("can_error_frame", "id", raw.ID)
			continue
		}
		id := decodeID(raw.ID)
		if id.srcID == a.selfID {
			// Our own echo; not an error, just nothing to deliver this poll.
			return nil, bus.ErrEmpty
		}
		if id.isCSP {
			return nil, bus.NewFrameError("is_csp frame rejected")
		}

		data := raw.Data[:raw.Len]
		switch id.ftype {
		case FrameTypeSingle:
			return a.recvSingle(id, data)
		case FrameTypeMultiFirst:
			if err := a.recvMultiFirst(id, data); err != nil {
				return nil, err
			}
			continue
		case FrameTypeMultiMiddle:
			buf, err := a.recvMultiMiddle(id, data)
			if err != nil {
				return nil, err
			}
			if buf == nil {
				continue
			}
			return buf, nil
		case FrameTypeTimeBroadcast:
			return a.recvTimeBroadcast(id, data)
		case FrameTypeReset:
			a.Restart()
			continue
		default:
			a.logger.Debug("can_unknown_frame_type", "type", id.ftype)
			continue
		}
	}
}

func (a *Adaptor) recvSingle(id canID, data []byte) (*buffer.Buffer, error) {
	if len(data) < singleHeaderSize {
		return nil, bus.NewFrameError("single frame too short")
	}
	ftype, utilities := data[0], data[1]
	if utilities != utilSingleRequest || !isValidRequestType(ftype) {
		return nil, bus.NewFrameError(fmt.Sprintf("single frame header invalid: type=0x%02x utilities=0x%02x", ftype, utilities))
	}
	payload := data[singleHeaderSize:]
	meta := buffer.Meta{SrcID: id.srcID, DestID: id.destID, ID: id.pid, DataType: ftype, CommandType: utilities}
	return buffer.New(meta, payload)
}

func (a *Adaptor) recvMultiFirst(id canID, data []byte) error {
	if len(data) < multiHeaderSize {
		return bus.NewFrameError("multi-first frame too short")
	}
	totalLen := uint16(data[0])<<8 | uint16(data[1])
	if totalLen < 8 {
		return bus.NewFrameError(fmt.Sprintf("multi-first total_len %d below minimum 8", totalLen))
	}
	s := a.slots.At(id.pid)
	s.Reset()
	if err := s.SetTotalLen(totalLen + 3); err != nil {
		return bus.WrapFrameError("multi-first set_total_len", err)
	}
	if err := s.CopyFromSlice(data); err != nil {
		return bus.WrapFrameError("multi-first copy", err)
	}
	return nil
}

func (a *Adaptor) recvMultiMiddle(id canID, data []byte) (*buffer.Buffer, error) {
	s := a.slots.At(id.pid)
	if err := s.CopyFromSlice(data); err != nil {
		s.Reset()
		return nil, bus.WrapFrameError("multi-middle copy", err)
	}
	if !s.IsComplete() {
		return nil, nil
	}
	full := s.Data()
	// Checksum covers every byte from `type` through the last payload byte —
	// the 2-byte length prefix and the trailing checksum byte are excluded.
	covered := full[2 : len(full)-1]
	want := full[len(full)-1]
	got := checksum(covered)
	if got != want {
		s.Reset()
		return nil, bus.NewFrameError(fmt.Sprintf("checksum failed: got 0x%02x want 0x%02x", got, want))
	}
	// full = [total_len(2) type(1) utilities(1) ...payload... checksum(1)]
	body := full[multiHeaderSize : len(full)-1]
	ftype, utilities := full[2], full[3]
	meta := buffer.Meta{SrcID: id.srcID, DestID: id.destID, ID: id.pid, DataType: ftype, CommandType: utilities}
	buf, err := buffer.New(meta, body)
	s.Reset()
	if err != nil {
		return nil, bus.WrapFrameError("multi-middle payload", err)
	}
	return buf, nil
}

func (a *Adaptor) recvTimeBroadcast(id canID, data []byte) (*buffer.Buffer, error) {
	if len(data) != 8 || data[0] != 0x50 || data[1] != 0x05 || data[7] != 0x00 {
		return nil, bus.NewFrameError("malformed time broadcast payload")
	}
	meta := buffer.Meta{SrcID: id.srcID, DestID: id.destID, ID: id.pid, Flag: buffer.FlagCanTimeBroadcast}
	return buffer.New(meta, data[2:6])
}

// Send fragments and transmits a Frame, single or multi as needed.
func (a *Adaptor) Send(buf *buffer.Buffer) error {
	if buf.Meta.Flag.Has(buffer.FlagCanTimeBroadcast) {
		return a.sendTimeBroadcast(buf)
	}
	if buf.Len() > maxSendLen {
		return bus.NewFrameError(fmt.Sprintf("payload too long: %d > %d", buf.Len(), maxSendLen))
	}
	isOBC := buf.Meta.SrcID == OBCID
	pid := uint8(a.pid.Add(1) - 1)
	if buf.Len() <= maxSingleDataLen {
		return a.sendSingle(buf, isOBC, pid)
	}
	return a.sendMulti(buf, isOBC, pid)
}

func (a *Adaptor) sendTimeBroadcast(buf *buffer.Buffer) error {
	if buf.Len() != 4 {
		return bus.NewFrameError(fmt.Sprintf("time broadcast payload must be 4 bytes, got %d", buf.Len()))
	}
	if err := buf.ExpandHead(2); err != nil {
		return bus.WrapFrameError("time broadcast expand_head", err)
	}
	data := buf.DataMut()
	data[0], data[1] = 0x50, 0x05
	if err := buf.ExpandTail(2); err != nil {
		return bus.WrapFrameError("time broadcast expand_tail", err)
	}
	data = buf.DataMut()
	data[len(data)-2], data[len(data)-1] = 0x00, 0x00

	id := canID{pid: 0, ftype: FrameTypeTimeBroadcast, destID: BroadcastID, srcID: OBCID}
	var raw RawFrame
	raw.ID = id.encode() | effFlag
	raw.Len = 8
	copy(raw.Data[:], data)
	return a.tx.SendFrame(raw)
}

func (a *Adaptor) sendSingle(buf *buffer.Buffer, isOBC bool, pid uint8) error {
	ftype, utilities := responseHeader(isOBC)
	if err := buf.ExpandHead(singleHeaderSize); err != nil {
		return bus.WrapFrameError("single expand_head", err)
	}
	data := buf.DataMut()
	data[0], data[1] = ftype, utilities

	id := canID{pid: pid, ftype: FrameTypeSingle, destID: buf.Meta.DestID, srcID: buf.Meta.SrcID}
	var raw RawFrame
	raw.ID = id.encode() | effFlag
	raw.Len = uint8(len(data))
	copy(raw.Data[:], data)
	return a.tx.SendFrame(raw)
}

func (a *Adaptor) sendMulti(buf *buffer.Buffer, isOBC bool, pid uint8) error {
	ftype, utilities := multiHeader(isOBC)
	payloadLen := buf.Len()
	if err := buf.ExpandHead(multiHeaderSize); err != nil {
		return bus.WrapFrameError("multi expand_head", err)
	}
	totalLen := uint16(payloadLen + singleHeaderSize) // type+utilities+payload, excluding the length field and checksum byte
	data := buf.DataMut()
	data[0] = byte(totalLen >> 8)
	data[1] = byte(totalLen)
	data[2] = ftype
	data[3] = utilities

	cs := checksum(data[2:])
	if err := buf.ExpandTail(1); err != nil {
		return bus.WrapFrameError("multi expand_tail checksum", err)
	}
	data = buf.DataMut()
	data[len(data)-1] = cs

	id := canID{pid: pid, ftype: FrameTypeMultiFirst, destID: buf.Meta.DestID, srcID: buf.Meta.SrcID}
	first := data[:canChunkSize]
	var raw RawFrame
	raw.ID = id.encode() | effFlag
	raw.Len = canChunkSize
	copy(raw.Data[:], first)
	if err := a.sendWithRetryOnce(raw); err != nil {
		return err
	}

	id.ftype = FrameTypeMultiMiddle
	for off := canChunkSize; off < len(data); off += canChunkSize {
		end := off + canChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		var r RawFrame
		r.ID = id.encode() | effFlag
		r.Len = uint8(len(chunk))
		copy(r.Data[:], chunk)
		if err := a.tx.SendFrame(r); err != nil {
			return err
		}
	}
	return nil
}

// sendWithRetryOnce sends the first packet of a multi-frame burst, retrying
// the enqueue once if the first attempt returns any error.
func (a *Adaptor) sendWithRetryOnce(raw RawFrame) error {
	err := a.tx.SendFrame(raw)
	if err == nil {
		return nil
	}
	return a.tx.SendFrame(raw)
}

func responseHeader(isOBC bool) (ftype, utilities uint8) {
	if isOBC {
		return typeOBCCommandRequest, utilSingleRequest
	}
	return typeResponse, utilSingleResponse
}

func multiHeader(isOBC bool) (ftype, utilities uint8) {
	if isOBC {
		return typeOBCCommandRequest, utilMultiRequest
	}
	return typeResponse, utilMultiResponse
}

// Restart clears the pid counter and recovers the physical interfaces, per
// the reset and recovery probe.
func (a *Adaptor) Restart() {
	a.pid.Store(0)
	if err := a.resetInterfaces(); err != nil {
		a.logger.Error("can_reset_failed", "error", err)
		return
	}
	a.probeLoopback()
}

func (a *Adaptor) resetInterfaces() error {
	for _, iface := range []string{a.primaryIf, a.secondaryIf} {
		if iface == "" {
			continue
		}
		if err := a.iface.Down(iface); err != nil {
			return fmt.Errorf("down %s: %w", iface, err)
		}
	}
	for _, iface := range []string{a.primaryIf, a.secondaryIf} {
		if iface == "" {
			continue
		}
		if a.bitrate > 0 {
			if err := a.iface.SetBitrate(iface, a.bitrate); err != nil {
				return fmt.Errorf("set bitrate %s: %w", iface, err)
			}
		}
		if err := a.iface.Up(iface); err != nil {
			return fmt.Errorf("up %s: %w", iface, err)
		}
	}
	return nil
}

// probeLoopback sends an Unknown-type frame to itself, retrying with a
// constant 1s backoff for up to 10s, confirming the bus has recovered.
func (a *Adaptor) probeLoopback() {
	op := func() error {
		id := canID{pid: 0, ftype: FrameTypeUnknown, destID: a.selfID, srcID: a.selfID}
		raw := RawFrame{ID: id.encode() | effFlag}
		return a.dev.WriteFrame(raw)
	}
	b := &boundedConstantBackOff{interval: recoveryInterval, deadline: time.Now().Add(recoveryBound)}
	if err := backoff.Retry(op, b); err != nil {
		a.logger.Warn("can_recovery_probe_failed", "error", err)
	}
}

// boundedConstantBackOff retries at a fixed interval until an absolute
// deadline, then signals backoff.Retry to stop. cenkalti/backoff v2's
// ConstantBackOff has no built-in elapsed-time bound, so this composes one
// directly against the BackOff interface.
type boundedConstantBackOff struct {
	interval time.Duration
	deadline time.Time
}

func (b *boundedConstantBackOff) NextBackOff() time.Duration {
	if time.Now().After(b.deadline) {
		return backoff.Stop
	}
	return b.interval
}

func (b *boundedConstantBackOff) Reset() {}
