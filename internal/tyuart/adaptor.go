package tyuart

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shannmu/tcsp-server/internal/bus"
	"github.com/shannmu/tcsp-server/internal/buffer"
	"github.com/shannmu/tcsp-server/internal/logging"
	"github.com/shannmu/tcsp-server/internal/serial"
	"github.com/shannmu/tcsp-server/internal/tcspmetrics"
	"github.com/shannmu/tcsp-server/internal/transport"
)

const (
	headerSlack = headerSize + subHeaderLen // sentinel+platform_id+data_len + data_type+command_type+req_id
	txQueueSize = 64
)

// Adaptor implements bus.Adaptor over the Ty UART vendor protocol: a
// fixed-sentinel, length-prefixed wire format read off a blocking serial
// port and buffered through a resynchronising stream decoder.
type Adaptor struct {
	port     serial.Port
	platform uint8
	reqID    uint8
	codec    Codec

	readBuf *bytes.Buffer
	readMu  sync.Mutex

	sendMu sync.Mutex
	tx     *transport.AsyncTx[[]byte]

	logger *slog.Logger
}

// Config supplies the construction-time parameters for a Ty UART adaptor.
type Config struct {
	Device     string
	Baud       int
	ReadTimeout time.Duration
	PlatformID uint8
	VerifyCRC  bool
	Logger     *slog.Logger
}

// New opens the serial device and returns a ready-to-use adaptor.
func New(ctx context.Context, cfg Config) (*Adaptor, error) {
	port, err := serial.Open(cfg.Device, cfg.Baud, cfg.ReadTimeout)
	if err != nil {
		return nil, bus.WrapBusError(fmt.Errorf("open %s: %w", cfg.Device, err))
	}
	return newWithPort(ctx, port, cfg)
}

func newWithPort(ctx context.Context, port serial.Port, cfg Config) (*Adaptor, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.L()
	}
	a := &Adaptor{
		port:     port,
		platform: cfg.PlatformID,
		codec:    Codec{VerifyCRC: cfg.VerifyCRC},
		readBuf:  &bytes.Buffer{},
		logger:   logger.With("bus", "uart", "device", cfg.Device),
	}
	a.tx = transport.NewAsyncTx(ctx, txQueueSize, a.writeRaw, transport.Hooks[[]byte]{
		OnError: func(err error) { a.logger.Warn("uart_send_error", "error", err) },
		OnAfter: func() { tcspmetrics.UartTxFrames.Inc() },
	})
	return a, nil
}

func (a *Adaptor) writeRaw(wire []byte) error {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()
	_, err := a.port.Write(wire)
	return err
}

var _ bus.Adaptor = (*Adaptor)(nil)

// MTU returns 150 if the UartTelemetry flag is set, else 128.
func (a *Adaptor) MTU(flag buffer.Flag) int {
	if flag.Has(buffer.FlagUartTelemetry) {
		return buffer.MaxLength
	}
	return 128
}

// Close releases the underlying serial port and stops the async writer.
func (a *Adaptor) Close() error {
	a.tx.Close()
	return a.port.Close()
}

// Recv reads from the serial port until one complete Ty UART frame has been
// decoded, then converts it into a protocol-layer Buffer.
func (a *Adaptor) Recv() (*buffer.Buffer, error) {
	a.readMu.Lock()
	defer a.readMu.Unlock()

	var out *buffer.Buffer
	var decodeErr error
	chunk := make([]byte, 256)
	for out == nil && decodeErr == nil {
		n, err := a.port.Read(chunk)
		if err != nil {
			return nil, bus.WrapBusError(err)
		}
		if n == 0 {
			continue
		}
		a.readBuf.Write(chunk[:n])
		a.codec.DecodeStream(a.readBuf, func(fr Frame) {
			if out != nil {
				return
			}
			tcspmetrics.UartRxFrames.Inc()
			buf, err := frameToBuffer(fr)
			if err != nil {
				decodeErr = err
				return
			}
			out = buf
		}, func() { tcspmetrics.IncMalformed(tcspmetrics.BusUART) })
	}
	return out, decodeErr
}

// frameToBuffer converts a decoded wire Frame into a protocol-layer Buffer,
// prepending the synthetic quick-telecommand marker bytes (0x20 0x04 for a
// telecommand, 0x20 0x05 otherwise) when command_type signals the UART
// quick sub-protocol.
func frameToBuffer(fr Frame) (*buffer.Buffer, error) {
	payload := fr.Payload
	if fr.CommandType == CommandUARTQuickTeleCommand {
		marker := quickTeleMetryMarker
		if fr.DataType == DataTypeTelecommand {
			marker = quickTeleCommandMarker
		}
		payload = append(append([]byte(nil), marker[:]...), payload...)
	}
	meta := buffer.Meta{
		DestID:      fr.PlatformID,
		ID:          fr.ReqID,
		DataType:    fr.DataType,
		CommandType: fr.CommandType,
	}
	return buffer.New(meta, payload)
}

// Send writes a protocol-layer Buffer as a Ty UART telecommand frame,
// prepending the 8-byte header and appending the checksum in place using
// the buffer's reserved slack.
func (a *Adaptor) Send(buf *buffer.Buffer) error {
	if buf.Len() > buffer.MaxLength {
		return bus.NewFrameError(fmt.Sprintf("payload too long: %d > %d", buf.Len(), buffer.MaxLength))
	}
	if err := buf.ExpandHead(headerSlack); err != nil {
		return bus.WrapFrameError("uart expand_head", err)
	}
	data := buf.DataMut()

	data[0], data[1] = sentinel0, sentinel1
	data[2] = a.platform

	commandType := buf.Meta.CommandType
	reqID := buf.Meta.ID

	payloadLen := len(data) - headerSlack
	dataLen := uint16(subHeaderLen + payloadLen)
	data[3] = byte(dataLen >> 8)
	data[4] = byte(dataLen)
	data[5] = DataTypeTelecommand
	data[6] = commandType
	data[7] = reqID

	if err := buf.ExpandTail(1); err != nil {
		return bus.WrapFrameError("uart expand_tail checksum", err)
	}
	data = buf.DataMut()
	// Checksum covers data_type through the last payload byte — the
	// sentinel, platform_id and data_len fields are excluded.
	cs := crc8(data[5 : len(data)-1])
	data[len(data)-1] = cs

	wire := append([]byte(nil), data...)
	return a.tx.SendFrame(wire)
}
