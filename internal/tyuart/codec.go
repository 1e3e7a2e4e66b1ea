package tyuart

import (
	"bytes"

	"github.com/shannmu/tcsp-server/internal/buffer"
)

// maxDataLen bounds data_len to the sub-header plus the largest payload a
// Buffer can carry.
const maxDataLen = subHeaderLen + buffer.MaxLength

// Codec decodes a byte stream into Ty UART frames, resynchronising on
// misaligned or malformed input: scan for the sentinel, validate the
// length field, and advance one byte on any violation instead of failing
// the whole stream.
type Codec struct {
	// VerifyCRC gates CRC-8 validation on read. The default (false) mirrors
	// the upstream firmware's observed behaviour of not checking the
	// checksum on receive; set true to enable the feature-gated strict mode.
	VerifyCRC bool
}

// DecodeStream consumes complete frames from in, invoking out for each one
// and advancing in past consumed bytes. onMalformed is invoked each time a
// candidate frame at a sentinel fails validation (length, data_type,
// command_type or, with VerifyCRC, the checksum) and one byte is skipped;
// bytes discarded while scanning for a sentinel are not reported. It leaves trailing partial data in in
// for the next call once it can no longer make progress.
func (c Codec) DecodeStream(in *bytes.Buffer, out func(Frame), onMalformed func()) {
	sentinel := []byte{sentinel0, sentinel1}
	for {
		data := in.Bytes()
		if len(data) < headerSize {
			return
		}
		i := bytes.Index(data, sentinel)
		if i < 0 {
			if in.Len() > 1 {
				last := data[len(data)-1]
				in.Reset()
				_ = in.WriteByte(last)
			}
			return
		}
		if i > 0 {
			in.Next(i)
			continue
		}
		if len(data) < headerSize {
			return
		}

		dataLen := int(data[3])<<8 | int(data[4])
		if dataLen < minDataLen || dataLen > maxDataLen {
			onMalformed()
			in.Next(1)
			continue
		}

		total := headerSize + dataLen + checksumLen
		if len(data) < total {
			return
		}

		dataType := data[5]
		commandType := data[6]
		reqID := data[7]
		payload := data[8 : 8+dataLen-subHeaderLen]
		cs := data[total-1]

		if !isKnownDataType(dataType) || !isKnownCommandType(commandType) {
			onMalformed()
			in.Next(1)
			continue
		}
		if c.VerifyCRC {
			// Checksum covers data_type through the last payload byte —
			// the sentinel, platform_id and data_len fields are excluded.
			if got := crc8(data[5 : total-1]); got != cs {
				onMalformed()
				in.Next(1)
				continue
			}
		}

		fr := Frame{
			PlatformID:  data[2],
			DataType:    dataType,
			CommandType: commandType,
			ReqID:       reqID,
			Payload:     append([]byte(nil), payload...),
			Checksum:    cs,
		}
		out(fr)
		in.Next(total)
	}
}

func isKnownDataType(t uint8) bool { return t == DataTypeTelemetry || t == DataTypeTelecommand }
