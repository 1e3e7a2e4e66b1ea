// Package tyuart implements the Ty UART vendor framing protocol: a
// fixed-sentinel, length-prefixed wire format with a CRC-8 trailer, carried
// over a blocking serial port.
package tyuart

// Wire layout constants: two sentinel bytes, platform_id, a 2-byte
// big-endian data_len, data_type, command_type, req_id, payload, checksum.
const (
	sentinel0 = 0xEB
	sentinel1 = 0x90

	headerSize   = 5 // sentinel(2) + platform_id(1) + data_len(2)
	subHeaderLen = 3 // data_type(1) + command_type(1) + req_id(1)
	checksumLen  = 1

	// minDataLen is the smallest legal data_len: the 3 sub-header bytes with
	// a zero-length payload.
	minDataLen = subHeaderLen
)

// data_type values.
const (
	DataTypeTelemetry   uint8 = 0x05
	DataTypeTelecommand uint8 = 0x35
)

// command_type values, mirroring the closed set the device emits.
const (
	CommandBasicTeleCommand     uint8 = 0x10
	CommandGeneralTeleCommand   uint8 = 0x11
	CommandUDPTeleCommandBackup uint8 = 0x12
	CommandUARTQuickTeleCommand uint8 = 0x20
	CommandUDPTeleMetryBackup   uint8 = 0x22
	CommandCANTeleMetryBackup   uint8 = 0x23
)

func isKnownCommandType(t uint8) bool {
	switch t {
	case CommandBasicTeleCommand, CommandGeneralTeleCommand, CommandUDPTeleCommandBackup,
		CommandUARTQuickTeleCommand, CommandUDPTeleMetryBackup, CommandCANTeleMetryBackup:
		return true
	default:
		return false
	}
}

// Quick-telecommand marker bytes the adaptor prepends to the payload when
// command_type is CommandUARTQuickTeleCommand, so the application layer can
// tell a telecommand quick-frame from a telemetry quick-frame without extra
// metadata plumbing.
var (
	quickTeleCommandMarker = [2]byte{0x20, 0x04}
	quickTeleMetryMarker   = [2]byte{0x20, 0x05}
)

// Frame is one decoded Ty UART wire frame.
type Frame struct {
	PlatformID  uint8
	DataType    uint8
	CommandType uint8
	ReqID       uint8
	Payload     []byte
	Checksum    uint8
}
