package bus

import "github.com/shannmu/tcsp-server/internal/buffer"

// Adaptor is the contract every bus adaptor (CAN, UART, in-memory channel)
// satisfies: send a Buffer, receive a Buffer, and report the maximum
// payload size available for a given flag combination.
type Adaptor interface {
	Send(buf *buffer.Buffer) error
	Recv() (*buffer.Buffer, error)
	MTU(flag buffer.Flag) int
}
