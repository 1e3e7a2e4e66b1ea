// Package chanadaptor implements the in-memory Adaptor used by deterministic
// end-to-end tests: a pair of bounded in-process queues delivering whole
// Buffers with no framing, reassembly, or checksum work at all.
package chanadaptor

import (
	"github.com/shannmu/tcsp-server/internal/bus"
	"github.com/shannmu/tcsp-server/internal/buffer"
)

// mtu is fixed regardless of flag, matching the original's ty-agnostic
// in-memory transport.
const mtu = 150

// defaultQueueDepth bounds the in-process queues so a misbehaving peer can't
// grow memory without limit.
const defaultQueueDepth = 64

// Channel is a pair of bounded queues wired send-to-recv between two
// Channel halves, or loopback onto itself for single-ended tests.
type Channel struct {
	out    chan *buffer.Buffer
	in     chan *buffer.Buffer
	closed chan struct{}
}

// NewPair returns two Channel adaptors wired to each other: a's Send feeds
// b's Recv and vice versa.
func NewPair() (a, b *Channel) {
	ab := make(chan *buffer.Buffer, defaultQueueDepth)
	ba := make(chan *buffer.Buffer, defaultQueueDepth)
	closed := make(chan struct{})
	return &Channel{out: ab, in: ba, closed: closed}, &Channel{out: ba, in: ab, closed: closed}
}

// NewLoopback returns a single Channel whose Send feeds its own Recv,
// useful for exercising the envelope/dispatch layers without a peer.
func NewLoopback() *Channel {
	q := make(chan *buffer.Buffer, defaultQueueDepth)
	return &Channel{out: q, in: q, closed: make(chan struct{})}
}

var _ bus.Adaptor = (*Channel)(nil)

// Send enqueues buf on the outgoing queue; it reports BusError if the peer
// has closed its side.
func (c *Channel) Send(buf *buffer.Buffer) error {
	select {
	case <-c.closed:
		return bus.WrapBusError(errClosed)
	default:
	}
	select {
	case c.out <- buf:
		return nil
	case <-c.closed:
		return bus.WrapBusError(errClosed)
	}
}

// Recv blocks for one Buffer, or returns ErrEmpty once the channel is closed
// and drained.
func (c *Channel) Recv() (*buffer.Buffer, error) {
	select {
	case buf, ok := <-c.in:
		if !ok {
			return nil, bus.ErrEmpty
		}
		return buf, nil
	case <-c.closed:
		select {
		case buf, ok := <-c.in:
			if ok {
				return buf, nil
			}
		default:
		}
		return nil, bus.ErrEmpty
	}
}

// MTU is fixed at 150 regardless of flag.
func (c *Channel) MTU(buffer.Flag) int { return mtu }

// Close marks the channel closed; subsequent Sends fail and Recv drains
// then returns Empty.
func (c *Channel) Close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

var errClosed = chanClosedError{}

type chanClosedError struct{}

func (chanClosedError) Error() string { return "channel adaptor: peer closed" }
