// Package buffer implements the fixed-capacity payload container shared by
// every bus adaptor and the envelope codec: a byte store with pre-reserved
// head and tail slack so framing layers can prepend and append bytes in
// place instead of copying.
package buffer

import "fmt"

const (
	// MaxLength is the largest application payload a Buffer can carry.
	MaxLength = 150
	// Padding is the total head+tail slack reserved around MaxLength.
	Padding = 18
	// DataLength is the fixed backing-array capacity (MaxLength + Padding).
	DataLength = MaxLength + Padding
	// DefaultStartOffset is where a freshly constructed Buffer's payload begins.
	DefaultStartOffset = 16
)

// Flag records bus-level out-of-band signalling that the envelope codec
// turns into synthetic application dispatches.
type Flag uint8

const (
	FlagCanTimeBroadcast Flag = 1 << 0
	FlagUartTelemetry    Flag = 1 << 2
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// Meta carries the per-frame routing and classification fields that travel
// alongside a Buffer's payload.
type Meta struct {
	SrcID       uint8
	DestID      uint8
	ID          uint8
	Len         uint16
	DataType    uint8
	CommandType uint8
	Flag        Flag
}

// ExchangeSrcDest swaps SrcID and DestID in place, used when turning a
// decoded request's metadata into a response's metadata.
func (m *Meta) ExchangeSrcDest() {
	m.SrcID, m.DestID = m.DestID, m.SrcID
}

// Buffer is a fixed-capacity byte store with a sliding [offset, offset+len)
// view over its backing array.
type Buffer struct {
	Meta   Meta
	offset uint16
	data   []byte
}

// New allocates a Buffer of the default fixed capacity, copies src starting
// at DefaultStartOffset, and fails if src is larger than MaxLength.
func New(meta Meta, src []byte) (*Buffer, error) {
	if len(src) > MaxLength {
		return nil, fmt.Errorf("buffer too large: %d > %d", len(src), MaxLength)
	}
	b := &Buffer{
		Meta:   meta,
		offset: DefaultStartOffset,
		data:   make([]byte, DataLength),
	}
	copy(b.data[DefaultStartOffset:int(DefaultStartOffset)+len(src)], src)
	b.Meta.Len = uint16(len(src))
	return b, nil
}

// Default returns a zero-payload Buffer at the default offset, ready for
// in-place header construction via ExpandHead/ExpandTail.
func Default() *Buffer {
	return &Buffer{offset: DefaultStartOffset, data: make([]byte, DataLength)}
}

// Extended allocates a Buffer sized exactly to fit src plus the fixed
// padding, used where the caller knows the final payload length up front.
func Extended(meta Meta, src []byte) (*Buffer, error) {
	b := &Buffer{
		Meta:   meta,
		offset: DefaultStartOffset,
		data:   make([]byte, len(src)+Padding),
	}
	copy(b.data[DefaultStartOffset:int(DefaultStartOffset)+len(src)], src)
	b.Meta.Len = uint16(len(src))
	return b, nil
}

// Len returns the current visible payload length.
func (b *Buffer) Len() int { return int(b.Meta.Len) }

// SetLen overrides the visible payload length without moving offset.
func (b *Buffer) SetLen(n uint16) error {
	if n > DataLength {
		return fmt.Errorf("set_len: %d exceeds capacity %d", n, DataLength)
	}
	b.Meta.Len = n
	return nil
}

// ExpandHead moves offset back by k, exposing k more writable bytes before
// the current view; it fails if there is not enough head slack.
func (b *Buffer) ExpandHead(k uint16) error {
	if int(b.offset)-int(k) < 0 {
		return fmt.Errorf("expand_head: %d exceeds available head slack %d", k, b.offset)
	}
	b.offset -= k
	b.Meta.Len += k
	return nil
}

// ShrinkHead moves offset forward by k, consuming k bytes from the front of
// the view; length saturates at zero rather than going negative.
func (b *Buffer) ShrinkHead(k uint16) error {
	if int(b.offset)+int(k) >= DataLength {
		return fmt.Errorf("shrink_head: %d exceeds capacity", k)
	}
	b.offset += k
	if b.Meta.Len < k {
		b.Meta.Len = 0
	} else {
		b.Meta.Len -= k
	}
	return nil
}

// ExpandTail grows the view by k bytes at the end; it fails if doing so
// would exceed the fixed backing capacity.
func (b *Buffer) ExpandTail(k uint16) error {
	if int(b.offset)+int(b.Meta.Len)+int(k) > DataLength {
		return fmt.Errorf("expand_tail: %d exceeds capacity", k)
	}
	b.Meta.Len += k
	return nil
}

// Data returns the current visible payload.
func (b *Buffer) Data() []byte {
	start := int(b.offset)
	end := start + int(b.Meta.Len)
	return b.data[start:end]
}

// DataMut returns a mutable view over the current visible payload.
func (b *Buffer) DataMut() []byte {
	start := int(b.offset)
	end := start + int(b.Meta.Len)
	return b.data[start:end]
}

// Offset exposes the current head offset, mainly for tests.
func (b *Buffer) Offset() uint16 { return b.offset }
