// Package slot implements the CAN multi-frame reassembly buffers: a fixed
// 256-entry table of 157-byte slots indexed by the full 8-bit packet ID.
// The table is single-writer by design — only a bus adaptor's receive path
// mutates it — so no locking is required as long as that invariant holds.
package slot

import "fmt"

// Size is the fixed backing capacity of one reassembly slot.
const Size = 157

// Count is the number of slots in a Table, one per possible pid value.
const Count = 256

// Slot is one in-progress (or idle) multi-frame reassembly buffer.
type Slot struct {
	data      [Size]byte
	currentLen uint16
	totalLen   uint16
	valid      bool
}

// Reset returns the slot to its idle, empty state.
func (s *Slot) Reset() {
	s.currentLen = 0
	s.totalLen = 0
	s.valid = false
}

// TotalLen returns the armed total length (valid only once SetTotalLen has
// been called since the last Reset).
func (s *Slot) TotalLen() uint16 { return s.totalLen }

// Data returns the slot's bytes up to TotalLen.
func (s *Slot) Data() []byte { return s.data[:s.totalLen] }

// SetTotalLen arms the slot for a reassembly of length n, failing if n
// exceeds the fixed slot capacity.
func (s *Slot) SetTotalLen(n uint16) error {
	if n > Size {
		return fmt.Errorf("slot: total_len %d exceeds capacity %d", n, Size)
	}
	s.totalLen = n
	s.valid = true
	return nil
}

// CopyFromSlice appends src to the slot, failing if doing so would exceed
// the armed total length.
func (s *Slot) CopyFromSlice(src []byte) error {
	if int(s.currentLen)+len(src) > int(s.totalLen) {
		return fmt.Errorf("slot: copy of %d bytes overflows total_len %d (current %d)", len(src), s.totalLen, s.currentLen)
	}
	copy(s.data[s.currentLen:], src)
	s.currentLen += uint16(len(src))
	return nil
}

// IsComplete reports whether the slot is armed and has received exactly
// TotalLen bytes.
func (s *Slot) IsComplete() bool { return s.valid && s.currentLen == s.totalLen }

// Table is the fixed array of reassembly slots owned by a Ty CAN adaptor.
// Access is single-writer: only the adaptor's receive routine may call its
// methods.
type Table struct {
	slots [Count]Slot
}

// NewTable returns a table of idle slots.
func NewTable() *Table { return &Table{} }

// At returns the slot for the given pid. pid is a full 8-bit value, and the
// table has one entry per value, so this never indexes out of range.
func (t *Table) At(pid uint8) *Slot { return &t.slots[pid] }
