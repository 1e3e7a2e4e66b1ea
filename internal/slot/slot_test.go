package slot

import "testing"

func TestSlotLifecycle(t *testing.T) {
	var s Slot

	if err := s.SetTotalLen(Size + 2); err == nil {
		t.Fatal("set_total_len beyond capacity should fail")
	}

	if err := s.SetTotalLen(30); err != nil {
		t.Fatalf("set_total_len(30): %v", err)
	}

	if err := s.CopyFromSlice(make([]byte, 50)); err == nil {
		t.Fatal("copy_from_slice overflowing total_len should fail")
	}

	if err := s.CopyFromSlice(make([]byte, 29)); err != nil {
		t.Fatalf("copy_from_slice(29): %v", err)
	}
	if s.IsComplete() {
		t.Fatal("slot should not be complete after 29/30 bytes")
	}

	if err := s.CopyFromSlice(make([]byte, 1)); err != nil {
		t.Fatalf("copy_from_slice(1): %v", err)
	}
	if !s.IsComplete() {
		t.Fatal("slot should be complete at 30/30 bytes")
	}

	s.Reset()
	if s.IsComplete() {
		t.Fatal("reset slot should not be complete")
	}
}

func TestTableIndexingByPid(t *testing.T) {
	tbl := NewTable()
	a := tbl.At(0x12)
	if err := a.SetTotalLen(5); err != nil {
		t.Fatalf("set_total_len: %v", err)
	}
	b := tbl.At(0x13)
	if b.IsComplete() || b.TotalLen() != 0 {
		t.Fatal("unrelated slot should remain untouched")
	}
}

func TestTableIndexingHighPidDoesNotPanic(t *testing.T) {
	tbl := NewTable()
	for _, pid := range []uint8{0x7f, 0x80, 0xff} {
		s := tbl.At(pid)
		if err := s.SetTotalLen(3); err != nil {
			t.Fatalf("set_total_len for pid %d: %v", pid, err)
		}
	}
}
