package buffer

import "testing"

func TestHeadExpandAndShrink(t *testing.T) {
	b := Default()
	if err := b.ExpandHead(10); err != nil {
		t.Fatalf("expand_head(10): %v", err)
	}
	if err := b.ExpandHead(DefaultStartOffset - 10); err != nil {
		t.Fatalf("expand_head(rest): %v", err)
	}
	if err := b.ExpandHead(1); err == nil {
		t.Fatal("expand_head(1) should fail once offset is exhausted")
	}

	if err := b.ShrinkHead(5); err != nil {
		t.Fatalf("shrink_head(5): %v", err)
	}
	if got, want := b.Meta.Len, uint16(DefaultStartOffset-5); got != want {
		t.Fatalf("len = %d, want %d", got, want)
	}
	if err := b.ShrinkHead(DefaultStartOffset); err != nil {
		t.Fatalf("shrink_head(offset): %v", err)
	}
	if b.Meta.Len != 0 {
		t.Fatalf("len = %d, want 0 (saturated)", b.Meta.Len)
	}
	if err := b.ShrinkHead(DataLength); err == nil {
		t.Fatal("shrink_head(DataLength) should fail")
	}
}

func TestTailExpand(t *testing.T) {
	b := Default()
	if err := b.ExpandTail(1); err != nil {
		t.Fatalf("expand_tail(1): %v", err)
	}
	if b.Meta.Len != 1 {
		t.Fatalf("len = %d, want 1", b.Meta.Len)
	}
	if err := b.ExpandTail(MaxLength); err != nil {
		t.Fatalf("expand_tail(MaxLength): %v", err)
	}
	if int(b.Meta.Len) != MaxLength+1 {
		t.Fatalf("len = %d, want %d", b.Meta.Len, MaxLength+1)
	}
	if err := b.ExpandTail(Padding - DefaultStartOffset - 1); err != nil {
		t.Fatalf("expand_tail(remaining slack): %v", err)
	}
	if err := b.ExpandTail(1); err == nil {
		t.Fatal("expand_tail(1) should fail once tail slack is exhausted")
	}
}

func TestNewRejectsOversizedPayload(t *testing.T) {
	if _, err := New(Meta{}, make([]byte, MaxLength+1)); err == nil {
		t.Fatal("New should reject payloads larger than MaxLength")
	}
	b, err := New(Meta{SrcID: 1}, []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.Len() != 3 || string(b.Data()) != "\x01\x02\x03" {
		t.Fatalf("unexpected buffer contents: %v", b.Data())
	}
}
