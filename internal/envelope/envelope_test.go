package envelope

import (
	"testing"

	"github.com/shannmu/tcsp-server/internal/buffer"
)

func TestDecodeNormalHeader(t *testing.T) {
	payload := append([]byte{VersionID, 0x02}, []byte{0x01, 0x02, 0x03}...)
	buf, err := buffer.New(buffer.Meta{}, payload)
	if err != nil {
		t.Fatalf("buffer.New: %v", err)
	}
	f, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Application != 0x02 {
		t.Fatalf("application = %d, want 2", f.Application)
	}
	if got := f.Buf.Data(); string(got) != "\x01\x02\x03" {
		t.Fatalf("stripped payload = %v", got)
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	buf, _ := buffer.New(buffer.Meta{}, []byte{0x21, 0x02, 0x00})
	if _, err := Decode(buf); err == nil {
		t.Fatal("expected version mismatch error")
	}
}

func TestDecodeUartTelemetryFlag(t *testing.T) {
	buf, _ := buffer.New(buffer.Meta{Flag: buffer.FlagUartTelemetry}, []byte{1, 2, 3})
	f, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Application != applicationTelemetry {
		t.Fatalf("application = %d, want 0", f.Application)
	}
	if got := f.Buf.Data(); string(got) != "\x01\x02\x03" {
		t.Fatalf("payload should be untouched, got %v", got)
	}
}

func TestDecodeTimeBroadcastFlag(t *testing.T) {
	buf, _ := buffer.New(buffer.Meta{Flag: buffer.FlagCanTimeBroadcast}, []byte{0x66, 0x7b, 0x2a, 0x64})
	f, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.Application != applicationTimeSync {
		t.Fatalf("application = %d, want 1", f.Application)
	}
	if got := f.Buf.Data(); string(got) != "\x66\x7b\x2a\x64" {
		t.Fatalf("expected all 4 timestamp bytes to survive untouched, got %v", got)
	}
}

func TestEncodeInsertsHeaderOnce(t *testing.T) {
	f, err := NewFrame(0x02, buffer.Meta{}, []byte{0xAA, 0xBB})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	buf, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got := buf.Data(); string(got) != "\x20\x02\xaa\xbb" {
		t.Fatalf("encoded = %v", got)
	}
	// Encoding again must be a no-op since the header is already inserted.
	if _, err := Encode(f); err != nil {
		t.Fatalf("second Encode: %v", err)
	}
	if got := buf.Data(); string(got) != "\x20\x02\xaa\xbb" {
		t.Fatalf("re-encoded = %v", got)
	}
}
