package application

import (
	"bytes"
	"context"
	"testing"

	"github.com/shannmu/tcsp-server/internal/buffer"
	"github.com/shannmu/tcsp-server/internal/envelope"
)

func TestUDPBackupPrependsCustomCodeAndNeverResponds(t *testing.T) {
	rec := &recordingFallback{}
	u := NewUDPBackup(rec)

	req, err := envelope.NewFrame(6, buffer.Meta{}, []byte{0xaa, 0xbb})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	resp, err := u.Handle(context.Background(), req, 150)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp != nil {
		t.Fatal("expected no response on the bus")
	}
	if len(rec.got) != 1 {
		t.Fatalf("expected exactly one fallback call, got %d", len(rec.got))
	}
	want := append(append([]byte{}, udpCustomCode[:]...), 0xaa, 0xbb)
	if !bytes.Equal(rec.got[0], want) {
		t.Fatalf("forwarded = % x, want % x", rec.got[0], want)
	}
}
