package application

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"testing/fstest"

	"github.com/shannmu/tcsp-server/internal/buffer"
	"github.com/shannmu/tcsp-server/internal/envelope"
)

func TestDownloadStreamsChunks(t *testing.T) {
	content := bytes.Repeat([]byte{0xAB}, downloadChunkSize+10)
	fsys := fstest.MapFS{
		"file.bin": &fstest.MapFile{Data: content},
	}
	d := NewDownload(fsys)
	ctx := context.Background()

	startReq, err := envelope.NewFrame(7, buffer.Meta{ID: 0x09}, []byte("file.bin"))
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	resp, err := d.Handle(ctx, startReq, 150)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	data := resp.Buf.Data()
	if data[0] != 0x09 {
		t.Fatalf("file_mode = %d, want 9", data[0])
	}
	chunkSum := binary.BigEndian.Uint16(data[3:5])
	if chunkSum != 2 {
		t.Fatalf("chunk_sum = %d, want 2", chunkSum)
	}
	if len(data[6:]) != downloadChunkSize {
		t.Fatalf("first chunk len = %d, want %d", len(data[6:]), downloadChunkSize)
	}

	reqChunk := []byte{0x09, 0x00, 0x01}
	secondReq, _ := envelope.NewFrame(7, buffer.Meta{ID: 0x09}, reqChunk)
	resp, err = d.Handle(ctx, secondReq, 150)
	if err != nil {
		t.Fatalf("second chunk: %v", err)
	}
	data = resp.Buf.Data()
	if len(data[6:]) != 10 {
		t.Fatalf("second chunk len = %d, want 10", len(data[6:]))
	}
	if d.state != downloadStateStart {
		t.Fatalf("expected state reset after final chunk, got %v", d.state)
	}
}

func TestDownloadMissingFileErrors(t *testing.T) {
	d := NewDownload(fstest.MapFS{})
	req, _ := envelope.NewFrame(7, buffer.Meta{ID: 1}, []byte("missing.bin"))
	if _, err := d.Handle(context.Background(), req, 150); err == nil {
		t.Fatal("expected an error reading a missing file")
	}
}
