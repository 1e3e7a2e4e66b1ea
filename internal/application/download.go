package application

import (
	"context"
	"encoding/binary"
	"fmt"
	"io/fs"
	"sync"

	"github.com/shannmu/tcsp-server/internal/dispatch"
	"github.com/shannmu/tcsp-server/internal/envelope"
)

// downloadChunkSize is 144 rather than the original's 1024: every response
// frame carries a 6-byte header inside this server's 150-byte Buffer cap,
// so the usable payload per chunk is 150-6.
const downloadChunkSize = 144

type downloadState int

const (
	downloadStateStart downloadState = iota
	downloadStateDownloading
)

// Download mirrors Upload in reverse: a start state reads a file (via an
// injected fs.FS so tests don't touch the real filesystem) in
// downloadChunkSize-byte chunks into an in-memory buffer keyed by chunk index, and streams them
// back chunk-by-chunk on request, reporting the chunk count in the first
// response.
type Download struct {
	fsys fs.FS

	mu       sync.Mutex
	state    downloadState
	fileMode uint8
	chunkSum uint16
	chunks   map[uint16][]byte
}

// NewDownload builds a Download handler reading files from fsys.
func NewDownload(fsys fs.FS) *Download {
	return &Download{fsys: fsys, state: downloadStateStart, chunks: make(map[uint16][]byte)}
}

var _ dispatch.Application = (*Download)(nil)

func (*Download) ApplicationID() uint8 { return dispatch.AppDownload }
func (*Download) Name() string         { return "download" }

func (d *Download) Handle(_ context.Context, req *envelope.Frame, _ int) (*envelope.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data := req.Buf.Data()
	switch d.state {
	case downloadStateStart:
		fileMode := req.Buf.Meta.ID
		filePath := string(data)

		content, err := fs.ReadFile(d.fsys, filePath)
		if err != nil {
			return nil, fmt.Errorf("download: read %q: %w", filePath, err)
		}

		d.chunks = make(map[uint16][]byte)
		var index uint16
		for off := 0; off < len(content); off += downloadChunkSize {
			end := off + downloadChunkSize
			if end > len(content) {
				end = len(content)
			}
			d.chunks[index] = content[off:end]
			index++
		}
		d.chunkSum = uint16(len(d.chunks))
		d.fileMode = fileMode

		first := d.chunks[0]
		resp := make([]byte, 0, 6+len(first))
		resp = append(resp, fileMode, 0x00, 0x00)
		var sumBuf [2]byte
		binary.BigEndian.PutUint16(sumBuf[:], d.chunkSum)
		resp = append(resp, sumBuf[:]...)
		resp = append(resp, 0xAA)
		resp = append(resp, first...)

		d.state = downloadStateDownloading
		return envelope.NewFrame(dispatch.AppDownload, req.Buf.Meta, resp)

	default: // downloadStateDownloading
		if req.Buf.Meta.ID != d.fileMode {
			d.state = downloadStateStart
			return nil, fmt.Errorf("download: file mode mismatch while downloading")
		}
		if len(data) < 3 {
			return nil, fmt.Errorf("download: request frame too short")
		}
		frameID := binary.BigEndian.Uint16(data[1:3])
		content, ok := d.chunks[frameID]
		if !ok {
			return nil, fmt.Errorf("download: unknown chunk index %d", frameID)
		}

		resp := make([]byte, 0, 6+len(content))
		resp = append(resp, d.fileMode, data[1], data[2])
		var sumBuf [2]byte
		binary.BigEndian.PutUint16(sumBuf[:], d.chunkSum)
		resp = append(resp, sumBuf[:]...)
		resp = append(resp, 0xAA)
		resp = append(resp, content...)

		if frameID == d.chunkSum-1 {
			d.state = downloadStateStart
		}
		return envelope.NewFrame(dispatch.AppDownload, req.Buf.Meta, resp)
	}
}
