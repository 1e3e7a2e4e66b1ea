package application

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/shannmu/tcsp-server/internal/dispatch"
	"github.com/shannmu/tcsp-server/internal/envelope"
)

type uploadState int

const (
	uploadStateStart uploadState = iota
	uploadStateWaiting
	uploadStateUploading
)

// Upload is a 3-state handler (start -> waiting -> uploading) accepting a
// file path then numbered 1-indexed data chunks, acknowledging each with
// [file_mode, 0xAA] or [file_mode, id_hi, id_lo, 0xAA], matching the
// original's state machine and frame shapes.
type Upload struct {
	mu       sync.Mutex
	state    uploadState
	fileMode uint8
	filePath string
	chunks   map[uint16][]byte
	chunkSum uint16
}

// NewUpload builds an Upload handler in its initial start state.
func NewUpload() *Upload {
	return &Upload{state: uploadStateStart, chunks: make(map[uint16][]byte)}
}

var _ dispatch.Application = (*Upload)(nil)

func (*Upload) ApplicationID() uint8 { return dispatch.AppUpload }
func (*Upload) Name() string         { return "upload" }

func (u *Upload) Handle(_ context.Context, req *envelope.Frame, _ int) (*envelope.Frame, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	data := req.Buf.Data()
	switch u.state {
	case uploadStateStart:
		if len(data) == 0 {
			return nil, fmt.Errorf("upload: empty start frame")
		}
		u.fileMode = data[0]
		u.state = uploadStateWaiting
		return envelope.NewFrame(dispatch.AppUpload, req.Buf.Meta, []byte{u.fileMode, 0xAA})

	case uploadStateWaiting:
		if req.Buf.Meta.ID != u.fileMode {
			u.state = uploadStateStart
			return nil, fmt.Errorf("upload: file mode mismatch in waiting state")
		}
		// The original reserves the first 256 bytes of the 0th package for
		// file metadata before the path; that reservation does not fit this
		// server's 150-byte buffer cap, so the whole payload is the path.
		u.filePath = string(data)
		u.chunks = make(map[uint16][]byte)
		u.state = uploadStateUploading
		return envelope.NewFrame(dispatch.AppUpload, req.Buf.Meta, []byte{u.fileMode, 0xAA})

	default: // uploadStateUploading
		if req.Buf.Meta.ID != u.fileMode {
			u.state = uploadStateStart
			return nil, fmt.Errorf("upload: file mode mismatch while uploading")
		}
		if len(data) < 5 {
			return nil, fmt.Errorf("upload: chunk frame too short")
		}
		frameID := binary.BigEndian.Uint16(data[1:3])
		frameSum := binary.BigEndian.Uint16(data[3:5])
		u.chunks[frameID] = append([]byte(nil), data[5:]...)
		u.chunkSum = frameSum

		resp := []byte{u.fileMode, data[1], data[2], 0xAA}
		if uint16(len(u.chunks)) >= frameSum {
			u.state = uploadStateStart
		}
		return envelope.NewFrame(dispatch.AppUpload, req.Buf.Meta, resp)
	}
}
