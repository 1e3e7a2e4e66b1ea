package dispatch

import "errors"

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrDuplicateApplication = errors.New("dispatch: duplicate application id")
	ErrShutdownTimeout      = errors.New("dispatch: shutdown timeout")
)
