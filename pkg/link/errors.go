package link

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameTooLarge indicates the data doesn't fit in one frame.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrNoTransport indicates the Packetizer has no ReadWriter.
	ErrNoTransport = errors.New("no transport")
)

// ChecksumError reports a frame dropped because of a checksum mismatch.
type ChecksumError struct {
	Index    byte
	Expected byte
	Actual   byte
}

// Error implements error.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("frame 0x%02x checksum mismatch: expected 0x%02x, got 0x%02x", e.Index, e.Expected, e.Actual)
}
