package dccex

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady indicates Setup hasn't been called.
	ErrNotReady = errors.New("channel not ready")
	// ErrAlreadySetup indicates Setup was called more than once.
	ErrAlreadySetup = errors.New("channel already setup")
	// ErrClosed indicates the channel is closed.
	ErrClosed = errors.New("channel closed")
	// ErrInvalidDirection indicates neither Inbound nor Outbound is given.
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrPayloadTooLong indicates a received payload exceeds MaxPayloadSize.
	ErrPayloadTooLong = errors.New("payload too long")
)

// InvalidTagError reports a protocol tag out of range.
type InvalidTagError struct {
	Tag int
}

// Error implements error.
func (e *InvalidTagError) Error() string {
	return fmt.Sprintf("invalid protocol tag %d", e.Tag)
}
