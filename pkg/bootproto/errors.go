package bootproto

import (
	"errors"
	"fmt"
)

// Framing errors.
var (
	// ErrFrameTooLarge indicates an encoded frame exceeds the report size.
	ErrFrameTooLarge = errors.New("frame exceeds report size")

	// ErrEmptyFrame indicates a report with no content.
	ErrEmptyFrame = errors.New("empty frame")

	// ErrNoSOH indicates the report does not start with SOH.
	ErrNoSOH = errors.New("missing SOH")

	// ErrTruncated indicates the frame ended before EOT or is too short.
	ErrTruncated = errors.New("frame truncated")

	// ErrUnexpectedSOH indicates an unescaped SOH inside a frame.
	ErrUnexpectedSOH = errors.New("unexpected SOH inside frame")

	// ErrBadCRC indicates the frame CRC does not match its content.
	ErrBadCRC = errors.New("CRC mismatch")

	// ErrUnexpectedCommand indicates a response for a different command.
	ErrUnexpectedCommand = errors.New("unexpected response command")

	// ErrShortPayload indicates a response payload is too short for its type.
	ErrShortPayload = errors.New("response payload too short")
)

// DecodeError describes a response that could not be decoded.
// It wraps one of the framing errors above.
type DecodeError struct {
	// Op is the decode step that failed ("frame", "version", "ack", "crc").
	Op string

	// Err is the underlying framing error.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying framing error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(op string, err error) error {
	return &DecodeError{Op: op, Err: err}
}
