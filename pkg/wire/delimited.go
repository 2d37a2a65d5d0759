package wire

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxMessageSize is the largest delimited message accepted (1 MiB).
const MaxMessageSize = 1 << 20

var (
	// ErrIncomplete means the buffer does not yet hold a whole message.
	ErrIncomplete = errors.New("incomplete delimited message")

	// ErrFrameTooLarge means the length prefix exceeds MaxMessageSize.
	ErrFrameTooLarge = errors.New("delimited message exceeds maximum size")

	// ErrInvalidLength means the length prefix is not a valid varint.
	ErrInvalidLength = errors.New("invalid length prefix")
)

// Message is a structured message that can be put on the wire.
type Message interface {
	Marshal() []byte
	Unmarshal(b []byte) error
}

// AppendDelimited appends the varint length of payload followed by payload.
func AppendDelimited(dst, payload []byte) []byte {
	dst = protowire.AppendVarint(dst, uint64(len(payload)))
	return append(dst, payload...)
}

// MarshalDelimited encodes m with its length prefix.
func MarshalDelimited(m Message) []byte {
	payload := m.Marshal()
	return AppendDelimited(make([]byte, 0, protowire.SizeVarint(uint64(len(payload)))+len(payload)), payload)
}

// ReadDelimited extracts the first delimited message from buf. It returns
// the payload (aliasing buf) and the number of bytes consumed.
//
// ErrIncomplete is returned while buf holds only a prefix of the message;
// the caller should read more and retry. ErrFrameTooLarge and
// ErrInvalidLength mean the stream is out of sync.
func ReadDelimited(buf []byte) (payload []byte, n int, err error) {
	size, vn := protowire.ConsumeVarint(buf)
	if vn < 0 {
		if errors.Is(protowire.ParseError(vn), io.ErrUnexpectedEOF) {
			return nil, 0, ErrIncomplete
		}
		return nil, 0, ErrInvalidLength
	}
	if size > MaxMessageSize {
		return nil, 0, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	end := vn + int(size)
	if len(buf) < end {
		return nil, 0, ErrIncomplete
	}
	return buf[vn:end], end, nil
}
