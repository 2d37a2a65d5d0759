package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fieldlink/fieldlink-go/pkg/message"
	"github.com/fieldlink/fieldlink-go/pkg/wire"
)

// Decoder turns stream chunks into inbound messages. A Consumer calls it
// from one goroutine at a time.
type Decoder interface {
	// Decode consumes one chunk and returns the messages it completed. A
	// non-nil error is fatal and ends the read loop.
	Decode(chunk []byte, now time.Time) ([]message.Inbound, error)

	// Flush returns whatever is buffered and clears the buffer.
	Flush(now time.Time) []message.Inbound

	// Debounce is the quiet period after which Flush is due, or 0 if the
	// decoder never needs a timed flush.
	Debounce() time.Duration
}

// Mode selects the decoder of a Link.
type Mode uint8

const (
	ModeProtobuf Mode = iota
	ModeText
	ModeBinary
)

func (m Mode) String() string {
	switch m {
	case ModeProtobuf:
		return "protobuf"
	case ModeText:
		return "text"
	case ModeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ParseMode parses "protobuf", "text" or "binary".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "protobuf", "proto", "":
		return ModeProtobuf, nil
	case "text", "scpi":
		return ModeText, nil
	case "binary", "raw":
		return ModeBinary, nil
	}
	return 0, fmt.Errorf("unknown link mode %q", s)
}

// DefaultDebounce is the quiet period of the text and binary decoders.
const DefaultDebounce = 500 * time.Millisecond

// NewDecoder returns the decoder for mode.
func NewDecoder(mode Mode, debounce time.Duration, logger *slog.Logger) Decoder {
	switch mode {
	case ModeText:
		return &TextDecoder{Quiet: debounce}
	case ModeBinary:
		return &BinaryDecoder{Quiet: debounce}
	default:
		return &DelimitedDecoder{Logger: logger}
	}
}

// DelimitedDecoder reassembles varint length-prefixed DeviceStatus messages.
// Chunks may split or merge messages arbitrarily.
//
// A length prefix that cannot be valid puts the decoder out of sync. It then
// drops one byte at a time until a complete, decodable message starts at the
// head of the buffer.
type DelimitedDecoder struct {
	Logger *slog.Logger
	buf    []byte
	resync bool

	// Dropped counts skipped frames plus bytes discarded while out of sync.
	Dropped int
}

func (d *DelimitedDecoder) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Decode appends chunk and returns every complete message.
func (d *DelimitedDecoder) Decode(chunk []byte, now time.Time) ([]message.Inbound, error) {
	d.buf = append(d.buf, chunk...)

	var out []message.Inbound
	off := 0
	for off < len(d.buf) {
		payload, n, err := wire.ReadDelimited(d.buf[off:])
		if errors.Is(err, wire.ErrIncomplete) {
			if !d.resync {
				break
			}
			// Garbage can look like the start of a long message.
			next, ok := d.nextFrame(off + 1)
			if !ok {
				break
			}
			d.Dropped += next - off
			off = next
			continue
		}
		if err != nil {
			if !d.resync {
				d.logger().Warn("delimited stream out of sync", "error", err, "buffered", len(d.buf)-off)
				d.resync = true
			}
			d.Dropped++
			off++
			continue
		}

		status := &wire.DeviceStatus{}
		if err := status.Unmarshal(payload); err != nil || (d.resync && len(payload) == 0) {
			if d.resync {
				d.Dropped++
				off++
				continue
			}
			d.logger().Warn("skipping malformed status message", "error", err, "size", len(payload))
			d.Dropped++
			off += n
			continue
		}
		off += n
		if d.resync {
			d.logger().Info("delimited stream back in sync")
			d.resync = false
		}
		out = append(out, message.NewStatus(status, now))
	}

	d.buf = append(d.buf[:0], d.buf[off:]...)
	return out, nil
}

// nextFrame returns the first offset at or after from where a complete,
// non-empty DeviceStatus can be decoded.
func (d *DelimitedDecoder) nextFrame(from int) (int, bool) {
	for i := from; i < len(d.buf); i++ {
		payload, _, err := wire.ReadDelimited(d.buf[i:])
		if err != nil || len(payload) == 0 {
			continue
		}
		if (&wire.DeviceStatus{}).Unmarshal(payload) == nil {
			return i, true
		}
	}
	return 0, false
}

// Flush drops any partial message; structured messages are never flushed
// incomplete.
func (d *DelimitedDecoder) Flush(time.Time) []message.Inbound {
	if len(d.buf) > 0 {
		d.logger().Debug("discarding partial message", "bytes", len(d.buf))
	}
	d.buf = d.buf[:0]
	d.resync = false
	return nil
}

// Debounce returns 0.
func (d *DelimitedDecoder) Debounce() time.Duration { return 0 }

// Buffered returns the number of bytes waiting for the rest of a message.
func (d *DelimitedDecoder) Buffered() int { return len(d.buf) }

// TextDecoder accumulates text and emits it, trimmed, as one message after
// a quiet period.
type TextDecoder struct {
	Quiet time.Duration
	buf   strings.Builder
}

// Decode buffers the chunk.
func (d *TextDecoder) Decode(chunk []byte, _ time.Time) ([]message.Inbound, error) {
	d.buf.Write(chunk)
	return nil, nil
}

// Flush emits the trimmed buffer unless it is blank.
func (d *TextDecoder) Flush(now time.Time) []message.Inbound {
	text := strings.TrimSpace(d.buf.String())
	d.buf.Reset()
	if text == "" {
		return nil
	}
	return []message.Inbound{message.NewText(text, now)}
}

// Debounce returns the quiet period.
func (d *TextDecoder) Debounce() time.Duration {
	if d.Quiet <= 0 {
		return DefaultDebounce
	}
	return d.Quiet
}

// MaxBinaryBuffer caps the binary accumulator (100 MB).
const MaxBinaryBuffer = 100 * 1024 * 1024

// BinaryDecoder accumulates raw bytes and emits them as one message after a
// quiet period.
type BinaryDecoder struct {
	Quiet time.Duration

	// MaxSize overrides MaxBinaryBuffer.
	MaxSize int

	buf []byte
}

// Decode buffers the chunk. Exceeding the cap returns ErrBufferOverflow.
func (d *BinaryDecoder) Decode(chunk []byte, _ time.Time) ([]message.Inbound, error) {
	limit := d.MaxSize
	if limit <= 0 {
		limit = MaxBinaryBuffer
	}
	if len(d.buf)+len(chunk) > limit {
		size := len(d.buf) + len(chunk)
		d.buf = nil
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrBufferOverflow, size, limit)
	}
	d.buf = append(d.buf, chunk...)
	return nil, nil
}

// Flush emits the buffer unless it is empty.
func (d *BinaryDecoder) Flush(now time.Time) []message.Inbound {
	if len(d.buf) == 0 {
		return nil
	}
	data := d.buf
	d.buf = nil
	return []message.Inbound{message.NewBinary(data, now)}
}

// Debounce returns the quiet period.
func (d *BinaryDecoder) Debounce() time.Duration {
	if d.Quiet <= 0 {
		return DefaultDebounce
	}
	return d.Quiet
}

var (
	_ Decoder = (*DelimitedDecoder)(nil)
	_ Decoder = (*TextDecoder)(nil)
	_ Decoder = (*BinaryDecoder)(nil)
)
