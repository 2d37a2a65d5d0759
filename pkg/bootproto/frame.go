package bootproto

import (
	"fmt"

	"github.com/fieldlink/fieldlink-go/pkg/crc16"
)

// Frame is a decoded bootloader frame.
type Frame struct {
	// Command is the opcode byte.
	Command byte

	// Payload is the un-escaped content between the opcode and the CRC.
	Payload []byte

	// CRC is the checksum carried by the frame.
	CRC uint16
}

// Encode builds the wire frame for cmd followed by payload.
//
// Frame structure:
//
//	[SOH][esc(CMD)][esc(PAYLOAD...)][esc(CRC_L)][esc(CRC_H)][EOT]
func Encode(cmd byte, payload ...byte) []byte {
	content := make([]byte, 0, 1+len(payload)+crcSize)
	content = append(content, cmd)
	content = append(content, payload...)
	content = crc16.Append(content, crc16.Compute(content))

	// Worst case every content byte is escaped.
	frame := make([]byte, 0, 2+2*len(content))
	frame = append(frame, SOH)
	for _, b := range content {
		if needsEscape(b) {
			frame = append(frame, DLE)
		}
		frame = append(frame, b)
	}
	frame = append(frame, EOT)

	return frame
}

// EncodeReport places frame into a zero-padded report of reportSize bytes.
// Returns ErrFrameTooLarge if the frame does not fit.
func EncodeReport(frame []byte, reportSize int) ([]byte, error) {
	if len(frame) > reportSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(frame), reportSize)
	}
	report := make([]byte, reportSize)
	copy(report, frame)
	return report, nil
}

// Decode extracts the first frame from a report.
//
// Bytes after the terminating EOT (report padding) are ignored. Every
// indexed read is bounds-checked, so malformed input yields a *DecodeError
// rather than a panic.
func Decode(report []byte) (Frame, error) {
	if len(report) == 0 {
		return Frame{}, decodeErr("frame", ErrEmptyFrame)
	}
	if report[0] != SOH {
		return Frame{}, decodeErr("frame", ErrNoSOH)
	}

	content := make([]byte, 0, len(report))
	terminated := false

	for i := 1; i < len(report) && !terminated; i++ {
		switch b := report[i]; b {
		case DLE:
			if i+1 >= len(report) {
				return Frame{}, decodeErr("frame", ErrTruncated)
			}
			i++
			content = append(content, report[i])
		case EOT:
			terminated = true
		case SOH:
			return Frame{}, decodeErr("frame", ErrUnexpectedSOH)
		default:
			content = append(content, b)
		}
	}

	if !terminated || len(content) < minContentSize {
		return Frame{}, decodeErr("frame", ErrTruncated)
	}

	body := content[:len(content)-crcSize]
	got := uint16(content[len(content)-2]) | uint16(content[len(content)-1])<<8
	if want := crc16.Compute(body); got != want {
		return Frame{}, decodeErr("frame", fmt.Errorf("%w: got 0x%04X, want 0x%04X", ErrBadCRC, got, want))
	}

	return Frame{
		Command: body[0],
		Payload: body[1:],
		CRC:     got,
	}, nil
}
