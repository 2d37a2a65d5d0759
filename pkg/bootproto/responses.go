package bootproto

import (
	"encoding/binary"
	"fmt"
)

// Version is the bootloader firmware version reported by RequestVersion.
type Version struct {
	Major byte
	Minor byte
}

// String returns the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// DecodeVersion parses a RequestVersion response frame.
//
// Response payload structure:
//
//	[MAJOR][MINOR]
func DecodeVersion(f Frame) (Version, error) {
	if f.Command != CmdRequestVersion {
		return Version{}, decodeErr("version", fmt.Errorf("%w: 0x%02X", ErrUnexpectedCommand, f.Command))
	}
	if len(f.Payload) < 2 {
		return Version{}, decodeErr("version", ErrShortPayload)
	}
	return Version{Major: f.Payload[0], Minor: f.Payload[1]}, nil
}

// DecodeAck checks that f acknowledges cmd. The bootloader acknowledges
// EraseFlash and ProgramFlash by echoing the opcode.
func DecodeAck(f Frame, cmd byte) error {
	if f.Command != cmd {
		return decodeErr("ack", fmt.Errorf("%w: got %s, want %s",
			ErrUnexpectedCommand, CommandName(f.Command), CommandName(cmd)))
	}
	return nil
}

// DecodeCRC parses a ReadCrc response frame.
//
// Response payload structure:
//
//	[CRC_L][CRC_H]
func DecodeCRC(f Frame) (uint16, error) {
	if f.Command != CmdReadCRC {
		return 0, decodeErr("crc", fmt.Errorf("%w: 0x%02X", ErrUnexpectedCommand, f.Command))
	}
	if len(f.Payload) < 2 {
		return 0, decodeErr("crc", ErrShortPayload)
	}
	return binary.LittleEndian.Uint16(f.Payload), nil
}
