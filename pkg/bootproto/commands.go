package bootproto

import "encoding/binary"

// Command is one bootloader request. It is immutable once built.
type Command struct {
	// Code is the opcode.
	Code byte

	// Payload follows the opcode inside the frame.
	Payload []byte

	// expectsResponse is false for commands after which the device resets.
	expectsResponse bool
}

// Bytes returns the encoded wire frame.
func (c Command) Bytes() []byte {
	return Encode(c.Code, c.Payload...)
}

// Report returns the frame padded to a report of reportSize bytes.
func (c Command) Report(reportSize int) ([]byte, error) {
	return EncodeReport(c.Bytes(), reportSize)
}

// ExpectsResponse reports whether the device answers this command.
func (c Command) ExpectsResponse() bool {
	return c.expectsResponse
}

// Name returns the opcode name.
func (c Command) Name() string {
	return CommandName(c.Code)
}

// NewRequestVersion returns the RequestVersion command.
func NewRequestVersion() Command {
	return Command{Code: CmdRequestVersion, expectsResponse: true}
}

// NewEraseFlash returns the EraseFlash command.
func NewEraseFlash() Command {
	return Command{Code: CmdEraseFlash, expectsResponse: true}
}

// NewProgramFlash returns a ProgramFlash command carrying one binary hex record
// (the record bytes without the leading ':').
func NewProgramFlash(record []byte) Command {
	payload := make([]byte, len(record))
	copy(payload, record)
	return Command{Code: CmdProgramFlash, Payload: payload, expectsResponse: true}
}

// NewReadCRC returns a ReadCrc command for length bytes starting at address.
//
// Payload structure:
//
//	[ADDR(4, LE)][LEN(4, LE)]
func NewReadCRC(address, length uint32) Command {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload[0:], address)
	binary.LittleEndian.PutUint32(payload[4:], length)
	return Command{Code: CmdReadCRC, Payload: payload, expectsResponse: true}
}

// NewJumpToApplication returns the JumpToApplication command.
func NewJumpToApplication() Command {
	return Command{Code: CmdJumpToApplication}
}
