package bootproto

// Framing bytes.
const (
	// SOH starts a frame.
	SOH byte = 0x01

	// EOT ends a frame.
	EOT byte = 0x04

	// DLE escapes the following byte.
	DLE byte = 0x10
)

// Command opcodes.
const (
	CmdRequestVersion    byte = 0x01
	CmdEraseFlash        byte = 0x02
	CmdProgramFlash      byte = 0x03
	CmdReadCRC           byte = 0x04
	CmdJumpToApplication byte = 0x05
)

// Frame size constants.
const (
	// DefaultReportSize is the HID report size used by the bootloader.
	DefaultReportSize = 64

	// crcSize is the number of CRC bytes at the end of the frame content.
	crcSize = 2

	// minContentSize is CMD plus the CRC.
	minContentSize = 1 + crcSize
)

// CommandName returns a human-readable name for a command opcode.
func CommandName(cmd byte) string {
	switch cmd {
	case CmdRequestVersion:
		return "RequestVersion"
	case CmdEraseFlash:
		return "EraseFlash"
	case CmdProgramFlash:
		return "ProgramFlash"
	case CmdReadCRC:
		return "ReadCrc"
	case CmdJumpToApplication:
		return "JumpToApplication"
	default:
		return "Unknown"
	}
}

// needsEscape reports whether b collides with a framing byte.
func needsEscape(b byte) bool {
	return b == SOH || b == EOT || b == DLE
}
