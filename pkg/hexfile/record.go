package hexfile

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Record types.
const (
	TypeData                   byte = 0x00
	TypeEOF                    byte = 0x01
	TypeExtendedSegmentAddress byte = 0x02
	TypeStartSegmentAddress    byte = 0x03
	TypeExtendedLinearAddress  byte = 0x04
	TypeStartLinearAddress     byte = 0x05
)

// Record parse errors.
var (
	ErrMissingColon = errors.New("record does not start with ':'")
	ErrOddLength    = errors.New("record has an odd number of hex digits")
	ErrInvalidHex   = errors.New("record contains non-hex characters")
	ErrTooShort     = errors.New("record shorter than header and checksum")
	ErrByteCount    = errors.New("byte count does not match record length")
	ErrChecksum     = errors.New("record checksum mismatch")
	ErrBadAddress   = errors.New("extended linear address record must carry 2 bytes")
)

// headerSize is byte count, address (2) and type.
const headerSize = 4

// Record is one decoded Intel HEX line.
type Record struct {
	ByteCount byte
	Address   uint16
	Type      byte
	Data      []byte
	Checksum  byte
}

// Raw returns the binary form of the record (the line without ':').
func (r Record) Raw() []byte {
	raw := make([]byte, 0, headerSize+len(r.Data)+1)
	raw = append(raw, r.ByteCount, byte(r.Address>>8), byte(r.Address), r.Type)
	raw = append(raw, r.Data...)
	return append(raw, r.Checksum)
}

// String returns the record in its text form.
func (r Record) String() string {
	return ":" + strings.ToUpper(hex.EncodeToString(r.Raw()))
}

// ParseLine decodes one text record.
func ParseLine(line string) (Record, error) {
	if !strings.HasPrefix(line, ":") {
		return Record{}, ErrMissingColon
	}
	digits := line[1:]
	if len(digits)%2 != 0 {
		return Record{}, ErrOddLength
	}

	raw, err := hex.DecodeString(digits)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	if len(raw) < headerSize+1 {
		return Record{}, ErrTooShort
	}
	if int(raw[0]) != len(raw)-headerSize-1 {
		return Record{}, fmt.Errorf("%w: header says %d, line carries %d",
			ErrByteCount, raw[0], len(raw)-headerSize-1)
	}

	var sum byte
	for _, b := range raw {
		sum += b
	}
	if sum != 0 {
		return Record{}, ErrChecksum
	}

	return Record{
		ByteCount: raw[0],
		Address:   uint16(raw[1])<<8 | uint16(raw[2]),
		Type:      raw[3],
		Data:      raw[headerSize : len(raw)-1],
		Checksum:  raw[len(raw)-1],
	}, nil
}
