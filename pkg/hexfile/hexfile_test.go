package hexfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const image = `:020000041D00DD
:0400000001020304F2

:020000041FC01B
:02001000AABB89
:00000001FF
`

var bootRange = Range{Begin: 0x1FC00000, End: 0x1FC02FFF}

func TestParseLine(t *testing.T) {
	rec, err := ParseLine(":0400000001020304F2")
	require.NoError(t, err)

	assert.Equal(t, byte(4), rec.ByteCount)
	assert.Equal(t, uint16(0), rec.Address)
	assert.Equal(t, TypeData, rec.Type)
	assert.Equal(t, []byte{1, 2, 3, 4}, rec.Data)
	assert.Equal(t, byte(0xF2), rec.Checksum)
	assert.Equal(t, []byte{0x04, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04, 0xF2}, rec.Raw())
	assert.Equal(t, ":0400000001020304F2", rec.String())
}

func TestParseLineLowercase(t *testing.T) {
	rec, err := ParseLine(":02001000aabb89")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0010), rec.Address)
	assert.Equal(t, []byte{0xAA, 0xBB}, rec.Data)
}

func TestParseLineErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"no colon", "0400000001020304F2", ErrMissingColon},
		{"odd length", ":0400000001020304F", ErrOddLength},
		{"bad hex", ":04000000010203ZZF2", ErrInvalidHex},
		{"too short", ":0000", ErrTooShort},
		{"byte count", ":0500000001020304F2", ErrByteCount},
		{"checksum", ":0400000001020304F3", ErrChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseLine(%q) error = %v, want %v", tt.line, err, tt.want)
			}
		})
	}
}

func TestLoadFiltersProtectedRange(t *testing.T) {
	records, err := Load(strings.NewReader(image), bootRange)
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, TypeExtendedLinearAddress, records[0].Type)
	assert.Equal(t, TypeData, records[1].Type)
	assert.Equal(t, TypeExtendedLinearAddress, records[2].Type)
	assert.Equal(t, TypeEOF, records[3].Type)
}

func TestLoadNoProtection(t *testing.T) {
	records, err := Load(strings.NewReader(image), NoProtection)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []byte{0xAA, 0xBB}, records[3].Data)
}

func TestLoadBaseAddressApplies(t *testing.T) {
	// The same offset is protected only under the matching upper address.
	lines := []string{
		":0400000001020304F2",
		":020000041D00DD",
		":0400000001020304F2",
	}
	records, err := LoadLines(lines, Range{Begin: 0x1D000000, End: 0x1D000FFF})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, TypeData, records[0].Type)
	assert.Equal(t, TypeExtendedLinearAddress, records[1].Type)
}

func TestLoadBoundariesInclusive(t *testing.T) {
	lines := []string{":021000001001DD"}

	records, err := LoadLines(lines, Range{Begin: 0x1000, End: 0x1000})
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = LoadLines(lines, Range{Begin: 0x0000, End: 0x0FFF})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLoadIgnoresAfterEOF(t *testing.T) {
	records, err := LoadLines([]string{":00000001FF", "garbage"}, NoProtection)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLoadCRLF(t *testing.T) {
	src := strings.ReplaceAll(image, "\n", "\r\n")
	records, err := Load(strings.NewReader(src), bootRange)
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestLoadFormatError(t *testing.T) {
	src := ":020000041D00DD\n:0400000001020304F3\n"

	_, err := Load(strings.NewReader(src), NoProtection)
	require.Error(t, err)

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.Line)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestLoadBadExtendedAddress(t *testing.T) {
	// Type 04 with a single data byte.
	_, err := LoadLines([]string{":010000041DDE"}, NoProtection)
	assert.ErrorIs(t, err, ErrBadAddress)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.hex")
	require.NoError(t, os.WriteFile(path, []byte(image), 0o600))

	records, err := LoadFile(path, bootRange)
	require.NoError(t, err)
	assert.Len(t, records, 4)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.hex"), bootRange)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRawRecords(t *testing.T) {
	records, err := Load(strings.NewReader(image), bootRange)
	require.NoError(t, err)

	raw := RawRecords(records)
	require.Len(t, raw, len(records))
	if !bytes.Equal(raw[3], []byte{0x00, 0x00, 0x00, 0x01, 0xFF}) {
		t.Errorf("RawRecords()[3] = % X, want 00 00 00 01 FF", raw[3])
	}
}

func TestRangeContains(t *testing.T) {
	assert.False(t, NoProtection.Contains(0))
	assert.False(t, NoProtection.Contains(1))
	assert.True(t, bootRange.Contains(0x1FC00000))
	assert.True(t, bootRange.Contains(0x1FC02FFF))
	assert.False(t, bootRange.Contains(0x1FC03000))
}

func TestInspect(t *testing.T) {
	src := ":040000059D0010004A\n" + strings.ReplaceAll(image, "\n\n", "\n")

	s, err := Inspect(strings.NewReader(src))
	require.NoError(t, err)

	require.Len(t, s.Segments, 2)
	assert.Equal(t, uint32(0x1D000000), s.Segments[0].Address)
	assert.Equal(t, 4, s.Segments[0].Size)
	assert.Equal(t, uint32(0x1FC00010), s.Segments[1].Address)
	assert.Equal(t, 6, s.TotalBytes)
	assert.True(t, s.HasStart)
	assert.Equal(t, uint32(0x9D001000), s.StartAddress)
}

func TestInspectRejectsCorruptImage(t *testing.T) {
	_, err := Inspect(strings.NewReader(":0400000001020304F3\n:00000001FF\n"))
	assert.Error(t, err)
}
