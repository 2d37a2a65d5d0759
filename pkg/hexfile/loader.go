package hexfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Range is an inclusive flash address range. A Range with Begin > End is
// empty.
type Range struct {
	Begin uint32
	End   uint32
}

// NoProtection is an empty range; no record is filtered.
var NoProtection = Range{Begin: 1, End: 0}

// Contains reports whether addr lies inside the range.
func (r Range) Contains(addr uint32) bool {
	return r.Begin <= r.End && addr >= r.Begin && addr <= r.End
}

// FormatError reports a malformed record together with its line number.
type FormatError struct {
	// Line is the 1-based line number.
	Line int

	// Err is the record parse error.
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("hex line %d: %v", e.Line, e.Err)
}

// Unwrap returns the record parse error.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// Load reads an image and returns its records in file order with protected
// data records removed. Blank lines are skipped and lines after the EOF
// record are ignored.
func Load(r io.Reader, protected Range) ([]Record, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read hex image: %w", err)
	}
	return LoadLines(lines, protected)
}

// LoadFile loads the image at path.
func LoadFile(path string, protected Range) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f, protected)
}

// LoadLines is Load over lines that are already split.
func LoadLines(lines []string, protected Range) ([]Record, error) {
	records := make([]Record, 0, len(lines))
	var base uint16

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		rec, err := ParseLine(line)
		if err != nil {
			return nil, &FormatError{Line: i + 1, Err: err}
		}

		switch rec.Type {
		case TypeExtendedLinearAddress:
			if len(rec.Data) != 2 {
				return nil, &FormatError{Line: i + 1, Err: ErrBadAddress}
			}
			base = uint16(rec.Data[0])<<8 | uint16(rec.Data[1])
		case TypeData:
			if protected.Contains(uint32(base)<<16 | uint32(rec.Address)) {
				continue
			}
		}

		records = append(records, rec)
		if rec.Type == TypeEOF {
			break
		}
	}

	return records, nil
}

// RawRecords returns the binary form of each record.
func RawRecords(records []Record) [][]byte {
	raw := make([][]byte, len(records))
	for i, r := range records {
		raw[i] = r.Raw()
	}
	return raw
}
