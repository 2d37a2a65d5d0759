package hexfile

import (
	"fmt"
	"io"

	"github.com/marcinbor85/gohex"
)

// Segment is a contiguous block of image data.
type Segment struct {
	Address uint32
	Size    int
}

// Summary describes the memory layout of an image.
type Summary struct {
	Segments     []Segment
	TotalBytes   int
	StartAddress uint32
	HasStart     bool
}

// Inspect parses a whole image into memory segments. It validates every
// record checksum and is used to report what an image will write before
// flashing it.
func Inspect(r io.Reader) (Summary, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return Summary{}, fmt.Errorf("inspect hex image: %w", err)
	}

	var s Summary
	for _, seg := range mem.GetDataSegments() {
		s.Segments = append(s.Segments, Segment{Address: seg.Address, Size: len(seg.Data)})
		s.TotalBytes += len(seg.Data)
	}
	s.StartAddress, s.HasStart = mem.GetStartAddress()

	return s, nil
}
