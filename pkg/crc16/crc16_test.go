package crc16

import "testing"

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{
			name:     "empty data",
			data:     []byte{},
			expected: 0x0000,
		},
		{
			name:     "request version command",
			data:     []byte{0x01},
			expected: 0x1021,
		},
		{
			name:     "single byte zero",
			data:     []byte{0x00},
			expected: 0x0000,
		},
		{
			name:     "check string",
			data:     []byte("123456789"),
			expected: 0x31C3,
		},
		{
			name:     "low and high bytes differ",
			data:     []byte{0x4D, 0x70},
			expected: 0x0507,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.data)
			if got != tt.expected {
				t.Errorf("Compute() = 0x%04X, want 0x%04X", got, tt.expected)
			}
		})
	}
}

// bitwise is the reference shift-register form of the same CRC.
func bitwise(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ Polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func TestComputeMatchesBitwise(t *testing.T) {
	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}

	for n := 0; n <= len(data); n += 17 {
		if got, want := Compute(data[:n]), bitwise(data[:n]); got != want {
			t.Fatalf("len %d: Compute() = 0x%04X, bitwise = 0x%04X", n, got, want)
		}
	}
}

func TestLowHighAppend(t *testing.T) {
	crc := Compute([]byte{0x4D, 0x70})

	if Low(crc) != 0x07 {
		t.Errorf("Low() = 0x%02X, want 0x07", Low(crc))
	}
	if High(crc) != 0x05 {
		t.Errorf("High() = 0x%02X, want 0x05", High(crc))
	}

	got := Append([]byte{0xAA}, crc)
	want := []byte{0xAA, 0x07, 0x05}
	if string(got) != string(want) {
		t.Errorf("Append() = % X, want % X", got, want)
	}
}

func BenchmarkCompute(b *testing.B) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Compute(data)
	}
}
