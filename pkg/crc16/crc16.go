// Package crc16 computes the 16-bit CRC used by the bootloader framing layer.
//
// The checksum is CRC-16/CCITT with polynomial 0x1021 and an initial value of
// zero (the XMODEM parameter set). It is evaluated four bits at a time with a
// 16-entry lookup table, which keeps the table small enough for the device side
// of the protocol while producing the same result as a bitwise implementation.
package crc16

// Polynomial is the CRC-16/CCITT generator polynomial.
const Polynomial = 0x1021

// table holds the CRC of every 4-bit value.
var table = [16]uint16{
	0x0000, 0x1021, 0x2042, 0x3063, 0x4084, 0x50a5, 0x60c6, 0x70e7,
	0x8108, 0x9129, 0xa14a, 0xb16b, 0xc18c, 0xd1ad, 0xe1ce, 0xf1ef,
}

// Compute returns the CRC of data. It keeps no state between calls.
func Compute(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		// High nibble first, then low nibble.
		i := (crc >> 12) ^ uint16(b>>4)
		crc = table[i&0x0F] ^ (crc << 4)
		i = (crc >> 12) ^ uint16(b)
		crc = table[i&0x0F] ^ (crc << 4)
	}
	return crc
}

// Low returns the low byte of crc.
func Low(crc uint16) byte {
	return byte(crc & 0xFF)
}

// High returns the high byte of crc.
func High(crc uint16) byte {
	return byte(crc >> 8)
}

// Append appends crc to b in wire order (low byte first).
func Append(b []byte, crc uint16) []byte {
	return append(b, Low(crc), High(crc))
}
