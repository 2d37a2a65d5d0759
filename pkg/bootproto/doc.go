// Package bootproto implements the framing layer of the device bootloader.
//
// Every command and response is carried in a byte-stuffed frame:
//
//	SOH [escaped(CMD PAYLOAD... CRC_L CRC_H)] EOT
//
// The CRC is the 16-bit CRC of CMD and PAYLOAD (see package crc16), appended
// low byte first. Inside the frame every SOH, EOT or DLE byte is preceded by a
// DLE escape, so the delimiters never appear unescaped in the content.
//
// # Commands
//
//	0x01 RequestVersion     -> response carries major, minor
//	0x02 EraseFlash         -> response echoes the command
//	0x03 ProgramFlash       -> payload is one binary hex record; response echoes the command
//	0x04 ReadCrc            -> payload is address, length (LE u32); response carries the CRC
//	0x05 JumpToApplication  -> no response, the device resets
//
// Frames travel in fixed-size HID reports. A frame that does not fit the
// report is a configuration error and is rejected before anything is written.
package bootproto
