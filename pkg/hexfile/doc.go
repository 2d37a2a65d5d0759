// Package hexfile loads Intel HEX firmware images for the bootloader.
//
// Each line of an image is one record:
//
//	:LLAAAATT[DD...]CC
//
// where LL is the data byte count, AAAA the 16-bit address offset, TT the
// record type, DD the data and CC the two's complement checksum. Load turns
// the text into binary records (the form the bootloader expects inside a
// ProgramFlash frame), tracking the extended linear address carried by type
// 0x04 records and dropping data records that fall inside a protected flash
// range, such as the region occupied by the bootloader itself.
//
// Loading is a pure function of the file content and the protected range; it
// performs no device I/O.
package hexfile
