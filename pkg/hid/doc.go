// Package hid provides the fixed-size report channel used to talk to a
// device bootloader.
//
// A bootloader exchanges exactly one report per request and one per
// response. ReportDevice captures that contract; USBDevice implements it on
// the interrupt endpoints of a USB HID interface through libusb.
package hid
