package hid

import (
	"context"
	"errors"
)

// DefaultReportSize is the report size of full-speed HID devices.
const DefaultReportSize = 64

var (
	// ErrDeviceNotFound is returned when no device matches the VID/PID.
	ErrDeviceNotFound = errors.New("hid device not found")

	// ErrNoEndpoint is returned when the interface lacks interrupt endpoints.
	ErrNoEndpoint = errors.New("hid interface has no interrupt endpoint")

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("hid device closed")

	// ErrReportSize is returned when a report does not match the report size.
	ErrReportSize = errors.New("report size mismatch")
)

// ReportDevice is a channel of fixed-size reports.
type ReportDevice interface {
	// WriteReport writes one report of ReportSize bytes.
	WriteReport(ctx context.Context, report []byte) error

	// ReadReport blocks until one report arrives or the read timeout expires.
	ReadReport(ctx context.Context) ([]byte, error)

	// FastReadReport is ReadReport with the short timeout used while
	// streaming flash records.
	FastReadReport(ctx context.Context) ([]byte, error)

	// ReportSize returns the fixed report length.
	ReportSize() int

	Close() error
}
