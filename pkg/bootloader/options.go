package bootloader

import (
	"log/slog"

	plog "github.com/fieldlink/fieldlink-go/pkg/log"
)

// Phase names a stage of a firmware update.
type Phase string

const (
	PhaseVersion     Phase = "version"
	PhaseErasing     Phase = "erasing"
	PhaseProgramming Phase = "programming"
	PhaseJumping     Phase = "jumping"
	PhaseComplete    Phase = "complete"
)

// Progress reports how far an update has got.
type Progress struct {
	Phase Phase

	// Current is the number of records already programmed.
	Current int
	Total   int

	// Percent is Current*100/Total, or 100 once complete.
	Percent int
}

// ProgressCallback is called synchronously from the flashing goroutine and
// must return quickly.
type ProgressCallback func(Progress)

// StateCallback is called on every state transition.
type StateCallback func(old, new State)

// Config holds the session configuration.
type Config struct {
	Logger         *slog.Logger
	ProtocolLogger plog.Logger
	Progress       ProgressCallback
	StateChanged   StateCallback

	// EraseBeforeFlash makes Flash send EraseFlash before programming.
	EraseBeforeFlash bool

	// ReportSize overrides the device report size.
	ReportSize int
}

// Option configures a Session.
type Option func(*Config)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithProtocolLogger captures every command exchange.
func WithProtocolLogger(l plog.Logger) Option {
	return func(c *Config) { c.ProtocolLogger = l }
}

// WithProgressCallback sets the progress callback.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(c *Config) { c.Progress = cb }
}

// WithStateCallback sets the state change callback.
func WithStateCallback(cb StateCallback) Option {
	return func(c *Config) { c.StateChanged = cb }
}

// WithEraseBeforeFlash enables or disables the erase step of Flash.
// It is disabled by default.
func WithEraseBeforeFlash(erase bool) Option {
	return func(c *Config) { c.EraseBeforeFlash = erase }
}

// WithReportSize sets the report size. Values below 8 are ignored.
func WithReportSize(size int) Option {
	return func(c *Config) {
		if size >= 8 {
			c.ReportSize = size
		}
	}
}
