// Package log provides protocol capture for fieldlink.
//
// Capture is separate from operational logging (slog). It records a
// machine-readable trace of everything exchanged with a device: raw frames
// on a link, decoded messages, bootloader commands, discovery replies, state
// changes and errors.
//
// # Basic Usage
//
// Components accept a Logger. Pass nil or NoopLogger to disable capture:
//
//	// Console, for development
//	capture := log.NewSlogAdapter(slog.Default())
//
//	// Binary file
//	capture, _ := log.NewFileLogger("bench.flog")
//
//	// Both
//	capture := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fileLogger)
//
// # Event Types
//
// Every Event carries exactly one payload:
//   - Frame: raw bytes written to or read from a stream
//   - Message: a decoded inbound or outbound message
//   - Bootloader: one bootloader command and its outcome
//   - Discovery: a device seen by discovery
//   - StateChange: link or session lifecycle
//   - Error: a failure at any layer
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with integer keys and
// the .flog extension. "fieldlink log" reads them back.
package log
