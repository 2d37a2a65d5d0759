package log

import (
	"fmt"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileExtension is the conventional capture file extension.
const FileExtension = ".flog"

// FileLogger appends events to a capture file. It is safe for concurrent
// use.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
	dropped int
}

// NewFileLogger opens path for appending, creating it if needed.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	return &FileLogger{file: f, encoder: newEncoder(f)}, nil
}

// Log appends the event. Events logged after Close are ignored.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	// Capture must never disturb the link; failures are only counted.
	if err := l.encoder.Encode(event); err != nil {
		l.dropped++
	}
}

// Dropped returns the number of events that failed to encode.
func (l *FileLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close closes the file. It is safe to call more than once.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
