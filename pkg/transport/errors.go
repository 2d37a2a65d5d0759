package transport

import "errors"

var (
	// ErrStreamClosed wraps the error that ended a read loop.
	ErrStreamClosed = errors.New("stream closed")

	// ErrBufferOverflow means the binary accumulator exceeded its cap; the
	// stream is considered out of sync.
	ErrBufferOverflow = errors.New("binary buffer overflow")

	// ErrStopTimeout means a goroutine did not exit within the stop timeout.
	ErrStopTimeout = errors.New("stop timeout")

	// ErrDrainTimeout means StopSafely gave up with messages still queued.
	ErrDrainTimeout = errors.New("drain timeout")

	ErrAlreadyStarted   = errors.New("already started")
	ErrProducerStopped  = errors.New("producer stopped")
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
)
