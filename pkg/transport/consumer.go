package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldlink/fieldlink-go/pkg/message"
)

// Handler receives consumer events. Calls are serialized. Handlers must not
// call Consumer.Stop.
type Handler interface {
	OnMessage(msg message.Inbound)

	// OnError is called once when the read loop ends abnormally.
	OnError(err error)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are ignored.
type HandlerFuncs struct {
	Message func(message.Inbound)
	Error   func(error)
}

// OnMessage calls h.Message.
func (h HandlerFuncs) OnMessage(msg message.Inbound) {
	if h.Message != nil {
		h.Message(msg)
	}
}

// OnError calls h.Error.
func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

// Consumer defaults.
const (
	DefaultReadTimeout = 100 * time.Millisecond
	DefaultIdleBackoff = 10 * time.Millisecond
	DefaultReadBuffer  = 4096
)

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	// ReadTimeout bounds each read on streams with read deadlines.
	ReadTimeout time.Duration

	// IdleBackoff is the sleep after a read that returned no data.
	IdleBackoff time.Duration

	// StopTimeout bounds the join in Stop.
	StopTimeout time.Duration

	// ReadBuffer is the size of a single read.
	ReadBuffer int

	Logger *slog.Logger
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.IdleBackoff <= 0 {
		c.IdleBackoff = DefaultIdleBackoff
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.ReadBuffer <= 0 {
		c.ReadBuffer = DefaultReadBuffer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Consumer runs the read loop over one stream and feeds a Decoder.
type Consumer struct {
	stream  io.ReadCloser
	decoder Decoder
	handler Handler
	config  ConsumerConfig

	// mu guards the decoder and the debounce timer.
	mu    sync.Mutex
	timer *time.Timer

	// emitMu serializes handler calls.
	emitMu sync.Mutex

	running  atomic.Bool
	stopping atomic.Bool
	started  atomic.Bool
	stopOnce sync.Once
	stopErr  error
	done     chan struct{}
}

// NewConsumer creates a consumer. It owns stream and closes it on Stop.
func NewConsumer(stream io.ReadCloser, decoder Decoder, handler Handler, config ConsumerConfig) *Consumer {
	if handler == nil {
		handler = HandlerFuncs{}
	}
	return &Consumer{
		stream:  stream,
		decoder: decoder,
		handler: handler,
		config:  config.withDefaults(),
		done:    make(chan struct{}),
	}
}

// Start launches the read loop.
func (c *Consumer) Start() error {
	if c.stopping.Load() {
		return ErrStreamClosed
	}
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	c.running.Store(true)
	go c.readLoop()
	return nil
}

// Running reports whether the read loop is active.
func (c *Consumer) Running() bool {
	return c.running.Load()
}

// Done is closed when the read loop has exited.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

func (c *Consumer) readLoop() {
	defer close(c.done)
	defer c.running.Store(false)

	buf := make([]byte, c.config.ReadBuffer)
	dl, hasDeadline := c.stream.(readDeadliner)

	for !c.stopping.Load() {
		if hasDeadline {
			_ = dl.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}

		n, err := c.stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if ferr := c.feed(chunk); ferr != nil {
				c.config.Logger.Error("consumer stopped on fatal decode error", "error", ferr)
				c.emitError(ferr)
				return
			}
		}

		if err != nil {
			if isTimeout(err) {
				continue
			}
			if c.stopping.Load() {
				return
			}
			c.config.Logger.Warn("consumer read failed", "error", err)
			c.emitError(fmt.Errorf("%w: %w", ErrStreamClosed, err))
			return
		}
		if n == 0 {
			time.Sleep(c.config.IdleBackoff)
		}
	}
}

func (c *Consumer) feed(chunk []byte) error {
	now := time.Now()

	c.mu.Lock()
	msgs, err := c.decoder.Decode(chunk, now)
	if err == nil {
		if d := c.decoder.Debounce(); d > 0 {
			if c.timer == nil {
				c.timer = time.AfterFunc(d, c.debounced)
			} else {
				c.timer.Reset(d)
			}
		}
	}
	c.mu.Unlock()

	c.emit(msgs)
	return err
}

func (c *Consumer) debounced() {
	c.mu.Lock()
	msgs := c.decoder.Flush(time.Now())
	c.mu.Unlock()

	c.emit(msgs)
}

func (c *Consumer) emit(msgs []message.Inbound) {
	if len(msgs) == 0 {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	for _, m := range msgs {
		c.handler.OnMessage(m)
	}
}

func (c *Consumer) emitError(err error) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.handler.OnError(err)
}

// Stop halts the read loop, cancels the debounce timer, flushes buffered
// data to the handler and closes the stream. The loop is joined with the
// stop timeout. Only the first call has an effect.
func (c *Consumer) Stop() error {
	c.stopOnce.Do(func() {
		c.stopping.Store(true)

		// The loop sees the flag within one bounded read; data it read
		// meanwhile still reaches the decoder and is flushed below.
		joined := !c.started.Load() || c.join(c.config.StopTimeout)

		c.mu.Lock()
		if c.timer != nil {
			c.timer.Stop()
		}
		msgs := c.decoder.Flush(time.Now())
		c.mu.Unlock()
		c.emit(msgs)

		if err := c.stream.Close(); err != nil {
			c.config.Logger.Debug("stream close", "error", err)
		}

		// A read without deadline only returns once the stream is closed.
		if !joined && !c.join(c.config.StopTimeout) {
			c.config.Logger.Warn("consumer did not stop in time", "timeout", c.config.StopTimeout)
			c.stopErr = ErrStopTimeout
		}
	})
	return c.stopErr
}

func (c *Consumer) join(timeout time.Duration) bool {
	select {
	case <-c.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
