package transport

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fieldlink/fieldlink-go/pkg/message"
)

// Producer defaults.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultStopTimeout  = time.Second
)

// ProducerConfig configures a Producer.
type ProducerConfig struct {
	// PollInterval is how long the writer sleeps when the queue is empty.
	PollInterval time.Duration

	// StopTimeout bounds the join in Stop.
	StopTimeout time.Duration

	Logger *slog.Logger
}

func (c ProducerConfig) withDefaults() ProducerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Producer writes queued messages to a stream in FIFO order from a single
// goroutine. A failed write is logged and the message is dropped.
type Producer struct {
	w      io.Writer
	config ProducerConfig

	mu       sync.Mutex
	queue    []message.Outbound
	inFlight int
	started  bool
	stopped  bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewProducer creates a producer writing to w.
func NewProducer(w io.Writer, config ProducerConfig) *Producer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Producer{
		w:      w,
		config: config.withDefaults(),
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (p *Producer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrProducerStopped
	}
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true
	go p.run()
	return nil
}

// Send appends msg to the queue. Messages sent before Start are written
// once the producer starts.
func (p *Producer) Send(msg message.Outbound) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrProducerStopped
	}
	p.queue = append(p.queue, msg)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of messages queued or being written.
func (p *Producer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) + p.inFlight
}

func (p *Producer) run() {
	defer close(p.done)

	for {
		if p.ctx.Err() != nil {
			return
		}

		msg, ok := p.next()
		if !ok {
			select {
			case <-p.ctx.Done():
				return
			case <-p.wake:
			case <-time.After(p.config.PollInterval):
			}
			continue
		}

		if _, err := p.w.Write(msg.Bytes()); err != nil {
			p.config.Logger.Warn("producer write failed, message dropped", "error", err)
		}

		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}
}

func (p *Producer) next() (message.Outbound, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return nil, false
	}
	msg := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	p.inFlight++
	return msg, true
}

// Stop discards queued messages and waits up to the stop timeout for the
// writer to exit. It is safe to call more than once.
func (p *Producer) Stop() error {
	p.mu.Lock()
	p.stopped = true
	started := p.started
	if n := len(p.queue); n > 0 {
		p.config.Logger.Debug("producer stopping, discarding queue", "messages", n)
	}
	p.queue = nil
	p.mu.Unlock()

	p.cancel()
	if !started {
		return nil
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(p.config.StopTimeout):
		p.config.Logger.Warn("producer did not stop in time", "timeout", p.config.StopTimeout)
		return ErrStopTimeout
	}
}

// StopSafely waits until the queue drains or timeout elapses, then stops.
// It returns ErrDrainTimeout if messages were still pending.
func (p *Producer) StopSafely(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	drained := p.Pending() == 0
	for !drained && time.Now().Before(deadline) && p.isStarted() {
		<-ticker.C
		drained = p.Pending() == 0
	}

	if err := p.Stop(); err != nil {
		return err
	}
	if !drained {
		return ErrDrainTimeout
	}
	return nil
}

func (p *Producer) isStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started && !p.stopped
}
