package transport

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	plog "github.com/fieldlink/fieldlink-go/pkg/log"
	"github.com/fieldlink/fieldlink-go/pkg/message"
)

// LinkState is the lifecycle state of a Link.
type LinkState int32

const (
	StateDisconnected LinkState = iota
	StateConnecting
	StateConnected
	StateClosing
)

func (s LinkState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// LinkConfig configures a Link.
type LinkConfig struct {
	Mode     Mode
	Debounce time.Duration

	// CloseTimeout bounds the producer drain in Close when no explicit
	// timeout is given.
	CloseTimeout time.Duration

	Producer ProducerConfig
	Consumer ConsumerConfig

	Logger         *slog.Logger
	ProtocolLogger plog.Logger

	// Transport and RemoteAddr label capture events, e.g. "TCP" and
	// "10.0.0.5:9760". RemoteAddr defaults to the stream's remote address.
	Transport  string
	RemoteAddr string

	// OnStateChange is called on every transition.
	OnStateChange func(old, new LinkState)
}

// Link owns a stream with a Producer and Consumer attached to it.
type Link struct {
	id      string
	config  LinkConfig
	handler Handler
	logger  *slog.Logger
	capture plog.Logger

	state atomic.Int32

	mu       sync.Mutex
	stream   Stream
	producer *Producer
	consumer *Consumer

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewLink creates a disconnected link. handler receives decoded messages
// and the error that ended the read loop, if any.
func NewLink(config LinkConfig, handler Handler) *Link {
	if config.CloseTimeout <= 0 {
		config.CloseTimeout = DefaultStopTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if handler == nil {
		handler = HandlerFuncs{}
	}

	id := uuid.New().String()
	l := &Link{
		id:      id,
		config:  config,
		handler: handler,
		logger:  config.Logger.With("conn_id", id),
		capture: plog.OrNoop(config.ProtocolLogger),
		done:    make(chan struct{}),
	}
	l.state.Store(int32(StateDisconnected))
	return l
}

// ID returns the connection id.
func (l *Link) ID() string { return l.id }

// State returns the current state.
func (l *Link) State() LinkState {
	return LinkState(l.state.Load())
}

// Done is closed once the link has closed, either through Close or
// because the stream failed.
func (l *Link) Done() <-chan struct{} { return l.done }

// Open attaches stream and starts the producer and consumer. The link owns
// stream from now on.
func (l *Link) Open(stream Stream) error {
	if !l.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return ErrAlreadyConnected
	}
	l.notifyStateChange(StateDisconnected, StateConnecting, "")

	if l.config.RemoteAddr == "" {
		l.config.RemoteAddr = remoteAddr(stream)
	}
	cs := &captureStream{Stream: stream, link: l}

	pcfg := l.config.Producer
	if pcfg.Logger == nil {
		pcfg.Logger = l.logger
	}
	ccfg := l.config.Consumer
	if ccfg.Logger == nil {
		ccfg.Logger = l.logger
	}

	decoder := NewDecoder(l.config.Mode, l.config.Debounce, ccfg.Logger)
	producer := NewProducer(cs, pcfg)
	consumer := NewConsumer(cs, decoder, linkHandler{l}, ccfg)

	l.mu.Lock()
	l.stream, l.producer, l.consumer = stream, producer, consumer
	l.mu.Unlock()

	if err := producer.Start(); err != nil {
		return l.abortOpen(fmt.Errorf("start producer: %w", err))
	}
	if err := consumer.Start(); err != nil {
		_ = producer.Stop()
		return l.abortOpen(fmt.Errorf("start consumer: %w", err))
	}

	l.state.Store(int32(StateConnected))
	l.notifyStateChange(StateConnecting, StateConnected, "")
	l.logger.Info("link open", "transport", l.config.Transport, "remote", l.config.RemoteAddr, "mode", l.config.Mode)
	return nil
}

// abortOpen returns a link stuck in StateConnecting to StateDisconnected
// so that it can be opened again.
func (l *Link) abortOpen(err error) error {
	l.mu.Lock()
	l.stream, l.producer, l.consumer = nil, nil, nil
	l.mu.Unlock()

	l.state.Store(int32(StateDisconnected))
	l.notifyStateChange(StateConnecting, StateDisconnected, err.Error())
	l.logger.Warn("link open failed", "error", err)
	return err
}

// Send queues msg for writing.
func (l *Link) Send(msg message.Outbound) error {
	if l.State() != StateConnected {
		return ErrNotConnected
	}
	l.mu.Lock()
	p := l.producer
	l.mu.Unlock()

	if err := p.Send(msg); err != nil {
		return err
	}
	l.captureMessage(plog.DirectionOut, outboundEvent(msg))
	return nil
}

// Close drains queued messages for up to timeout (the configured close
// timeout when timeout is 0), stops the consumer and closes the stream.
// Only the first call has an effect.
func (l *Link) Close(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = l.config.CloseTimeout
	}
	l.shutdown(timeout, "")
	return l.closeErr
}

func (l *Link) shutdown(drain time.Duration, reason string) {
	l.closeOnce.Do(func() {
		defer close(l.done)

		current := l.State()
		if current == StateDisconnected {
			return
		}
		l.state.Store(int32(StateClosing))
		l.notifyStateChange(current, StateClosing, reason)

		l.mu.Lock()
		p, c := l.producer, l.consumer
		l.mu.Unlock()

		if p != nil {
			var err error
			if drain > 0 {
				err = p.StopSafely(drain)
			} else {
				err = p.Stop()
			}
			if err != nil {
				l.logger.Warn("producer stop", "error", err)
				l.closeErr = err
			}
		}
		if c != nil {
			if err := c.Stop(); err != nil && l.closeErr == nil {
				l.closeErr = err
			}
		}

		l.state.Store(int32(StateDisconnected))
		l.notifyStateChange(StateClosing, StateDisconnected, reason)
		l.logger.Info("link closed", "reason", reason)
	})
}

// fail tears the link down after the read loop ended. Queued messages are
// discarded since the stream is gone.
func (l *Link) fail(err error) {
	l.capture.Log(plog.Event{
		Timestamp:    time.Now(),
		ConnectionID: l.id,
		Layer:        plog.LayerTransport,
		Category:     plog.CategoryError,
		Transport:    l.config.Transport,
		RemoteAddr:   l.config.RemoteAddr,
		Error:        &plog.ErrorEventData{Layer: plog.LayerTransport, Message: err.Error(), Context: "read"},
	})
	l.handler.OnError(err)

	// The consumer join would wait on this goroutine.
	go l.shutdown(0, err.Error())
}

func (l *Link) notifyStateChange(old, new LinkState, reason string) {
	l.capture.Log(plog.Event{
		Timestamp:    time.Now(),
		ConnectionID: l.id,
		Layer:        plog.LayerTransport,
		Category:     plog.CategoryState,
		Transport:    l.config.Transport,
		RemoteAddr:   l.config.RemoteAddr,
		StateChange: &plog.StateChangeEvent{
			Entity:   plog.StateEntityLink,
			OldState: old.String(),
			NewState: new.String(),
			Reason:   reason,
		},
	})
	if l.config.OnStateChange != nil {
		l.config.OnStateChange(old, new)
	}
}

func (l *Link) captureMessage(dir plog.Direction, me *plog.MessageEvent, serial ...string) {
	ev := plog.Event{
		Timestamp:    time.Now(),
		ConnectionID: l.id,
		Direction:    dir,
		Layer:        plog.LayerMessage,
		Category:     plog.CategoryMessage,
		Transport:    l.config.Transport,
		RemoteAddr:   l.config.RemoteAddr,
		Message:      me,
	}
	if len(serial) > 0 {
		ev.SerialNo = serial[0]
	}
	l.capture.Log(ev)
}

func (l *Link) captureFrame(dir plog.Direction, data []byte) {
	l.capture.Log(plog.Event{
		Timestamp:    time.Now(),
		ConnectionID: l.id,
		Direction:    dir,
		Layer:        plog.LayerTransport,
		Category:     plog.CategoryMessage,
		Transport:    l.config.Transport,
		RemoteAddr:   l.config.RemoteAddr,
		Frame:        plog.CaptureFrame(data),
	})
}

// linkHandler captures consumer events before passing them on.
type linkHandler struct{ l *Link }

func (h linkHandler) OnMessage(msg message.Inbound) {
	me := &plog.MessageEvent{Kind: msg.Kind.String(), Size: msg.Size()}
	var serial string
	switch msg.Kind {
	case message.KindText:
		me.Text = msg.Text
	case message.KindProtobuf:
		if msg.Status != nil {
			serial = msg.Status.SerialNo
			me.Fields = map[string]any{
				"sample_rate": msg.Status.SampleRate,
				"samples":     len(msg.Status.Samples),
				"power_on":    msg.Status.IsPowerOn,
			}
		}
	}
	h.l.captureMessage(plog.DirectionIn, me, serial)
	h.l.handler.OnMessage(msg)
}

func (h linkHandler) OnError(err error) {
	h.l.fail(err)
}

func outboundEvent(msg message.Outbound) *plog.MessageEvent {
	switch m := msg.(type) {
	case message.Command:
		return &plog.MessageEvent{Kind: "COMMAND", Size: len(m.Bytes()), Text: m.Text()}
	case message.Proto:
		return &plog.MessageEvent{Kind: message.KindProtobuf.String(), Size: len(m.Bytes())}
	default:
		return &plog.MessageEvent{Kind: message.KindBinary.String(), Size: len(msg.Bytes())}
	}
}

// captureStream records raw traffic. It keeps read deadlines available
// when the wrapped stream has them.
type captureStream struct {
	Stream
	link *Link
}

func (s *captureStream) Read(p []byte) (int, error) {
	n, err := s.Stream.Read(p)
	if n > 0 {
		s.link.captureFrame(plog.DirectionIn, p[:n])
	}
	return n, err
}

func (s *captureStream) Write(p []byte) (int, error) {
	n, err := s.Stream.Write(p)
	if n > 0 {
		s.link.captureFrame(plog.DirectionOut, p[:n])
	}
	return n, err
}

func (s *captureStream) SetReadDeadline(t time.Time) error {
	if dl, ok := s.Stream.(readDeadliner); ok {
		return dl.SetReadDeadline(t)
	}
	return nil
}

func remoteAddr(s Stream) string {
	switch v := s.(type) {
	case net.Conn:
		return v.RemoteAddr().String()
	case interface{ Name() string }:
		return v.Name()
	}
	return ""
}
