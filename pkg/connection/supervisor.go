package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	plog "github.com/fieldlink/fieldlink-go/pkg/log"
	"github.com/fieldlink/fieldlink-go/pkg/message"
	"github.com/fieldlink/fieldlink-go/pkg/transport"
)

// DefaultDialTimeout bounds a single dial attempt.
const DefaultDialTimeout = 10 * time.Second

var (
	ErrNotConnected   = errors.New("not connected")
	ErrAlreadyRunning = errors.New("supervisor already running")
	ErrNoDialer       = errors.New("no dial function")
)

// State is the supervisor state.
type State uint8

const (
	StateIdle State = iota
	StateDialing
	StateConnected
	StateBackoff
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDialing:
		return "DIALING"
	case StateConnected:
		return "CONNECTED"
	case StateBackoff:
		return "BACKOFF"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// DialFunc opens a new stream to the device.
type DialFunc func(ctx context.Context) (transport.Stream, error)

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	Dial        DialFunc
	DialTimeout time.Duration
	Backoff     BackoffConfig

	// Link is used for every link the supervisor opens.
	Link    transport.LinkConfig
	Handler transport.Handler

	Logger *slog.Logger

	OnStateChange func(old, new State)

	// OnConnect runs after each link opens, e.g. to send start commands.
	OnConnect func(link *transport.Link)

	// OnReconnect runs before each backoff sleep.
	OnReconnect func(attempt int, delay time.Duration, lastErr error)
}

// Supervisor keeps one link open, redialing with backoff when it fails.
type Supervisor struct {
	cfg     SupervisorConfig
	backoff *Backoff
	logger  *slog.Logger
	capture plog.Logger

	mu      sync.Mutex
	state   State
	link    *transport.Link
	running bool
}

// NewSupervisor creates an idle supervisor.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Link.Logger == nil {
		cfg.Link.Logger = cfg.Logger
	}
	return &Supervisor{
		cfg:     cfg,
		backoff: NewBackoff(cfg.Backoff),
		logger:  cfg.Logger.With("component", "supervisor"),
		capture: plog.OrNoop(cfg.Link.ProtocolLogger),
	}
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Link returns the open link, or nil while disconnected.
func (s *Supervisor) Link() *transport.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link
}

// Attempts returns the number of reconnect attempts since the last
// successful connect.
func (s *Supervisor) Attempts() int {
	return s.backoff.Attempts()
}

// Send queues msg on the open link.
func (s *Supervisor) Send(msg message.Outbound) error {
	l := s.Link()
	if l == nil {
		return ErrNotConnected
	}
	if err := l.Send(msg); err != nil {
		if errors.Is(err, transport.ErrNotConnected) {
			return ErrNotConnected
		}
		return err
	}
	return nil
}

// Run dials and supervises links until ctx is cancelled. The open link is
// closed before Run returns. Run returns nil on cancellation.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.cfg.Dial == nil {
		return ErrNoDialer
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.setState(StateStopped, "")
	}()

	for ctx.Err() == nil {
		lastErr := s.connectOnce(ctx)
		if ctx.Err() != nil {
			break
		}

		delay := s.backoff.Next()
		attempt := s.backoff.Attempts()
		s.setState(StateBackoff, errString(lastErr))
		s.logger.Info("reconnecting", "attempt", attempt, "delay", delay, "error", lastErr)
		if s.cfg.OnReconnect != nil {
			s.cfg.OnReconnect(attempt, delay, lastErr)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
	return nil
}

// connectOnce dials, runs one link until it ends and returns why it ended.
func (s *Supervisor) connectOnce(ctx context.Context) error {
	s.setState(StateDialing, "")

	dctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	stream, err := s.cfg.Dial(dctx)
	cancel()
	if err != nil {
		s.logger.Warn("dial failed", "error", err)
		return fmt.Errorf("dial: %w", err)
	}

	linkErr := make(chan error, 1)
	link := transport.NewLink(s.cfg.Link, &supervisedHandler{next: s.cfg.Handler, errs: linkErr})
	if err := link.Open(stream); err != nil {
		_ = stream.Close()
		return fmt.Errorf("open link: %w", err)
	}

	s.backoff.Reset()
	s.mu.Lock()
	s.link = link
	s.mu.Unlock()
	s.setState(StateConnected, "")
	if s.cfg.OnConnect != nil {
		s.cfg.OnConnect(link)
	}

	var cause error
	select {
	case <-link.Done():
		select {
		case cause = <-linkErr:
		default:
			cause = transport.ErrStreamClosed
		}
		s.logger.Warn("link lost", "conn_id", link.ID(), "error", cause)
	case <-ctx.Done():
		_ = link.Close(0)
	}

	s.mu.Lock()
	s.link = nil
	s.mu.Unlock()
	return cause
}

func (s *Supervisor) setState(next State, reason string) {
	s.mu.Lock()
	old := s.state
	s.state = next
	s.mu.Unlock()
	if old == next {
		return
	}

	s.capture.Log(plog.Event{
		Timestamp: time.Now(),
		Layer:     plog.LayerTransport,
		Category:  plog.CategoryState,
		Transport: s.cfg.Link.Transport,
		StateChange: &plog.StateChangeEvent{
			Entity:   plog.StateEntitySupervisor,
			OldState: old.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(old, next)
	}
}

// supervisedHandler remembers the error that ended a link.
type supervisedHandler struct {
	next transport.Handler
	errs chan error
}

func (h *supervisedHandler) OnMessage(msg message.Inbound) {
	if h.next != nil {
		h.next.OnMessage(msg)
	}
}

func (h *supervisedHandler) OnError(err error) {
	select {
	case h.errs <- err:
	default:
	}
	if h.next != nil {
		h.next.OnError(err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
