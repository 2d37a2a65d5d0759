// Package commands implements the fieldlink CLI commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fieldlink/fieldlink-go/pkg/config"
	plog "github.com/fieldlink/fieldlink-go/pkg/log"
	"github.com/fieldlink/fieldlink-go/pkg/transport"
)

// Env carries what every command needs.
type Env struct {
	Config   *config.Config
	Logger   *slog.Logger
	Protocol plog.Logger

	closers []io.Closer
}

// NewEnv loads the configuration, builds the operational logger and opens
// the protocol capture file. Empty level and protocolLog fall back to the
// configuration.
func NewEnv(configPath, level, protocolLog string, logOut io.Writer) (*Env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if level != "" {
		cfg.Logging.Level = level
	}
	if protocolLog != "" {
		cfg.Logging.ProtocolLog = protocolLog
	}

	lvl, err := ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	env := &Env{
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: lvl})),
	}

	if path := cfg.Logging.ProtocolLog; path != "" {
		fl, err := plog.NewFileLogger(path)
		if err != nil {
			return nil, fmt.Errorf("opening protocol log: %w", err)
		}
		env.Protocol = fl
		env.closers = append(env.closers, fl)
	}
	return env, nil
}

// Close flushes and closes the protocol capture.
func (e *Env) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	e.closers = nil
	return errors.Join(errs...)
}

// ParseLevel parses a slog level name.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
	}
}

// Target is where a stream command connects.
type Target struct {
	// Serial is set for serial ports; otherwise Address is a TCP address.
	Serial  bool
	Address string
}

func (t Target) String() string {
	if t.Serial {
		return "serial:" + t.Address
	}
	return "tcp:" + t.Address
}

// ParseTarget parses "tcp:host[:port]", "serial:/dev/ttyACM0", a bare
// port path (starting with "/" or "COM") or a bare host[:port].
func ParseTarget(s string, defaultPort int) (Target, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Target{}, errors.New("empty target")
	case strings.HasPrefix(s, "serial:"):
		return Target{Serial: true, Address: strings.TrimPrefix(s, "serial:")}, nil
	case strings.HasPrefix(s, "/"), strings.HasPrefix(strings.ToUpper(s), "COM"):
		return Target{Serial: true, Address: s}, nil
	}

	addr := strings.TrimPrefix(s, "tcp:")
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(defaultPort))
	}
	return Target{Address: addr}, nil
}

// Dial opens the stream for t using the link settings.
func (e *Env) Dial(ctx context.Context, t Target) (transport.Stream, error) {
	if t.Serial {
		s, err := transport.OpenSerial(t.Address, e.Config.Link.SerialBaud, transport.DefaultReadTimeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return transport.DialTCP(ctx, t.Address)
}

// LinkConfig builds a link configuration for t from the link settings.
func (e *Env) LinkConfig(t Target, mode transport.Mode) transport.LinkConfig {
	name := "TCP"
	if t.Serial {
		name = "SERIAL"
	}
	lc := e.Config.Link
	return transport.LinkConfig{
		Mode:         mode,
		Debounce:     lc.Debounce,
		CloseTimeout: lc.StopTimeout,
		Producer: transport.ProducerConfig{
			PollInterval: lc.PollInterval,
			StopTimeout:  lc.StopTimeout,
		},
		Consumer: transport.ConsumerConfig{
			StopTimeout: lc.StopTimeout,
		},
		Logger:         e.Logger,
		ProtocolLogger: e.Protocol,
		Transport:      name,
		RemoteAddr:     t.Address,
	}
}

// fmtDuration prints a duration rounded for humans.
func fmtDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}
