package commands

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fieldlink/fieldlink-go/pkg/connection"
	"github.com/fieldlink/fieldlink-go/pkg/message"
	"github.com/fieldlink/fieldlink-go/pkg/transport"
)

// MonitorOptions configures the monitor command.
type MonitorOptions struct {
	Target string
	Mode   transport.Mode

	// Rate, when positive, is sent as a start command on every connect.
	Rate int
}

// printHandler serializes output from the consumer goroutines.
type printHandler struct {
	mu sync.Mutex
	w  io.Writer
	n  int
}

func (h *printHandler) OnMessage(msg message.Inbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.n++
	printInbound(h.w, msg)
}

func (h *printHandler) OnError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.w, "link error: %v\n", err)
}

func (h *printHandler) printf(format string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.w, format, args...)
}

func (h *printHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.n
}

// RunMonitor prints everything a device sends and reconnects when the
// link drops, until ctx is cancelled.
func RunMonitor(ctx context.Context, env *Env, opts MonitorOptions, w io.Writer) error {
	target, err := ParseTarget(opts.Target, env.Config.Link.TCPPort)
	if err != nil {
		return err
	}
	return Monitor(ctx, env, opts, w, func(ctx context.Context) (transport.Stream, error) {
		return env.Dial(ctx, target)
	}, target)
}

// Monitor runs the supervised monitor loop over dial.
func Monitor(ctx context.Context, env *Env, opts MonitorOptions, w io.Writer, dial connection.DialFunc, target Target) error {
	handler := &printHandler{w: w}
	start := time.Now()

	sup := connection.NewSupervisor(connection.SupervisorConfig{
		Dial:    dial,
		Link:    env.LinkConfig(target, opts.Mode),
		Handler: handler,
		Logger:  env.Logger,
		OnConnect: func(l *transport.Link) {
			handler.printf("connected to %s [%s]\n", target, l.ID())
			if opts.Rate > 0 {
				if err := l.Send(message.StartStreaming(opts.Rate)); err != nil {
					env.Logger.Warn("start streaming", "error", err)
				}
			}
		},
		OnReconnect: func(attempt int, delay time.Duration, lastErr error) {
			handler.printf("disconnected (%v), retry %d in %s\n", lastErr, attempt, fmtDuration(delay))
		},
	})

	err := sup.Run(ctx)
	handler.printf("%d messages in %s\n", handler.count(), fmtDuration(time.Since(start)))
	return err
}
