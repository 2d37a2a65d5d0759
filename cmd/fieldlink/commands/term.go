package commands

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/fieldlink/fieldlink-go/pkg/message"
	"github.com/fieldlink/fieldlink-go/pkg/transport"
)

// ErrQuit is returned by ParseConsoleLine for the quit command.
var ErrQuit = errors.New("quit")

const consoleHelp = `Lines are sent as SCPI commands. Console commands:
  :idn              query identity (*IDN?)
  :start <rate>     start streaming at rate Hz
  :stop             stop streaming
  :range <n>        configure ADC range
  :reboot           reboot the device
  :hex <bytes>      send raw bytes, e.g. :hex 01 02 ff
  :help             show this help
  :quit             leave the console
`

// ParseConsoleLine turns one console line into an outbound message. It
// returns nil for blank lines and ErrQuit for :quit.
func ParseConsoleLine(line string) (message.Outbound, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if !strings.HasPrefix(line, ":") {
		return message.NewCommand(line), nil
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty console command")
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	intArg := func() (int, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf(":%s needs one numeric argument", cmd)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, fmt.Errorf(":%s: %w", cmd, err)
		}
		return n, nil
	}

	switch cmd {
	case "q", "quit", "exit":
		return nil, ErrQuit
	case "idn":
		return message.QueryIdentity(), nil
	case "start":
		n, err := intArg()
		if err != nil {
			return nil, err
		}
		return message.StartStreaming(n), nil
	case "stop":
		return message.StopStreaming(), nil
	case "range":
		n, err := intArg()
		if err != nil {
			return nil, err
		}
		return message.ConfigureADCRange(n), nil
	case "reboot":
		return message.Reboot(), nil
	case "hex":
		data, err := hex.DecodeString(strings.Join(args, ""))
		if err != nil {
			return nil, fmt.Errorf(":hex: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf(":hex needs at least one byte")
		}
		return message.NewRaw(data), nil
	default:
		return nil, fmt.Errorf("unknown console command :%s (try :help)", cmd)
	}
}

// TermOptions configures the term command.
type TermOptions struct {
	Target string
	Mode   transport.Mode
}

// consoleHandler prints what the device sends and remembers why the link
// ended.
type consoleHandler struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

func (h *consoleHandler) OnMessage(msg message.Inbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	printInbound(h.w, msg)
}

func (h *consoleHandler) OnError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
	fmt.Fprintf(h.w, "link error: %v\n", err)
}

// RunTerm opens an interactive console on a device.
func RunTerm(ctx context.Context, env *Env, opts TermOptions) error {
	target, err := ParseTarget(opts.Target, env.Config.Link.TCPPort)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "fieldlink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	out := rl.Stdout()

	stream, err := env.Dial(ctx, target)
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	handler := &consoleHandler{w: out}
	link := transport.NewLink(env.LinkConfig(target, opts.Mode), handler)
	if err := link.Open(stream); err != nil {
		_ = stream.Close()
		return err
	}
	defer link.Close(0)

	// Unblock Readline when the device goes away.
	go func() {
		select {
		case <-link.Done():
			_ = rl.Close()
		case <-ctx.Done():
			_ = rl.Close()
		}
	}()

	fmt.Fprintf(out, "Connected to %s (%s mode). Type :help for commands.\n", target, opts.Mode)
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			break
		}
		if strings.EqualFold(strings.TrimSpace(line), ":help") {
			fmt.Fprint(out, consoleHelp)
			continue
		}

		msg, err := ParseConsoleLine(line)
		if errors.Is(err, ErrQuit) {
			break
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if msg == nil {
			continue
		}
		if err := link.Send(msg); err != nil {
			fmt.Fprintf(out, "send failed: %v\n", err)
			break
		}
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	return handler.err
}
