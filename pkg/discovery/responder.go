package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/fieldlink/fieldlink-go/pkg/wire"
)

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	Port  int
	Query string

	// Reply builds the reply for each query.
	Reply func() *wire.DiscoveryReply

	Logger *slog.Logger
}

// Responder answers discovery queries the way a device does: each
// datagram equal to the query gets one delimited DiscoveryReply sent back
// to its source.
type Responder struct {
	config ResponderConfig
	query  []byte
	logger *slog.Logger
}

// NewResponder creates a responder.
func NewResponder(config ResponderConfig) *Responder {
	if config.Port <= 0 {
		config.Port = DefaultPort
	}
	if config.Query == "" {
		config.Query = DefaultQuery
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Responder{
		config: config,
		query:  []byte(config.Query),
		logger: config.Logger.With("component", "responder"),
	}
}

// ListenAndServe listens on the configured UDP port of all IPv4 addresses
// and serves until ctx is cancelled.
func (r *Responder) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", ":"+strconv.Itoa(r.config.Port))
	if err != nil {
		return fmt.Errorf("listen discovery: %w", err)
	}
	return r.Serve(ctx, conn)
}

// Serve answers queries on conn until ctx is cancelled. conn is closed on
// return.
func (r *Responder) Serve(ctx context.Context, conn net.PacketConn) error {
	if r.config.Reply == nil {
		_ = conn.Close()
		return errors.New("responder has no reply")
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.logger.Debug("receive failed", "error", err)
			time.Sleep(receiveBackoff)
			continue
		}
		if !bytes.Equal(bytes.TrimSpace(buf[:n]), r.query) {
			continue
		}

		reply := r.config.Reply()
		if reply == nil {
			continue
		}
		if _, err := conn.WriteTo(wire.MarshalDelimited(reply), addr); err != nil {
			r.logger.Debug("reply failed", "to", addr, "error", err)
			continue
		}
		r.logger.Debug("answered discovery", "to", addr)
	}
}
