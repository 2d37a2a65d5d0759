package discovery

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/fieldlink/fieldlink-go/pkg/device"
	plog "github.com/fieldlink/fieldlink-go/pkg/log"
	"github.com/fieldlink/fieldlink-go/pkg/wire"
)

// Broadcast defaults.
const (
	DefaultPort     = 30303
	DefaultInterval = time.Second
	DefaultQuery    = "FIELDLINK_DISCOVER"

	maxDatagram    = 2048
	receiveBackoff = 50 * time.Millisecond
)

var (
	ErrAlreadyStarted = errors.New("broadcaster already started")
	ErrNoEndpoints    = errors.New("no usable broadcast endpoints")
)

// DeviceFoundFunc receives each decoded reply. The Info is owned by the
// callee.
type DeviceFoundFunc func(*device.Info)

// PacketConnFactory opens the socket used for one endpoint.
type PacketConnFactory func(ep Endpoint) (net.PacketConn, error)

// ListenUDP4 binds an ephemeral UDP port on the endpoint's local address.
// Go enables SO_BROADCAST on IPv4 datagram sockets.
func ListenUDP4(ep Endpoint) (net.PacketConn, error) {
	return net.ListenPacket("udp4", net.JoinHostPort(ep.Local.String(), "0"))
}

// BroadcasterConfig configures a Broadcaster.
type BroadcasterConfig struct {
	Port     int
	Interval time.Duration
	Query    string

	Interfaces InterfaceProvider
	Listen     PacketConnFactory

	Logger         *slog.Logger
	ProtocolLogger plog.Logger

	OnDeviceFound DeviceFoundFunc
}

// Broadcaster periodically queries every broadcast endpoint and reports
// the devices that answer.
type Broadcaster struct {
	config  BroadcasterConfig
	query   []byte
	logger  *slog.Logger
	capture plog.Logger

	mu      sync.Mutex
	conns   []*endpointConn
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

type endpointConn struct {
	ep   Endpoint
	conn net.PacketConn
}

// NewBroadcaster creates a stopped broadcaster.
func NewBroadcaster(config BroadcasterConfig) *Broadcaster {
	if config.Port <= 0 {
		config.Port = DefaultPort
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Query == "" {
		config.Query = DefaultQuery
	}
	if config.Interfaces == nil {
		config.Interfaces = SystemInterfaces{}
	}
	if config.Listen == nil {
		config.Listen = ListenUDP4
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Broadcaster{
		config:  config,
		query:   []byte(config.Query),
		logger:  config.Logger.With("component", "discovery"),
		capture: plog.OrNoop(config.ProtocolLogger),
	}
}

// Start opens one socket per endpoint and begins broadcasting. Endpoints
// whose socket cannot be opened are logged and skipped. Start fails only
// when no endpoint could be opened.
func (b *Broadcaster) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}

	eps, err := BroadcastEndpoints(b.config.Interfaces, b.config.Port)
	if err != nil {
		b.logger.Warn("interface enumeration failed", "error", err)
	}

	var conns []*endpointConn
	for _, ep := range eps {
		conn, err := b.config.Listen(ep)
		if err != nil {
			b.logger.Warn("endpoint skipped", "interface", ep.Interface, "address", ep.Local, "error", err)
			continue
		}
		conns = append(conns, &endpointConn{ep: ep, conn: conn})
	}
	if len(conns) == 0 {
		return ErrNoEndpoints
	}

	ctx, cancel := context.WithCancel(ctx)
	b.conns = conns
	b.cancel = cancel
	b.started = true

	for _, ec := range conns {
		b.wg.Add(1)
		go b.receive(ec)
	}
	b.wg.Add(1)
	go b.broadcastLoop(ctx)

	// Sockets are closed on cancellation to unblock the receivers.
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		<-ctx.Done()
		for _, ec := range conns {
			_ = ec.conn.Close()
		}
	}()

	b.logger.Info("discovery started", "endpoints", len(conns), "port", b.config.Port)
	return nil
}

// Stop stops broadcasting, closes all sockets and waits for the
// goroutines to exit.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	b.wg.Wait()

	b.mu.Lock()
	b.conns = nil
	b.started = false
	b.mu.Unlock()
}

// Endpoints returns the endpoints that are being broadcast to.
func (b *Broadcaster) Endpoints() []Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Endpoint, len(b.conns))
	for i, ec := range b.conns {
		out[i] = ec.ep
	}
	return out
}

func (b *Broadcaster) broadcastLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.Interval)
	defer ticker.Stop()

	for {
		b.sendAll()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (b *Broadcaster) sendAll() {
	b.mu.Lock()
	conns := b.conns
	b.mu.Unlock()

	for _, ec := range conns {
		if _, err := ec.conn.WriteTo(b.query, ec.ep.Broadcast); err != nil {
			b.logger.Debug("broadcast failed", "interface", ec.ep.Interface, "error", err)
		}
	}
}

func (b *Broadcaster) receive(ec *endpointConn) {
	defer b.wg.Done()

	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := ec.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			b.logger.Debug("receive failed", "interface", ec.ep.Interface, "error", err)
			time.Sleep(receiveBackoff)
			continue
		}
		if n == 0 {
			continue
		}
		b.handleDatagram(buf[:n], addr)
	}
}

// handleDatagram decodes one reply. Echoes of our own query are dropped.
func (b *Broadcaster) handleDatagram(data []byte, from net.Addr) {
	if bytes.Equal(bytes.TrimSpace(data), b.query) {
		return
	}

	reply, err := wire.UnmarshalDiscoveryReply(data)
	if err != nil {
		b.logger.Debug("invalid discovery reply", "from", from, "error", err)
		return
	}
	if *reply == (wire.DiscoveryReply{}) {
		b.logger.Debug("empty discovery reply", "from", from)
		return
	}

	info := device.FromDiscoveryReply(reply, hostOf(from))
	b.capture.Log(plog.Event{
		Timestamp:  time.Now(),
		Direction:  plog.DirectionIn,
		Layer:      plog.LayerDiscovery,
		Category:   plog.CategoryMessage,
		Transport:  "UDP",
		RemoteAddr: addrString(from),
		SerialNo:   info.SerialNo,
		Discovery: &plog.DiscoveryEvent{
			Source:          "UDP",
			Name:            info.Name,
			Address:         info.Address(),
			FirmwareVersion: info.FirmwareVersion,
		},
	})
	b.logger.Debug("device found", "name", info.Name, "serial", info.SerialNo, "address", info.Address())

	if b.config.OnDeviceFound != nil {
		b.config.OnDeviceFound(info)
	}
}

func hostOf(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.String()
	case nil:
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return ""
	}
	return host
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
