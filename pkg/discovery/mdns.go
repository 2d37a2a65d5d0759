package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/fieldlink/fieldlink-go/pkg/device"
	plog "github.com/fieldlink/fieldlink-go/pkg/log"
)

// mDNS service constants.
const (
	ServiceType = "_fieldlink._tcp"
	Domain      = "local"
)

// ErrBrowsing is returned when Browse is called on a browser that is
// already browsing.
var ErrBrowsing = errors.New("mdns browser already browsing")

// MDNSConfig configures an MDNSBrowser.
type MDNSConfig struct {
	// Interface restricts browsing to one interface. Empty means all.
	Interface string

	Logger         *slog.Logger
	ProtocolLogger plog.Logger

	OnDeviceFound DeviceFoundFunc
}

// MDNSBrowser browses the _fieldlink._tcp service and reports each
// instance once per address set.
type MDNSBrowser struct {
	config  MDNSConfig
	logger  *slog.Logger
	capture plog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMDNSBrowser creates an idle browser.
func NewMDNSBrowser(config MDNSConfig) *MDNSBrowser {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &MDNSBrowser{
		config:  config,
		logger:  config.Logger.With("component", "mdns"),
		capture: plog.OrNoop(config.ProtocolLogger),
	}
}

// Browse starts browsing in the background until ctx is cancelled or
// Stop is called.
func (b *MDNSBrowser) Browse(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return ErrBrowsing
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go b.collect(ctx, entries, removed)
	go func() {
		defer close(b.done)
		if err := zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.browserOptions()...); err != nil {
			b.logger.Warn("mdns browse failed", "error", err)
		}
	}()
	return nil
}

// Stop ends browsing and waits for the browse goroutine.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel = nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		b.logger.Debug("mdns browse did not stop in time")
	}
}

// collect reports each instance when first seen and again when it shows
// up on a new address.
func (b *MDNSBrowser) collect(ctx context.Context, entries, removed <-chan *zeroconf.ServiceEntry) {
	seen := make(map[string]map[string]bool)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			info := EntryToInfo(entry)
			if info == nil {
				continue
			}
			addrs := seen[entry.Instance]
			if addrs == nil {
				addrs = make(map[string]bool)
				seen[entry.Instance] = addrs
			}
			if addrs[info.IPAddress] {
				continue
			}
			addrs[info.IPAddress] = true
			b.report(info)

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			delete(seen, entry.Instance)

		case <-ctx.Done():
			return
		}
	}
}

func (b *MDNSBrowser) report(info *device.Info) {
	b.capture.Log(plog.Event{
		Timestamp: time.Now(),
		Direction: plog.DirectionIn,
		Layer:     plog.LayerDiscovery,
		Category:  plog.CategoryMessage,
		Transport: "MDNS",
		SerialNo:  info.SerialNo,
		Discovery: &plog.DiscoveryEvent{
			Source:          "MDNS",
			Name:            info.Name,
			Address:         info.Address(),
			FirmwareVersion: info.FirmwareVersion,
		},
	})
	if b.config.OnDeviceFound != nil {
		b.config.OnDeviceFound(info)
	}
}

func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		} else {
			b.logger.Warn("mdns interface not found, browsing all", "interface", b.config.Interface)
		}
	}
	return opts
}

// EntryToInfo converts a service entry to a WiFi device. The first IPv4
// address is preferred. Entries without any address return nil.
func EntryToInfo(entry *zeroconf.ServiceEntry) *device.Info {
	var ip string
	switch {
	case len(entry.AddrIPv4) > 0:
		ip = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		ip = entry.AddrIPv6[0].String()
	default:
		return nil
	}

	info := &device.Info{
		Name:      entry.Instance,
		IPAddress: ip,
		Transport: device.TransportWiFi,
	}
	if entry.Port > 0 && entry.Port <= 0xFFFF {
		info.Port = uint16(entry.Port)
	}
	DecodeDeviceTXT(StringsToTXTRecords(entry.Text), info)
	return info
}

// Advertiser registers a device as a _fieldlink._tcp service.
type Advertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// Advertise registers info under instance on port. A previous
// registration is replaced.
func (a *Advertiser) Advertise(instance string, port int, info *device.Info) error {
	if instance == "" {
		return errors.New("empty instance name")
	}
	txt := TXTRecordsToStrings(EncodeDeviceTXT(info))

	server, err := zeroconf.Register(instance, ServiceType, Domain, port, txt, nil)
	if err != nil {
		return fmt.Errorf("register mdns service: %w", err)
	}

	a.mu.Lock()
	old := a.server
	a.server = server
	a.mu.Unlock()
	if old != nil {
		old.Shutdown()
	}
	return nil
}

// Stop withdraws the registration.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	server := a.server
	a.server = nil
	a.mu.Unlock()
	if server != nil {
		server.Shutdown()
	}
}
