package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/fieldlink/fieldlink-go/pkg/device"
	"github.com/fieldlink/fieldlink-go/pkg/discovery"
)

// DiscoverOptions selects the discovery sources.
type DiscoverOptions struct {
	Timeout time.Duration
	UDP     bool
	MDNS    bool
	USB     bool
}

// Collector keeps one entry per device and transport and records devices
// that show up on more than one transport.
type Collector struct {
	mu         sync.Mutex
	seen       map[string]bool
	registry   *device.Registry
	duplicates []device.DuplicateCheckResult
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		seen:     make(map[string]bool),
		registry: device.NewRegistry(),
	}
}

func collectorKey(d *device.Info) string {
	if sn := strings.TrimSpace(d.SerialNo); sn != "" {
		return string(d.Transport) + "|sn|" + strings.ToLower(sn)
	}
	return string(d.Transport) + "|addr|" + d.Address()
}

// Add records d and reports whether it was new.
func (c *Collector) Add(d *device.Info) bool {
	if d == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := collectorKey(d)
	if c.seen[key] {
		return false
	}
	c.seen[key] = true

	if res := c.registry.CheckDuplicate(d); res.IsDuplicate {
		c.duplicates = append(c.duplicates, res)
	}
	_ = c.registry.Add(d)
	return true
}

// Devices returns the devices in the order they were found.
func (c *Collector) Devices() []*device.Info {
	return c.registry.List()
}

// Duplicates returns the cross-transport matches.
func (c *Collector) Duplicates() []device.DuplicateCheckResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]device.DuplicateCheckResult(nil), c.duplicates...)
}

// RunDiscover searches for devices until the timeout expires and prints
// what it found.
func RunDiscover(ctx context.Context, env *Env, opts DiscoverOptions, w io.Writer) error {
	c := NewCollector()
	onFound := func(d *device.Info) {
		if c.Add(d) {
			env.Logger.Info("device found", "name", d.Name, "serial", d.SerialNo, "transport", d.Transport, "address", d.Address())
		}
	}

	if opts.USB {
		cfg := env.Config.Discovery
		devs, err := discovery.ListUSB(discovery.USBFilter{VID: cfg.USBVID, PID: cfg.USBPID})
		if err != nil {
			env.Logger.Warn("usb enumeration failed", "error", err)
		}
		for _, d := range devs {
			onFound(d)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if opts.UDP {
		cfg := env.Config.Discovery
		b := discovery.NewBroadcaster(discovery.BroadcasterConfig{
			Port:           cfg.Port,
			Interval:       cfg.Interval,
			Query:          cfg.Query,
			Logger:         env.Logger,
			ProtocolLogger: env.Protocol,
			OnDeviceFound:  onFound,
		})
		if err := b.Start(ctx); err != nil {
			env.Logger.Warn("udp discovery unavailable", "error", err)
		} else {
			defer b.Stop()
		}
	}

	if opts.MDNS {
		m := discovery.NewMDNSBrowser(discovery.MDNSConfig{
			Logger:         env.Logger,
			ProtocolLogger: env.Protocol,
			OnDeviceFound:  onFound,
		})
		if err := m.Browse(ctx); err != nil {
			env.Logger.Warn("mdns discovery unavailable", "error", err)
		} else {
			defer m.Stop()
		}
	}

	if opts.UDP || opts.MDNS {
		<-ctx.Done()
	}

	PrintDevices(w, c)
	return nil
}

// PrintDevices writes the collected devices and duplicates as a table.
func PrintDevices(w io.Writer, c *Collector) {
	devs := c.Devices()
	if len(devs) == 0 {
		fmt.Fprintln(w, "No devices found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANSPORT\tNAME\tSERIAL\tADDRESS\tFIRMWARE\tPOWER")
	for _, d := range devs {
		power := "-"
		if d.Transport == device.TransportWiFi {
			power = "off"
			if d.IsPowerOn {
				power = "on"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Transport, dash(d.Name), dash(d.SerialNo), d.Address(), dash(d.FirmwareVersion), power)
	}
	_ = tw.Flush()

	for _, dup := range c.Duplicates() {
		fmt.Fprintf(w, "\nDevice %s is reachable over %s (%s) and %s (%s).\n",
			dup.New.SerialNo, dup.ExistingLabel, dup.Existing.Address(), dup.NewLabel, dup.New.Address())
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
