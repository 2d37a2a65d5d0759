package hid

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
)

// Options configures OpenUSB.
type Options struct {
	// ReportSize overrides the endpoint max packet size when set.
	ReportSize int

	// ReadTimeout bounds ReadReport. Default 2s.
	ReadTimeout time.Duration

	// FastReadTimeout bounds FastReadReport. Default 500ms.
	FastReadTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 2 * time.Second
	}
	if o.FastReadTimeout <= 0 {
		o.FastReadTimeout = 500 * time.Millisecond
	}
	return o
}

// USBDevice is a ReportDevice on the default interface of a USB device.
type USBDevice struct {
	opts Options

	ctx  *gousb.Context
	dev  *gousb.Device
	done func()
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint
	size int

	mu     sync.Mutex
	closed bool
}

// OpenUSB opens the first device with the given vendor and product id and
// claims its default interface.
func OpenUSB(vid, pid uint16, opts Options) (*USBDevice, error) {
	opts = opts.withDefaults()

	usbCtx := gousb.NewContext()
	dev, err := usbCtx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		usbCtx.Close()
		return nil, fmt.Errorf("open usb %04x:%04x: %w", vid, pid, err)
	}
	if dev == nil {
		usbCtx.Close()
		return nil, fmt.Errorf("%w: %04x:%04x", ErrDeviceNotFound, vid, pid)
	}

	// The kernel hid driver usually owns the interface.
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("detach kernel driver: %w", err)
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		usbCtx.Close()
		return nil, fmt.Errorf("claim interface: %w", err)
	}

	d := &USBDevice{opts: opts, ctx: usbCtx, dev: dev, done: done}
	if err := d.bindEndpoints(intf); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *USBDevice) bindEndpoints(intf *gousb.Interface) error {
	var inNum, outNum, packet int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeInterrupt {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn && d.in == nil {
			inNum, packet = ep.Number, ep.MaxPacketSize
			in, err := intf.InEndpoint(inNum)
			if err != nil {
				return fmt.Errorf("in endpoint %d: %w", inNum, err)
			}
			d.in = in
		}
		if ep.Direction == gousb.EndpointDirectionOut && d.out == nil {
			outNum = ep.Number
			out, err := intf.OutEndpoint(outNum)
			if err != nil {
				return fmt.Errorf("out endpoint %d: %w", outNum, err)
			}
			d.out = out
		}
	}
	if d.in == nil || d.out == nil {
		return ErrNoEndpoint
	}

	d.size = d.opts.ReportSize
	if d.size <= 0 {
		d.size = packet
	}
	if d.size <= 0 {
		d.size = DefaultReportSize
	}
	return nil
}

// ReportSize returns the report length.
func (d *USBDevice) ReportSize() int { return d.size }

// WriteReport writes one report to the interrupt OUT endpoint.
func (d *USBDevice) WriteReport(ctx context.Context, report []byte) error {
	if d.isClosed() {
		return ErrClosed
	}
	if len(report) != d.size {
		return fmt.Errorf("%w: got %d, want %d", ErrReportSize, len(report), d.size)
	}
	if _, err := d.out.WriteContext(ctx, report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// ReadReport reads one report within the read timeout.
func (d *USBDevice) ReadReport(ctx context.Context) ([]byte, error) {
	return d.read(ctx, d.opts.ReadTimeout)
}

// FastReadReport reads one report within the fast read timeout.
func (d *USBDevice) FastReadReport(ctx context.Context) ([]byte, error) {
	return d.read(ctx, d.opts.FastReadTimeout)
}

func (d *USBDevice) read(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	buf := make([]byte, d.size)
	n, err := d.in.ReadContext(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return buf[:n], nil
}

func (d *USBDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close releases the interface, the device and the libusb context.
func (d *USBDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if d.done != nil {
		d.done()
	}
	var err error
	if d.dev != nil {
		err = d.dev.Close()
	}
	if d.ctx != nil {
		if cerr := d.ctx.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ ReportDevice = (*USBDevice)(nil)
