package discovery

import (
	"fmt"
	"strings"

	"github.com/albenik/go-serial/v2/enumerator"

	"github.com/fieldlink/fieldlink-go/pkg/device"
)

// USBFilter selects USB serial ports by vendor and product id, written as
// four hex digits ("0483"). Empty fields match anything.
type USBFilter struct {
	VID string
	PID string
}

func (f USBFilter) matches(p *enumerator.PortDetails) bool {
	if !p.IsUSB {
		return false
	}
	if f.VID != "" && !strings.EqualFold(f.VID, p.VID) {
		return false
	}
	if f.PID != "" && !strings.EqualFold(f.PID, p.PID) {
		return false
	}
	return true
}

// PortLister lists serial ports.
type PortLister func() ([]*enumerator.PortDetails, error)

// ListUSB returns the USB serial ports matching filter as USB devices
// carrying the adapter's serial number.
func ListUSB(filter USBFilter) ([]*device.Info, error) {
	return listUSB(enumerator.GetDetailedPortsList, filter)
}

func listUSB(list PortLister, filter USBFilter) ([]*device.Info, error) {
	ports, err := list()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	var out []*device.Info
	for _, p := range ports {
		if p == nil || !filter.matches(p) {
			continue
		}
		name := p.Product
		if name == "" {
			name = p.Name
		}
		out = append(out, &device.Info{
			Name:      name,
			SerialNo:  p.SerialNumber,
			Transport: device.TransportUSB,
			Path:      p.Name,
		})
	}
	return out, nil
}
