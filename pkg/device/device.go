// Package device describes discovered and connected devices and detects
// when the same device is reachable over more than one transport.
package device

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fieldlink/fieldlink-go/pkg/wire"
)

// Transport is how a device is reached.
type Transport string

const (
	TransportUSB  Transport = "USB"
	TransportWiFi Transport = "WiFi"
)

// Info describes a device.
type Info struct {
	Name            string
	IPAddress       string
	MACAddress      string
	Port            uint16
	SerialNo        string
	FirmwareVersion string
	IsPowerOn       bool

	Transport Transport

	// Path is the serial port name for USB devices.
	Path string
}

// FromDiscoveryReply builds a WiFi device from a discovery reply. A
// non-empty sourceIP replaces the address embedded in the reply.
func FromDiscoveryReply(r *wire.DiscoveryReply, sourceIP string) *Info {
	info := &Info{
		Name:            r.Name,
		IPAddress:       r.IPAddress,
		MACAddress:      r.MACAddress,
		SerialNo:        r.SerialNo,
		FirmwareVersion: r.FirmwareVersion,
		IsPowerOn:       r.IsPowerOn,
		Transport:       TransportWiFi,
	}
	if r.Port <= 0xFFFF {
		info.Port = uint16(r.Port)
	}
	if sourceIP != "" {
		info.IPAddress = sourceIP
	}
	return info
}

// Address returns the host:port (WiFi) or port path (USB) to connect to.
func (i *Info) Address() string {
	if i.Transport == TransportUSB {
		return i.Path
	}
	if i.Port == 0 {
		return i.IPAddress
	}
	return net.JoinHostPort(i.IPAddress, strconv.Itoa(int(i.Port)))
}

func (i *Info) String() string {
	name := i.Name
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("%s [%s] sn=%s %s", name, i.Transport, i.SerialNo, i.Address())
}
