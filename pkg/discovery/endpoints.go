package discovery

import (
	"fmt"
	"net"
)

// Interface is a network interface with its addresses.
type Interface struct {
	Name  string
	Flags net.Flags
	Addrs []net.Addr
}

// InterfaceProvider lists network interfaces.
type InterfaceProvider interface {
	Interfaces() ([]Interface, error)
}

// SystemInterfaces lists the host's interfaces.
type SystemInterfaces struct{}

// Interfaces implements InterfaceProvider. Interfaces whose addresses
// cannot be read are returned without addresses.
func (SystemInterfaces) Interfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	out := make([]Interface, 0, len(ifaces))
	for _, ifi := range ifaces {
		addrs, _ := ifi.Addrs()
		out = append(out, Interface{Name: ifi.Name, Flags: ifi.Flags, Addrs: addrs})
	}
	return out, nil
}

// Endpoint is one interface's broadcast target.
type Endpoint struct {
	Interface string
	Local     net.IP
	Broadcast *net.UDPAddr
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s %s->%s", e.Interface, e.Local, e.Broadcast)
}

// BroadcastEndpoints returns one endpoint per IPv4 address on every
// interface that is up and is neither loopback nor point-to-point. The
// broadcast address is ip | ^mask.
func BroadcastEndpoints(provider InterfaceProvider, port int) ([]Endpoint, error) {
	if provider == nil {
		provider = SystemInterfaces{}
	}
	ifaces, err := provider.Interfaces()
	if err != nil {
		return nil, err
	}

	var eps []Endpoint
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 ||
			ifi.Flags&net.FlagLoopback != 0 ||
			ifi.Flags&net.FlagPointToPoint != 0 {
			continue
		}
		for _, a := range ifi.Addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			mask := ipnet.Mask
			if len(mask) == net.IPv6len {
				mask = mask[12:]
			}
			if ip4 == nil || len(mask) != net.IPv4len {
				continue
			}
			eps = append(eps, Endpoint{
				Interface: ifi.Name,
				Local:     ip4,
				Broadcast: &net.UDPAddr{IP: broadcastAddr(ip4, mask), Port: port},
			})
		}
	}
	return eps, nil
}

func broadcastAddr(ip net.IP, mask net.IPMask) net.IP {
	out := make(net.IP, net.IPv4len)
	for i := range out {
		out[i] = ip[i] | ^mask[i]
	}
	return out
}
