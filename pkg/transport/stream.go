package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/albenik/go-serial/v2"
)

// Stream is a bidirectional byte stream owned by one Link.
type Stream interface {
	io.ReadWriteCloser
}

// readDeadliner is implemented by streams that support bounded reads.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// DefaultTCPPort is the device command port.
const DefaultTCPPort = 9760

// DialTCP connects to a device at address ("host" or "host:port").
func DialTCP(ctx context.Context, address string) (net.Conn, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, fmt.Sprint(DefaultTCPPort))
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return conn, nil
}

// SerialStream is a serial port opened 8N1.
//
// Reads return (0, nil) when the read timeout expires without data.
type SerialStream struct {
	*serial.Port
	name string
}

// OpenSerial opens a serial port.
func OpenSerial(name string, baud int, readTimeout time.Duration) (*SerialStream, error) {
	port, err := serial.Open(name,
		serial.WithBaudrate(baud),
		serial.WithDataBits(8),
		serial.WithParity(serial.NoParity),
		serial.WithStopBits(serial.OneStopBit),
		serial.WithReadTimeout(int(readTimeout/time.Millisecond)),
		serial.WithHUPCL(true),
	)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	return &SerialStream{Port: port, name: name}, nil
}

// Name returns the port name.
func (s *SerialStream) Name() string { return s.name }

var _ Stream = (*SerialStream)(nil)
