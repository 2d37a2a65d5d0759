package transport

import (
	"bytes"
	"io"
	"sync"

	"github.com/fieldlink/fieldlink-go/pkg/message"
)

// memStream is an in-memory Stream. Reads return (0, nil) while no data is
// queued, like a serial port whose read timeout expired.
type memStream struct {
	mu     sync.Mutex
	in     bytes.Buffer
	out    bytes.Buffer
	chunk  int
	closed bool
}

func (s *memStream) feed(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.in.Write(b)
}

func (s *memStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	if s.chunk > 0 && len(p) > s.chunk {
		p = p[:s.chunk]
	}
	if s.in.Len() == 0 {
		return 0, nil
	}
	return s.in.Read(p)
}

func (s *memStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	return s.out.Write(p)
}

func (s *memStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memStream) written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.out.Bytes()...)
}

func (s *memStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// collector records handler calls.
type collector struct {
	mu   sync.Mutex
	msgs []message.Inbound
	errs []error
}

func (c *collector) OnMessage(m message.Inbound) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
}

func (c *collector) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *collector) messages() []message.Inbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message.Inbound(nil), c.msgs...)
}

func (c *collector) errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}
