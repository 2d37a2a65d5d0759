package transport

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldlink/fieldlink-go/pkg/message"
)

func TestProducerFIFO(t *testing.T) {
	s := &memStream{}
	p := NewProducer(s, ProducerConfig{PollInterval: 5 * time.Millisecond})
	require.NoError(t, p.Start())

	for _, text := range []string{"A", "B", "C"} {
		require.NoError(t, p.Send(message.NewCommand(text)))
	}

	require.NoError(t, p.StopSafely(time.Second))
	assert.Equal(t, "A\r\nB\r\nC\r\n", string(s.written()))
}

func TestProducerStopSafelyFlushesAll(t *testing.T) {
	s := &memStream{}
	p := NewProducer(s, ProducerConfig{})
	require.NoError(t, p.Start())

	var want bytes.Buffer
	for i := 0; i < 5; i++ {
		msg := message.NewRaw([]byte{byte(i), 0xAA})
		want.Write(msg.Bytes())
		require.NoError(t, p.Send(msg))
	}

	require.NoError(t, p.StopSafely(2*time.Second))
	assert.Equal(t, want.Bytes(), s.written())
	assert.Zero(t, p.Pending())
}

// blockingWriter blocks every write until released.
type blockingWriter struct {
	release chan struct{}
	mu      sync.Mutex
	n       int
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	<-w.release
	w.mu.Lock()
	w.n++
	w.mu.Unlock()
	return len(p), nil
}

func TestProducerStopSafelyTimeout(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{})}
	p := NewProducer(w, ProducerConfig{StopTimeout: 50 * time.Millisecond})
	require.NoError(t, p.Start())
	require.NoError(t, p.Send(message.NewRaw([]byte{1})))
	require.NoError(t, p.Send(message.NewRaw([]byte{2})))

	start := time.Now()
	err := p.StopSafely(30 * time.Millisecond)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	close(w.release)
}

func TestProducerStopDiscardsQueue(t *testing.T) {
	s := &memStream{}
	p := NewProducer(s, ProducerConfig{})
	require.NoError(t, p.Send(message.NewCommand("never")))
	assert.Equal(t, 1, p.Pending())

	require.NoError(t, p.Stop())
	assert.Zero(t, p.Pending())
	assert.Empty(t, s.written())

	assert.ErrorIs(t, p.Send(message.NewCommand("late")), ErrProducerStopped)
	assert.ErrorIs(t, p.Start(), ErrProducerStopped)
	assert.NoError(t, p.Stop())
}

func TestProducerDoubleStart(t *testing.T) {
	p := NewProducer(&memStream{}, ProducerConfig{})
	require.NoError(t, p.Start())
	assert.ErrorIs(t, p.Start(), ErrAlreadyStarted)
	require.NoError(t, p.Stop())
}

// flakyWriter fails its first write.
type flakyWriter struct {
	mu    sync.Mutex
	calls int
	buf   bytes.Buffer
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.calls == 1 {
		return 0, errors.New("broken pipe")
	}
	return w.buf.Write(p)
}

func TestProducerWriteErrorDropsMessage(t *testing.T) {
	w := &flakyWriter{}
	p := NewProducer(w, ProducerConfig{})
	require.NoError(t, p.Start())
	require.NoError(t, p.Send(message.NewCommand("lost")))
	require.NoError(t, p.Send(message.NewCommand("kept")))

	require.NoError(t, p.StopSafely(time.Second))
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Equal(t, "kept\r\n", w.buf.String())
}
