package connection

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldlink/fieldlink-go/pkg/message"
	"github.com/fieldlink/fieldlink-go/pkg/transport"
)

func TestBackoffSequence(t *testing.T) {
	b := NewBackoff(BackoffConfig{Initial: time.Second, Max: 10 * time.Second})

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for i, exp := range want {
		if got := b.Next(); got != exp {
			t.Errorf("attempt %d: got %v, want %v", i, got, exp)
		}
	}
	if b.Attempts() != len(want) {
		t.Errorf("Attempts() = %d, want %d", b.Attempts(), len(want))
	}

	b.Reset()
	if b.Current() != time.Second || b.Attempts() != 0 {
		t.Errorf("after Reset: current %v attempts %d", b.Current(), b.Attempts())
	}
}

func TestBackoffJitter(t *testing.T) {
	b := NewBackoff(DefaultBackoffConfig())
	upper := time.Duration(float64(InitialBackoff) * (1 + JitterFactor))

	seen := map[time.Duration]bool{}
	for i := 0; i < 20; i++ {
		b.Reset()
		d := b.Next()
		if d < InitialBackoff || d > upper {
			t.Fatalf("delay %v outside [%v, %v]", d, InitialBackoff, upper)
		}
		seen[d] = true
	}
	if len(seen) < 2 {
		t.Error("jitter produced identical delays")
	}
}

func TestBackoffDefaults(t *testing.T) {
	b := NewBackoff(BackoffConfig{Multiplier: 0.5, Jitter: -1})
	assert.Equal(t, InitialBackoff, b.Next())
	assert.Equal(t, 2*InitialBackoff, b.Current())
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateDialing, "DIALING"},
		{StateConnected, "CONNECTED"},
		{StateBackoff, "BACKOFF"},
		{StateStopped, "STOPPED"},
		{State(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d: got %q, want %q", tt.state, got, tt.want)
		}
	}
}

// pipeDialer hands out net.Pipe host ends and keeps the device ends.
type pipeDialer struct {
	mu      sync.Mutex
	devices []net.Conn
	fail    int
	calls   atomic.Int32
}

func (d *pipeDialer) dial(ctx context.Context) (transport.Stream, error) {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail > 0 {
		d.fail--
		return nil, errors.New("connection refused")
	}
	host, device := net.Pipe()
	d.devices = append(d.devices, device)
	return host, nil
}

func (d *pipeDialer) device(i int) net.Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.devices) {
		return nil
	}
	return d.devices[i]
}

func fastBackoff() BackoffConfig {
	return BackoffConfig{Initial: 5 * time.Millisecond, Max: 20 * time.Millisecond}
}

func TestSupervisorRedialsAfterLinkFailure(t *testing.T) {
	d := &pipeDialer{fail: 2}
	var connects atomic.Int32
	var reconnectErrs []error
	var mu sync.Mutex

	s := NewSupervisor(SupervisorConfig{
		Dial:    d.dial,
		Backoff: fastBackoff(),
		Link:    transport.LinkConfig{Mode: transport.ModeText},
		OnConnect: func(*transport.Link) {
			connects.Add(1)
		},
		OnReconnect: func(_ int, _ time.Duration, err error) {
			mu.Lock()
			reconnectErrs = append(reconnectErrs, err)
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.State() == StateConnected }, 2*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 3, d.calls.Load())
	assert.Zero(t, s.Attempts(), "backoff resets on connect")

	// Drop the first link; the supervisor dials again.
	require.NoError(t, d.device(0).Close())
	require.Eventually(t, func() bool { return connects.Load() == 2 && s.State() == StateConnected }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StateStopped, s.State())
	assert.Nil(t, s.Link())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reconnectErrs, 3)
	assert.ErrorContains(t, reconnectErrs[0], "connection refused")
	assert.ErrorIs(t, reconnectErrs[2], transport.ErrStreamClosed)
}

func TestSupervisorSend(t *testing.T) {
	d := &pipeDialer{}
	s := NewSupervisor(SupervisorConfig{Dial: d.dial, Backoff: fastBackoff()})
	assert.ErrorIs(t, s.Send(message.QueryIdentity()), ErrNotConnected)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()
	require.Eventually(t, func() bool { return s.State() == StateConnected }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Send(message.StartStreaming(1000)))
	line, err := bufio.NewReader(d.device(0)).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "STReam:STARt 1000\r\n", line)

	assert.ErrorIs(t, s.Run(ctx), ErrAlreadyRunning)
}

func TestSupervisorNoDialer(t *testing.T) {
	s := NewSupervisor(SupervisorConfig{})
	assert.ErrorIs(t, s.Run(context.Background()), ErrNoDialer)
}

func TestSupervisorStopsDuringBackoff(t *testing.T) {
	d := &pipeDialer{fail: 1000}
	s := NewSupervisor(SupervisorConfig{
		Dial:    d.dial,
		Backoff: BackoffConfig{Initial: time.Hour},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return s.State() == StateBackoff }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run blocked in backoff after cancel")
	}
	assert.EqualValues(t, 1, d.calls.Load())
}
