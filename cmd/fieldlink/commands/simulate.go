package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fieldlink/fieldlink-go/pkg/device"
	"github.com/fieldlink/fieldlink-go/pkg/discovery"
	"github.com/fieldlink/fieldlink-go/pkg/message"
	"github.com/fieldlink/fieldlink-go/pkg/wire"
)

// SimulateOptions configures the simulate command.
type SimulateOptions struct {
	Listen   string
	Name     string
	SerialNo string
	Firmware string

	// ReportInterval is the time between status reports while streaming.
	ReportInterval time.Duration

	Discovery bool
	MDNS      bool
}

// Simulator behaves like a device on the structured protocol: it answers
// SCPI commands and streams DeviceStatus reports once started.
type Simulator struct {
	Name     string
	SerialNo string
	Firmware string
	Interval time.Duration
	Logger   *slog.Logger

	mu       sync.Mutex
	adcRange int
}

// simSession is one connection's state.
type simSession struct {
	sim  *Simulator
	conn io.ReadWriteCloser

	wmu  sync.Mutex
	mu   sync.Mutex
	rate int
	t0   time.Time
}

// Serve handles one connection until the peer closes it, a reboot is
// requested or ctx is cancelled.
func (s *Simulator) Serve(ctx context.Context, conn io.ReadWriteCloser) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sess := &simSession{sim: s, conn: conn, t0: time.Now()}
	go sess.stream(ctx)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sess.handle(line) {
			break
		}
	}
	cancel()
	_ = conn.Close()
}

// handle runs one command and reports whether the session continues.
func (ss *simSession) handle(line string) bool {
	s := ss.sim
	cmd, arg, _ := strings.Cut(line, " ")
	s.logger().Debug("simulator command", "command", line)

	switch strings.ToUpper(cmd) {
	case "*IDN?":
		ss.send(ss.status(nil))
	case "STREAM:START", "STR:STAR", "STR:START", "STREAM:STAR":
		rate, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || rate <= 0 {
			s.logger().Warn("simulator: bad stream rate", "arg", arg)
			return true
		}
		ss.mu.Lock()
		ss.rate = rate
		ss.mu.Unlock()
	case "STREAM:STOP", "STR:STOP":
		ss.mu.Lock()
		ss.rate = 0
		ss.mu.Unlock()
	case "CONFIGURE:ADC:RANGE", "CONF:ADC:RANG", "CONF:ADC:RANGE":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err == nil {
			s.mu.Lock()
			s.adcRange = n
			s.mu.Unlock()
		}
	case "SYSTEM:REBOOT", "SYST:RE", "SYST:REBOOT":
		return false
	default:
		s.logger().Debug("simulator: unknown command", "command", line)
	}
	return true
}

func (ss *simSession) stream(ctx context.Context) {
	ticker := time.NewTicker(ss.sim.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ss.mu.Lock()
		rate := ss.rate
		ss.mu.Unlock()
		if rate == 0 {
			continue
		}

		n := min(max(int(float64(rate)*ss.sim.interval().Seconds()), 1), 1000)
		samples := make([]float64, n)
		now := time.Since(ss.t0).Seconds()
		for i := range samples {
			t := now + float64(i)/float64(rate)
			samples[i] = math.Sin(2 * math.Pi * t)
		}
		status := ss.status(samples)
		status.SampleRate = uint32(rate)
		if err := ss.send(status); err != nil {
			return
		}
	}
}

func (ss *simSession) status(samples []float64) *wire.DeviceStatus {
	return &wire.DeviceStatus{
		SerialNo:        ss.sim.SerialNo,
		FirmwareVersion: ss.sim.Firmware,
		IsPowerOn:       true,
		Samples:         samples,
		TimestampMicros: uint64(time.Since(ss.t0).Microseconds()),
	}
}

func (ss *simSession) send(status *wire.DeviceStatus) error {
	ss.wmu.Lock()
	defer ss.wmu.Unlock()
	_, err := ss.conn.Write(message.NewProto(status).Bytes())
	return err
}

func (s *Simulator) interval() time.Duration {
	if s.Interval <= 0 {
		return 200 * time.Millisecond
	}
	return s.Interval
}

func (s *Simulator) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// ADCRange returns the last configured ADC range.
func (s *Simulator) ADCRange() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adcRange
}

// DiscoveryReply describes the simulator as seen from the network.
func (s *Simulator) DiscoveryReply(port int) *wire.DiscoveryReply {
	return &wire.DiscoveryReply{
		Name:            s.Name,
		Port:            uint32(port),
		SerialNo:        s.SerialNo,
		FirmwareVersion: s.Firmware,
		IsPowerOn:       true,
	}
}

// RunSimulate serves a simulated device until ctx is cancelled.
func RunSimulate(ctx context.Context, env *Env, opts SimulateOptions, w io.Writer) error {
	if opts.Listen == "" {
		opts.Listen = ":" + strconv.Itoa(env.Config.Link.TCPPort)
	}
	sim := &Simulator{
		Name:     opts.Name,
		SerialNo: opts.SerialNo,
		Firmware: opts.Firmware,
		Interval: opts.ReportInterval,
		Logger:   env.Logger,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", opts.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	fmt.Fprintf(w, "Simulating %s (sn %s) on %s\n", sim.Name, sim.SerialNo, ln.Addr())

	var wg sync.WaitGroup
	defer wg.Wait()

	if opts.Discovery {
		cfg := env.Config.Discovery
		r := discovery.NewResponder(discovery.ResponderConfig{
			Port:   cfg.Port,
			Query:  cfg.Query,
			Reply:  func() *wire.DiscoveryReply { return sim.DiscoveryReply(port) },
			Logger: env.Logger,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.ListenAndServe(ctx); err != nil {
				env.Logger.Warn("discovery responder stopped", "error", err)
			}
		}()
	}

	if opts.MDNS {
		var adv discovery.Advertiser
		info := &device.Info{Name: sim.Name, SerialNo: sim.SerialNo, FirmwareVersion: sim.Firmware, IsPowerOn: true}
		if err := adv.Advertise(sim.Name, port, info); err != nil {
			env.Logger.Warn("mdns advertise failed", "error", err)
		} else {
			defer adv.Stop()
		}
	}

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		env.Logger.Info("simulator client connected", "remote", conn.RemoteAddr())
		wg.Add(1)
		go func() {
			defer wg.Done()
			sim.Serve(ctx, conn)
		}()
	}
}
