package bootloader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fieldlink/fieldlink-go/pkg/bootproto"
	"github.com/fieldlink/fieldlink-go/pkg/hid"
	plog "github.com/fieldlink/fieldlink-go/pkg/log"
)

// Session runs bootloader commands against one device.
type Session struct {
	dev        hid.ReportDevice
	config     Config
	logger     *slog.Logger
	capture    plog.Logger
	reportSize int

	// opMu serializes commands; the device buffers a single report.
	opMu sync.Mutex

	mu         sync.Mutex
	state      State
	version    bootproto.Version
	hasVersion bool
}

// New creates a session over dev.
func New(dev hid.ReportDevice, opts ...Option) *Session {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Session{
		dev:        dev,
		config:     cfg,
		logger:     cfg.Logger,
		capture:    plog.OrNoop(cfg.ProtocolLogger),
		reportSize: cfg.ReportSize,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.reportSize == 0 {
		s.reportSize = dev.ReportSize()
	}
	if s.reportSize <= 0 {
		s.reportSize = bootproto.DefaultReportSize
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Version returns the version read by the last successful RequestVersion.
func (s *Session) Version() (bootproto.Version, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, s.hasVersion
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	if prev == next {
		return
	}
	s.logger.Debug("bootloader state", "from", prev, "to", next)
	s.capture.Log(plog.Event{
		Timestamp: time.Now(),
		Layer:     plog.LayerBootloader,
		Category:  plog.CategoryState,
		Transport: "HID",
		StateChange: &plog.StateChangeEvent{
			Entity:   plog.StateEntityBootloader,
			OldState: prev.String(),
			NewState: next.String(),
		},
	})
	if s.config.StateChanged != nil {
		s.config.StateChanged(prev, next)
	}
}

// RequestVersion asks the bootloader for its version.
func (s *Session) RequestVersion(ctx context.Context) (bootproto.Version, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	f, err := s.exchange(ctx, bootproto.NewRequestVersion(), false)
	if err != nil {
		return bootproto.Version{}, fmt.Errorf("request version: %w", err)
	}
	v, err := bootproto.DecodeVersion(f)
	if err != nil {
		return bootproto.Version{}, fmt.Errorf("request version: %w", err)
	}

	s.mu.Lock()
	s.version, s.hasVersion = v, true
	s.mu.Unlock()
	s.setState(StateVersionQueried)

	s.logger.Info("bootloader version", "version", v.String())
	return v, nil
}

// EraseFlash erases the application flash.
func (s *Session) EraseFlash(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.erase(ctx)
}

func (s *Session) erase(ctx context.Context) error {
	f, err := s.exchange(ctx, bootproto.NewEraseFlash(), false)
	if err != nil {
		return fmt.Errorf("erase flash: %w", err)
	}
	if err := bootproto.DecodeAck(f, bootproto.CmdEraseFlash); err != nil {
		return fmt.Errorf("erase flash: %w", err)
	}
	return nil
}

// ReadCRC asks the bootloader for the CRC of length bytes at address.
func (s *Session) ReadCRC(ctx context.Context, address, length uint32) (uint16, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	f, err := s.exchange(ctx, bootproto.NewReadCRC(address, length), false)
	if err != nil {
		return 0, fmt.Errorf("read crc: %w", err)
	}
	crc, err := bootproto.DecodeCRC(f)
	if err != nil {
		return 0, fmt.Errorf("read crc: %w", err)
	}
	return crc, nil
}

// LoadFirmware programs records in order and then jumps to the
// application. records are binary hex records as produced by
// hexfile.RawRecords.
//
// A failed write, read or acknowledgement aborts the update with a
// *FirmwareUpdateError and no jump is sent.
func (s *Session) LoadFirmware(ctx context.Context, records [][]byte) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.load(ctx, records)
}

func (s *Session) load(ctx context.Context, records [][]byte) error {
	total := len(records)
	s.setState(StateFlashing)
	start := time.Now()

	for i, rec := range records {
		s.report(Progress{Phase: PhaseProgramming, Current: i, Total: total, Percent: i * 100 / total})

		if err := s.program(ctx, i, total, rec); err != nil {
			s.setState(StateIdle)
			s.logger.Error("firmware update aborted", "record", i, "total", total, "error", err)
			return &FirmwareUpdateError{Index: i, Total: total, Cause: err}
		}
	}

	s.report(Progress{Phase: PhaseJumping, Current: total, Total: total, Percent: 100})
	if err := s.jump(ctx); err != nil {
		s.setState(StateIdle)
		return err
	}

	s.logger.Info("firmware update complete", "records", total, "elapsed", time.Since(start).String())
	s.report(Progress{Phase: PhaseComplete, Current: total, Total: total, Percent: 100})
	return nil
}

func (s *Session) program(ctx context.Context, i, total int, rec []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := bootproto.NewProgramFlash(rec)
	f, err := s.exchange(ctx, cmd, true)
	if err != nil {
		return err
	}
	if err := bootproto.DecodeAck(f, bootproto.CmdProgramFlash); err != nil {
		return err
	}

	s.capture.Log(plog.Event{
		Timestamp:  time.Now(),
		Layer:      plog.LayerBootloader,
		Category:   plog.CategoryCommand,
		Transport:  "HID",
		Bootloader: &plog.BootloaderEvent{Command: cmd.Code, CommandName: cmd.Name(), Record: i + 1, Total: total, Result: "ack"},
	})
	return nil
}

// JumpToApplication leaves the bootloader. The device resets without
// answering, so only the write is performed.
func (s *Session) JumpToApplication(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.jump(ctx)
}

func (s *Session) jump(ctx context.Context) error {
	if _, err := s.exchange(ctx, bootproto.NewJumpToApplication(), false); err != nil {
		return fmt.Errorf("jump to application: %w", err)
	}
	s.setState(StateJumpSent)

	// The bootloader is gone; a new session starts from scratch.
	s.mu.Lock()
	s.hasVersion = false
	s.mu.Unlock()
	s.setState(StateIdle)
	return nil
}

// Flash runs a complete update: version query, optional erase, then
// LoadFirmware.
func (s *Session) Flash(ctx context.Context, records [][]byte) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.report(Progress{Phase: PhaseVersion, Total: len(records)})
	f, err := s.exchange(ctx, bootproto.NewRequestVersion(), false)
	if err != nil {
		return fmt.Errorf("request version: %w", err)
	}
	v, err := bootproto.DecodeVersion(f)
	if err != nil {
		return fmt.Errorf("request version: %w", err)
	}
	s.mu.Lock()
	s.version, s.hasVersion = v, true
	s.mu.Unlock()
	s.setState(StateVersionQueried)
	s.logger.Info("bootloader version", "version", v.String(), "records", len(records))

	if s.config.EraseBeforeFlash {
		s.report(Progress{Phase: PhaseErasing, Total: len(records)})
		if err := s.erase(ctx); err != nil {
			s.setState(StateIdle)
			return err
		}
	} else {
		s.logger.Debug("erase before flash disabled")
	}

	return s.load(ctx, records)
}

// exchange writes one command report and, when the command has a response,
// reads and decodes one report.
func (s *Session) exchange(ctx context.Context, cmd bootproto.Command, fast bool) (bootproto.Frame, error) {
	report, err := cmd.Report(s.reportSize)
	if err != nil {
		return bootproto.Frame{}, fmt.Errorf("%s: %w", cmd.Name(), err)
	}

	s.captureFrame(plog.DirectionOut, report)
	if err := s.dev.WriteReport(ctx, report); err != nil {
		return bootproto.Frame{}, err
	}
	if !cmd.ExpectsResponse() {
		return bootproto.Frame{}, nil
	}

	var resp []byte
	if fast {
		resp, err = s.dev.FastReadReport(ctx)
	} else {
		resp, err = s.dev.ReadReport(ctx)
	}
	if err != nil {
		return bootproto.Frame{}, err
	}
	s.captureFrame(plog.DirectionIn, resp)

	f, err := bootproto.Decode(resp)
	if err != nil {
		s.logger.Warn("bad bootloader response", "command", cmd.Name(), "error", err)
		return bootproto.Frame{}, err
	}
	return f, nil
}

func (s *Session) captureFrame(dir plog.Direction, data []byte) {
	s.capture.Log(plog.Event{
		Timestamp: time.Now(),
		Direction: dir,
		Layer:     plog.LayerTransport,
		Category:  plog.CategoryMessage,
		Transport: "HID",
		Frame:     plog.CaptureFrame(data),
	})
}

func (s *Session) report(p Progress) {
	if s.config.Progress != nil {
		s.config.Progress(p)
	}
}
