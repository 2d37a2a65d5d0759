package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/fieldlink/fieldlink-go/pkg/bootloader"
	"github.com/fieldlink/fieldlink-go/pkg/bootproto"
	"github.com/fieldlink/fieldlink-go/pkg/hexfile"
	"github.com/fieldlink/fieldlink-go/pkg/hid"
)

// FlashOptions configures the flash command.
type FlashOptions struct {
	Image string

	// DryRun loads and summarizes the image without opening the device.
	DryRun bool

	// Erase overrides bootloader.erase_before_flash when set.
	Erase *bool

	// Quiet hides the progress bar.
	Quiet bool
}

// RunFlash loads a hex image and programs it through the HID bootloader.
func RunFlash(ctx context.Context, env *Env, opts FlashOptions, w io.Writer) error {
	records, err := loadImage(env, opts.Image, w)
	if err != nil {
		return err
	}
	if opts.DryRun {
		return nil
	}

	bc := env.Config.Bootloader
	dev, err := hid.OpenUSB(bc.VID, bc.PID, hid.Options{
		ReportSize:  bc.ReportSize,
		ReadTimeout: bc.ReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("open bootloader %04x:%04x: %w", bc.VID, bc.PID, err)
	}
	defer dev.Close()

	erase := bc.EraseBeforeFlash
	if opts.Erase != nil {
		erase = *opts.Erase
	}
	return FlashDevice(ctx, env, dev, records, erase, opts.Quiet, w)
}

// loadImage summarizes the image with the memory parser, then loads its
// records with the protected range removed.
func loadImage(env *Env, path string, w io.Writer) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	summary, err := hexfile.Inspect(f)
	f.Close()
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(w, "Image: %s\n", path)
	for _, seg := range summary.Segments {
		fmt.Fprintf(w, "  0x%08X  %d bytes\n", seg.Address, seg.Size)
	}
	fmt.Fprintf(w, "  total %d bytes in %d segments\n", summary.TotalBytes, len(summary.Segments))
	if summary.HasStart {
		fmt.Fprintf(w, "  start address 0x%08X\n", summary.StartAddress)
	}

	protected := hexfile.NoProtection
	if bc := env.Config.Bootloader; bc.Protected() {
		protected = hexfile.Range{Begin: bc.ProtectedBegin, End: bc.ProtectedEnd}
		fmt.Fprintf(w, "  protected 0x%08X-0x%08X\n", protected.Begin, protected.End)
	}

	records, err := hexfile.LoadFile(path, protected)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "  %d records to program\n", len(records))
	return hexfile.RawRecords(records), nil
}

// FlashDevice programs records into dev and jumps to the application.
func FlashDevice(ctx context.Context, env *Env, dev hid.ReportDevice, records [][]byte, erase, quiet bool, w io.Writer) error {
	var bar *progressbar.ProgressBar
	if !quiet {
		bar = progressbar.NewOptions(len(records),
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Connecting"),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
		)
	}

	var (
		session *bootloader.Session
		version bootproto.Version
		found   bool
	)
	session = bootloader.New(dev,
		bootloader.WithLogger(env.Logger),
		bootloader.WithProtocolLogger(env.Protocol),
		bootloader.WithEraseBeforeFlash(erase),
		bootloader.WithReportSize(env.Config.Bootloader.ReportSize),
		bootloader.WithProgressCallback(func(p bootloader.Progress) {
			if bar == nil {
				return
			}
			switch p.Phase {
			case bootloader.PhaseProgramming:
				bar.Describe("Programming")
				_ = bar.Set(p.Current)
			case bootloader.PhaseComplete:
				_ = bar.Finish()
			default:
				bar.Describe(string(p.Phase))
			}
		}),
		// The jump at the end clears the session's version.
		bootloader.WithStateCallback(func(_, next bootloader.State) {
			if next == bootloader.StateVersionQueried {
				version, found = session.Version()
			}
		}),
	)

	start := time.Now()
	if err := session.Flash(ctx, records); err != nil {
		if bar != nil {
			_ = bar.Exit()
			fmt.Fprintln(w)
		}
		if !found {
			return fmt.Errorf("bootloader not responding: %w", err)
		}
		return err
	}

	fmt.Fprintf(w, "Bootloader %s: programmed %d records in %s, application started\n", version, len(records), fmtDuration(time.Since(start)))
	return nil
}
