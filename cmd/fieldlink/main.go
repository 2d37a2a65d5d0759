// Command fieldlink finds, talks to and updates fieldlink measurement
// devices.
//
// Usage:
//
//	fieldlink <command> [flags] [args]
//
// Commands:
//
//	discover   Find devices over UDP broadcast, mDNS and USB
//	term       Interactive SCPI console on a device
//	monitor    Print everything a device sends, reconnecting on loss
//	flash      Program an Intel HEX image through the HID bootloader
//	simulate   Run a simulated device
//	log        View and analyze protocol capture files
//	config     Print the effective configuration
//
// Examples:
//
//	# Look for devices for five seconds
//	fieldlink discover -timeout 5s
//
//	# Stream status reports at 1 kHz and capture the session
//	fieldlink monitor -rate 1000 -protocol-log bench.flog 192.168.1.20
//
//	# Open a console on a USB serial port in text mode
//	fieldlink term -mode text /dev/ttyACM0
//
//	# Flash an image without erasing first
//	fieldlink flash -erase=false app.hex
//
//	# Show only bootloader events of a capture
//	fieldlink log view -layer bootloader bench.flog
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fieldlink/fieldlink-go/cmd/fieldlink/commands"
	"github.com/fieldlink/fieldlink-go/pkg/transport"
)

const usage = `fieldlink - device discovery, console and firmware tool

Usage:
  fieldlink <command> [flags] [args]

Commands:
  discover   Find devices over UDP broadcast, mDNS and USB
  term       Interactive SCPI console on a device
  monitor    Print everything a device sends, reconnecting on loss
  flash      Program an Intel HEX image through the HID bootloader
  simulate   Run a simulated device
  log        View and analyze protocol capture files
  config     Print the effective configuration

Use "fieldlink <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "discover":
		err = runDiscover(ctx, args)
	case "term":
		err = runTerm(ctx, args)
	case "monitor":
		err = runMonitor(ctx, args)
	case "flash":
		err = runFlash(ctx, args)
	case "simulate":
		err = runSimulate(ctx, args)
	case "log":
		err = runLog(args)
	case "config":
		err = runConfig(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags are accepted by every command that talks to devices.
type commonFlags struct {
	config      *string
	logLevel    *string
	protocolLog *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		config:      fs.String("config", "", "Configuration file (YAML)"),
		logLevel:    fs.String("log-level", "", "Log level: debug, info, warn, error"),
		protocolLog: fs.String("protocol-log", "", "Capture protocol events to this file"),
	}
}

func (c *commonFlags) env() (*commands.Env, error) {
	return commands.NewEnv(*c.config, *c.logLevel, *c.protocolLog, os.Stderr)
}

func newFlagSet(name, synopsis, usageLine string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "fieldlink %s - %s\n\nUsage:\n  %s\n\nFlags:\n", name, synopsis, usageLine)
		fs.PrintDefaults()
	}
	return fs
}

// requireArg returns the single positional argument or prints usage.
func requireArg(fs *flag.FlagSet, what string) string {
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: %s required\n", what)
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func linkMode(flagValue string, env *commands.Env) (transport.Mode, error) {
	if flagValue == "" {
		flagValue = env.Config.Link.Mode
	}
	return transport.ParseMode(flagValue)
}

func runDiscover(ctx context.Context, args []string) error {
	fs := newFlagSet("discover", "Find devices", "fieldlink discover [flags]")
	common := addCommonFlags(fs)
	timeout := fs.Duration("timeout", 3*time.Second, "How long to listen for replies")
	udp := fs.Bool("udp", true, "Search with UDP broadcast")
	mdns := fs.Bool("mdns", false, "Browse mDNS (default from discovery.mdns)")
	usb := fs.Bool("usb", true, "List USB serial ports")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := common.env()
	if err != nil {
		return err
	}
	defer env.Close()

	opts := commands.DiscoverOptions{
		Timeout: *timeout,
		UDP:     *udp,
		MDNS:    *mdns || env.Config.Discovery.MDNS,
		USB:     *usb,
	}
	return commands.RunDiscover(ctx, env, opts, os.Stdout)
}

func runTerm(ctx context.Context, args []string) error {
	fs := newFlagSet("term", "Interactive SCPI console", "fieldlink term [flags] <target>")
	common := addCommonFlags(fs)
	mode := fs.String("mode", "", "Link mode: protobuf, text, binary (default from link.mode)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	target := requireArg(fs, "target")

	env, err := common.env()
	if err != nil {
		return err
	}
	defer env.Close()

	m, err := linkMode(*mode, env)
	if err != nil {
		return err
	}
	return commands.RunTerm(ctx, env, commands.TermOptions{Target: target, Mode: m})
}

func runMonitor(ctx context.Context, args []string) error {
	fs := newFlagSet("monitor", "Print device output", "fieldlink monitor [flags] <target>")
	common := addCommonFlags(fs)
	mode := fs.String("mode", "", "Link mode: protobuf, text, binary (default from link.mode)")
	rate := fs.Int("rate", 0, "Start streaming at this sample rate (Hz) on every connect")
	if err := fs.Parse(args); err != nil {
		return err
	}
	target := requireArg(fs, "target")

	env, err := common.env()
	if err != nil {
		return err
	}
	defer env.Close()

	m, err := linkMode(*mode, env)
	if err != nil {
		return err
	}
	return commands.RunMonitor(ctx, env, commands.MonitorOptions{Target: target, Mode: m, Rate: *rate}, os.Stdout)
}

func runFlash(ctx context.Context, args []string) error {
	fs := newFlagSet("flash", "Program a firmware image", "fieldlink flash [flags] <image.hex>")
	common := addCommonFlags(fs)
	dryRun := fs.Bool("dry-run", false, "Load and summarize the image only")
	quiet := fs.Bool("quiet", false, "Hide the progress bar")
	var erase *bool
	fs.BoolFunc("erase", "Erase flash before programming (default from bootloader.erase_before_flash)", func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		erase = &v
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return err
	}
	image := requireArg(fs, "image path")

	env, err := common.env()
	if err != nil {
		return err
	}
	defer env.Close()

	return commands.RunFlash(ctx, env, commands.FlashOptions{
		Image:  image,
		DryRun: *dryRun,
		Erase:  erase,
		Quiet:  *quiet,
	}, os.Stdout)
}

func runSimulate(ctx context.Context, args []string) error {
	fs := newFlagSet("simulate", "Run a simulated device", "fieldlink simulate [flags]")
	common := addCommonFlags(fs)
	listen := fs.String("listen", "", "TCP listen address (default :link.tcp_port)")
	name := fs.String("name", "fieldlink-sim", "Device name")
	serial := fs.String("serial", "SIM-0001", "Serial number")
	firmware := fs.String("firmware", "1.0.0", "Firmware version")
	interval := fs.Duration("interval", 200*time.Millisecond, "Status report interval while streaming")
	discovery := fs.Bool("discovery", true, "Answer UDP discovery queries")
	mdns := fs.Bool("mdns", false, "Advertise over mDNS")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := common.env()
	if err != nil {
		return err
	}
	defer env.Close()

	return commands.RunSimulate(ctx, env, commands.SimulateOptions{
		Listen:         *listen,
		Name:           *name,
		SerialNo:       *serial,
		Firmware:       *firmware,
		ReportInterval: *interval,
		Discovery:      *discovery,
		MDNS:           *mdns,
	}, os.Stdout)
}

func runConfig(args []string) error {
	fs := newFlagSet("config", "Print the effective configuration", "fieldlink config [flags]")
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := common.env()
	if err != nil {
		return err
	}
	defer env.Close()

	data, err := env.Config.Marshal()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
