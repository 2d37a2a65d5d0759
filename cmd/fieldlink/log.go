package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fieldlink/fieldlink-go/cmd/fieldlink/commands"
)

const logUsage = `fieldlink log - Protocol capture analyzer

Usage:
  fieldlink log <command> [flags] <file.flog>

Commands:
  view     View capture in human-readable format
  export   Export capture to JSONL or CSV
  filter   Filter capture and write to new file
  stats    Show statistics about the capture
`

func runLog(args []string) error {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, logUsage)
		os.Exit(1)
	}

	switch args[0] {
	case "view":
		return runLogView(args[1:])
	case "export":
		return runLogExport(args[1:])
	case "filter":
		return runLogFilter(args[1:])
	case "stats":
		return runLogStats(args[1:])
	case "-h", "-help", "--help", "help":
		fmt.Print(logUsage)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown log command: %s\n", args[0])
		fmt.Fprint(os.Stderr, logUsage)
		os.Exit(1)
	}
	return nil
}

func addFilterFlags(fs *flag.FlagSet) *commands.FilterOptions {
	var o commands.FilterOptions
	fs.StringVar(&o.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&o.SerialNo, "serial", "", "Filter by device serial number")
	fs.StringVar(&o.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&o.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&o.Layer, "layer", "", "Filter by layer (transport, message, bootloader, discovery)")
	fs.StringVar(&o.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&o.Category, "category", "", "Filter by category (message, command, state, error)")
	return &o
}

func runLogView(args []string) error {
	fs := newFlagSet("log view", "View capture in human-readable format", "fieldlink log view [flags] <file.flog>")
	opts := addFilterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := requireArg(fs, "log file path")

	filter, err := opts.Build()
	if err != nil {
		return err
	}
	return commands.RunView(path, filter, os.Stdout)
}

func runLogExport(args []string) error {
	fs := newFlagSet("log export", "Export capture to JSONL or CSV", "fieldlink log export [flags] <file.flog>")
	opts := addFilterFlags(fs)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := requireArg(fs, "log file path")

	filter, err := opts.Build()
	if err != nil {
		return err
	}
	return commands.RunExport(path, *format, *output, filter)
}

func runLogFilter(args []string) error {
	fs := newFlagSet("log filter", "Filter capture and write to new file", "fieldlink log filter [flags] -o <out.flog> <file.flog>")
	opts := addFilterFlags(fs)
	output := fs.String("o", "", "Output file (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := requireArg(fs, "log file path")
	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	filter, err := opts.Build()
	if err != nil {
		return err
	}
	n, err := commands.RunFilter(path, *output, filter)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d events to %s\n", n, *output)
	return nil
}

func runLogStats(args []string) error {
	fs := newFlagSet("log stats", "Show statistics about the capture", "fieldlink log stats <file.flog>")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return commands.RunStats(requireArg(fs, "log file path"), os.Stdout)
}
