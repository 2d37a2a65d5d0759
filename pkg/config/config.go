// Package config loads the fieldlink YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration. Missing fields keep their
// defaults.
type Config struct {
	Discovery  Discovery  `yaml:"discovery"`
	Link       Link       `yaml:"link"`
	Bootloader Bootloader `yaml:"bootloader"`
	Logging    Logging    `yaml:"logging"`
}

// Discovery configures UDP, mDNS and USB discovery.
type Discovery struct {
	Port     int           `yaml:"port"`
	Interval time.Duration `yaml:"interval"`
	Query    string        `yaml:"query"`
	MDNS     bool          `yaml:"mdns"`
	USBVID   string        `yaml:"usb_vid"`
	USBPID   string        `yaml:"usb_pid"`
}

// Link configures streams and their producer and consumer.
type Link struct {
	TCPPort      int           `yaml:"tcp_port"`
	SerialBaud   int           `yaml:"serial_baud"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Debounce     time.Duration `yaml:"debounce"`
	StopTimeout  time.Duration `yaml:"stop_timeout"`
	Mode         string        `yaml:"mode"`
}

// Bootloader configures the HID bootloader.
type Bootloader struct {
	VID              uint16        `yaml:"vid"`
	PID              uint16        `yaml:"pid"`
	ReportSize       int           `yaml:"report_size"`
	ProtectedBegin   uint32        `yaml:"protected_begin"`
	ProtectedEnd     uint32        `yaml:"protected_end"`
	EraseBeforeFlash bool          `yaml:"erase_before_flash"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
}

// Protected reports whether a protected range is configured.
func (b Bootloader) Protected() bool {
	return b.ProtectedBegin != 0 || b.ProtectedEnd != 0
}

// Logging configures operational logs and protocol capture.
type Logging struct {
	Level       string `yaml:"level"`
	ProtocolLog string `yaml:"protocol_log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Discovery: Discovery{
			Port:     30303,
			Interval: time.Second,
			Query:    "FIELDLINK_DISCOVER",
		},
		Link: Link{
			TCPPort:      9760,
			SerialBaud:   115200,
			PollInterval: 100 * time.Millisecond,
			Debounce:     500 * time.Millisecond,
			StopTimeout:  time.Second,
			Mode:         "protobuf",
		},
		Bootloader: Bootloader{
			VID:         0x04D8,
			PID:         0x003C,
			ReportSize:  64,
			ReadTimeout: 2 * time.Second,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the file at path. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Discovery.Port > 0 && c.Discovery.Port <= 0xFFFF, "discovery.port %d out of range", c.Discovery.Port)
	check(c.Discovery.Interval > 0, "discovery.interval must be positive")
	check(strings.TrimSpace(c.Discovery.Query) != "", "discovery.query is empty")

	check(c.Link.TCPPort > 0 && c.Link.TCPPort <= 0xFFFF, "link.tcp_port %d out of range", c.Link.TCPPort)
	check(c.Link.SerialBaud > 0, "link.serial_baud must be positive")
	check(c.Link.PollInterval > 0, "link.poll_interval must be positive")
	check(c.Link.Debounce > 0, "link.debounce must be positive")
	check(c.Link.StopTimeout > 0, "link.stop_timeout must be positive")
	switch strings.ToLower(c.Link.Mode) {
	case "protobuf", "proto", "text", "scpi", "binary", "raw":
	default:
		check(false, "link.mode %q unknown", c.Link.Mode)
	}

	check(c.Bootloader.ReportSize >= 8, "bootloader.report_size %d below 8", c.Bootloader.ReportSize)
	check(c.Bootloader.ReadTimeout > 0, "bootloader.read_timeout must be positive")
	check(c.Bootloader.ProtectedBegin <= c.Bootloader.ProtectedEnd,
		"bootloader protected range %#x-%#x is inverted", c.Bootloader.ProtectedBegin, c.Bootloader.ProtectedEnd)

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		check(false, "logging.level %q unknown", c.Logging.Level)
	}

	return errors.Join(errs...)
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
