package log

import (
	"strings"
	"time"
)

// MaxFrameCapture is the number of frame bytes kept in a FrameEvent.
const MaxFrameCapture = 4096

// Event is a protocol capture event. CBOR encoding uses integer keys.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the link (UUID). Empty for bootloader and
	// discovery events.
	ConnectionID string `cbor:"2,keyasint"`

	Direction Direction `cbor:"3,keyasint"`
	Layer     Layer     `cbor:"4,keyasint"`
	Category  Category  `cbor:"5,keyasint"`

	// Transport is the medium, e.g. "TCP", "SERIAL", "HID" or "UDP".
	Transport string `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address or port name.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// SerialNo is the device serial number when known.
	SerialNo string `cbor:"8,keyasint,omitempty"`

	// One of these is set.
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Bootloader  *BootloaderEvent  `cbor:"13,keyasint,omitempty"`
	Discovery   *DiscoveryEvent   `cbor:"14,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"15,keyasint,omitempty"`
}

// Direction of data flow relative to the host.
type Direction uint8

const (
	DirectionIn  Direction = 0
	DirectionOut Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// ParseDirection parses the String form, case-insensitively.
func ParseDirection(s string) (Direction, bool) {
	switch {
	case strings.EqualFold(s, "IN"):
		return DirectionIn, true
	case strings.EqualFold(s, "OUT"):
		return DirectionOut, true
	}
	return 0, false
}

// Layer is the component that captured the event.
type Layer uint8

const (
	// LayerTransport is raw stream bytes.
	LayerTransport Layer = 0
	// LayerMessage is decoded link messages.
	LayerMessage Layer = 1
	// LayerBootloader is the HID bootloader session.
	LayerBootloader Layer = 2
	// LayerDiscovery is UDP, mDNS and USB discovery.
	LayerDiscovery Layer = 3
)

func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerMessage:
		return "MESSAGE"
	case LayerBootloader:
		return "BOOTLOADER"
	case LayerDiscovery:
		return "DISCOVERY"
	default:
		return "UNKNOWN"
	}
}

// ParseLayer parses the String form, case-insensitively.
func ParseLayer(s string) (Layer, bool) {
	for l := LayerTransport; l <= LayerDiscovery; l++ {
		if strings.EqualFold(l.String(), s) {
			return l, true
		}
	}
	return 0, false
}

// Category classifies the event.
type Category uint8

const (
	CategoryMessage Category = 0
	CategoryCommand Category = 1
	CategoryState   Category = 2
	CategoryError   Category = 3
)

func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryCommand:
		return "COMMAND"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses the String form, case-insensitively.
func ParseCategory(s string) (Category, bool) {
	for c := CategoryMessage; c <= CategoryError; c++ {
		if strings.EqualFold(c.String(), s) {
			return c, true
		}
	}
	return 0, false
}

// FrameEvent is raw stream data.
type FrameEvent struct {
	// Size is the full frame size.
	Size int `cbor:"1,keyasint"`

	// Data holds at most MaxFrameCapture bytes.
	Data []byte `cbor:"2,keyasint,omitempty"`

	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// CaptureFrame copies data into a FrameEvent, truncating it to
// MaxFrameCapture bytes.
func CaptureFrame(data []byte) *FrameEvent {
	fe := &FrameEvent{Size: len(data)}
	if len(data) > MaxFrameCapture {
		data = data[:MaxFrameCapture]
		fe.Truncated = true
	}
	fe.Data = append([]byte(nil), data...)
	return fe
}

// MessageEvent is a decoded link message.
type MessageEvent struct {
	// Kind is PROTOBUF, TEXT, BINARY or COMMAND.
	Kind string `cbor:"1,keyasint"`

	Size int `cbor:"2,keyasint"`

	// Text is the SCPI line for text messages and commands.
	Text string `cbor:"3,keyasint,omitempty"`

	// Fields holds a summary of decoded structured fields.
	Fields map[string]any `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent is a lifecycle transition.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity is what changed state.
type StateEntity uint8

const (
	StateEntityLink       StateEntity = 0
	StateEntityBootloader StateEntity = 1
	StateEntitySupervisor StateEntity = 2
)

func (s StateEntity) String() string {
	switch s {
	case StateEntityLink:
		return "LINK"
	case StateEntityBootloader:
		return "BOOTLOADER"
	case StateEntitySupervisor:
		return "SUPERVISOR"
	default:
		return "UNKNOWN"
	}
}

// BootloaderEvent is one bootloader command exchange.
type BootloaderEvent struct {
	Command     uint8  `cbor:"1,keyasint"`
	CommandName string `cbor:"2,keyasint"`

	// Record and Total locate ProgramFlash commands within the image.
	Record int `cbor:"3,keyasint,omitempty"`
	Total  int `cbor:"4,keyasint,omitempty"`

	// Result is a short outcome, e.g. "ack", "v1.4" or "crc=0x1A2B".
	Result string `cbor:"5,keyasint,omitempty"`
}

// DiscoveryEvent is a device seen by discovery.
type DiscoveryEvent struct {
	// Source is "UDP", "MDNS" or "USB".
	Source          string `cbor:"1,keyasint"`
	Name            string `cbor:"2,keyasint,omitempty"`
	Address         string `cbor:"3,keyasint,omitempty"`
	FirmwareVersion string `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData is a failure at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Context names the operation that failed.
	Context string `cbor:"3,keyasint,omitempty"`
}
