package message

import (
	"time"

	"github.com/fieldlink/fieldlink-go/pkg/wire"
)

// Kind identifies which payload an Inbound message carries.
type Kind uint8

const (
	KindProtobuf Kind = iota + 1
	KindText
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindProtobuf:
		return "PROTOBUF"
	case KindText:
		return "TEXT"
	case KindBinary:
		return "BINARY"
	default:
		return "UNKNOWN"
	}
}

// Inbound is a message decoded from a device stream. Exactly one of Status,
// Text and Data is meaningful, selected by Kind.
type Inbound struct {
	Kind       Kind
	Status     *wire.DeviceStatus
	Text       string
	Data       []byte
	ReceivedAt time.Time
}

// NewStatus wraps a decoded status message.
func NewStatus(s *wire.DeviceStatus, at time.Time) Inbound {
	return Inbound{Kind: KindProtobuf, Status: s, ReceivedAt: at}
}

// NewText wraps a text response.
func NewText(text string, at time.Time) Inbound {
	return Inbound{Kind: KindText, Text: text, ReceivedAt: at}
}

// NewBinary wraps a raw buffer. The buffer is not copied.
func NewBinary(data []byte, at time.Time) Inbound {
	return Inbound{Kind: KindBinary, Data: data, ReceivedAt: at}
}

// Size returns the payload size in bytes.
func (m Inbound) Size() int {
	switch m.Kind {
	case KindProtobuf:
		if m.Status == nil {
			return 0
		}
		return len(m.Status.Marshal())
	case KindText:
		return len(m.Text)
	default:
		return len(m.Data)
	}
}
