package message

import (
	"fmt"
	"strings"

	"github.com/fieldlink/fieldlink-go/pkg/wire"
)

// Terminator ends every SCPI command line.
const Terminator = "\r\n"

// Outbound is a message queued for writing to a device.
type Outbound interface {
	Bytes() []byte
}

// Command is an SCPI text command.
type Command struct {
	text string
}

// NewCommand builds a command. Any trailing line terminator in text is
// replaced by Terminator.
func NewCommand(text string) Command {
	return Command{text: strings.TrimRight(text, "\r\n")}
}

// Commandf builds a command from a format string.
func Commandf(format string, args ...any) Command {
	return NewCommand(fmt.Sprintf(format, args...))
}

// Text returns the command without its terminator.
func (c Command) Text() string { return c.text }

// Bytes returns the command line terminated with CRLF.
func (c Command) Bytes() []byte {
	return []byte(c.text + Terminator)
}

func (c Command) String() string { return c.text }

// Well-known device commands.

// Reboot restarts the device.
func Reboot() Command { return NewCommand("SYSTem:REboot") }

// QueryIdentity asks the device to identify itself.
func QueryIdentity() Command { return NewCommand("*IDN?") }

// ConfigureADCRange selects the ADC input range.
func ConfigureADCRange(rng int) Command { return Commandf("CONFigure:ADC:RANGe %d", rng) }

// StartStreaming starts sample streaming at rate samples per second.
func StartStreaming(rate int) Command { return Commandf("STReam:STARt %d", rate) }

// StopStreaming stops sample streaming.
func StopStreaming() Command { return NewCommand("STReam:STOP") }

// Raw is an opaque byte payload written as is.
type Raw struct {
	data []byte
}

// NewRaw copies data into a Raw message.
func NewRaw(data []byte) Raw {
	return Raw{data: append([]byte(nil), data...)}
}

// Bytes returns a copy of the payload.
func (r Raw) Bytes() []byte {
	return append([]byte(nil), r.data...)
}

// Proto is a structured message written with its varint length prefix.
type Proto struct {
	frame []byte
}

// NewProto encodes m once; later changes to m are not reflected.
func NewProto(m wire.Message) Proto {
	return Proto{frame: wire.MarshalDelimited(m)}
}

// Bytes returns a copy of the delimited frame.
func (p Proto) Bytes() []byte {
	return append([]byte(nil), p.frame...)
}

var (
	_ Outbound = Command{}
	_ Outbound = Raw{}
	_ Outbound = Proto{}
)
