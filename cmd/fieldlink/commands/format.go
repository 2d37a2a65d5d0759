package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fieldlink/fieldlink-go/pkg/message"
	"github.com/fieldlink/fieldlink-go/pkg/wire"
)

// FormatStatus renders a status report on one line.
func FormatStatus(s *wire.DeviceStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s fw=%s power=%t rate=%dHz", dash(s.SerialNo), dash(s.FirmwareVersion), s.IsPowerOn, s.SampleRate)
	if n := len(s.Samples); n > 0 {
		lo, hi, sum := math.Inf(1), math.Inf(-1), 0.0
		for _, v := range s.Samples {
			lo, hi, sum = math.Min(lo, v), math.Max(hi, v), sum+v
		}
		fmt.Fprintf(&b, " n=%d min=%.4g max=%.4g mean=%.4g", n, lo, hi, sum/float64(n))
	}
	return b.String()
}

// printInbound writes a received message for a human.
func printInbound(w io.Writer, msg message.Inbound) {
	ts := msg.ReceivedAt.Format("15:04:05.000")
	switch msg.Kind {
	case message.KindProtobuf:
		if msg.Status != nil {
			fmt.Fprintf(w, "%s < %s\n", ts, FormatStatus(msg.Status))
		}
	case message.KindText:
		for _, line := range strings.Split(strings.TrimRight(msg.Text, "\r\n"), "\n") {
			fmt.Fprintf(w, "%s < %s\n", ts, strings.TrimRight(line, "\r"))
		}
	case message.KindBinary:
		fmt.Fprintf(w, "%s < %d bytes\n%s", ts, len(msg.Data), hex.Dump(msg.Data))
	}
}
