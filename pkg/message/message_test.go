package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldlink/fieldlink-go/pkg/wire"
)

func TestCommandBytes(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"reboot", Reboot(), "SYSTem:REboot\r\n"},
		{"adc range", ConfigureADCRange(10), "CONFigure:ADC:RANGe 10\r\n"},
		{"identity", QueryIdentity(), "*IDN?\r\n"},
		{"start", StartStreaming(1000), "STReam:STARt 1000\r\n"},
		{"stop", StopStreaming(), "STReam:STOP\r\n"},
		{"terminator normalized", NewCommand("MEAS?\n"), "MEAS?\r\n"},
		{"crlf kept single", NewCommand("MEAS?\r\n"), "MEAS?\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(tt.cmd.Bytes()); got != tt.want {
				t.Errorf("Bytes() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRawIsImmutable(t *testing.T) {
	src := []byte{1, 2, 3}
	r := NewRaw(src)
	src[0] = 9

	out := r.Bytes()
	assert.Equal(t, []byte{1, 2, 3}, out)

	out[1] = 9
	assert.Equal(t, []byte{1, 2, 3}, r.Bytes())
}

func TestProtoBytes(t *testing.T) {
	status := &wire.DeviceStatus{SerialNo: "SN1", SampleRate: 100}
	p := NewProto(status)
	status.SerialNo = "changed"

	payload, n, err := wire.ReadDelimited(p.Bytes())
	require.NoError(t, err)
	assert.Equal(t, len(p.Bytes()), n)

	var got wire.DeviceStatus
	require.NoError(t, got.Unmarshal(payload))
	assert.Equal(t, "SN1", got.SerialNo)
}

func TestInbound(t *testing.T) {
	at := time.Unix(1700000000, 0)

	text := NewText("OK", at)
	assert.Equal(t, KindText, text.Kind)
	assert.Equal(t, 2, text.Size())
	assert.Equal(t, at, text.ReceivedAt)

	bin := NewBinary([]byte{1, 2, 3}, at)
	assert.Equal(t, KindBinary, bin.Kind)
	assert.Equal(t, 3, bin.Size())

	st := NewStatus(&wire.DeviceStatus{SerialNo: "A"}, at)
	assert.Equal(t, KindProtobuf, st.Kind)
	assert.Positive(t, st.Size())

	assert.Equal(t, "TEXT", KindText.String())
	assert.Equal(t, "UNKNOWN", Kind(0).String())
}
