package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldlink/fieldlink-go/pkg/message"
)

func TestParseConsoleLine(t *testing.T) {
	tests := []struct {
		line string
		want []byte
	}{
		{"*IDN?", []byte("*IDN?\r\n")},
		{"  MEAS:VOLT?  ", []byte("MEAS:VOLT?\r\n")},
		{":idn", []byte("*IDN?\r\n")},
		{":start 1000", []byte("STReam:STARt 1000\r\n")},
		{":STOP", []byte("STReam:STOP\r\n")},
		{":range 3", []byte("CONFigure:ADC:RANGe 3\r\n")},
		{":reboot", []byte("SYSTem:REboot\r\n")},
		{":hex 01 02 ff", []byte{0x01, 0x02, 0xFF}},
		{":hex 0a0b", []byte{0x0A, 0x0B}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			msg, err := ParseConsoleLine(tt.line)
			require.NoError(t, err)
			require.NotNil(t, msg)
			assert.Equal(t, tt.want, msg.Bytes())
		})
	}
}

func TestParseConsoleLineSpecial(t *testing.T) {
	msg, err := ParseConsoleLine("   ")
	assert.NoError(t, err)
	assert.Nil(t, msg)

	for _, q := range []string{":q", ":quit", ":exit"} {
		_, err := ParseConsoleLine(q)
		assert.ErrorIs(t, err, ErrQuit, q)
	}

	msg, err = ParseConsoleLine(":hex 01")
	require.NoError(t, err)
	assert.IsType(t, message.Raw{}, msg)
}

func TestParseConsoleLineErrors(t *testing.T) {
	for _, line := range []string{
		":",
		":start",
		":start fast",
		":range 1 2",
		":hex",
		":hex zz",
		":frobnicate",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := ParseConsoleLine(line)
			assert.Error(t, err)
			assert.NotErrorIs(t, err, ErrQuit)
		})
	}
}
