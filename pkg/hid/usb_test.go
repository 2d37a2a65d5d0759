package hid

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 2*time.Second, o.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, o.FastReadTimeout)

	o = Options{ReadTimeout: time.Second, FastReadTimeout: 10 * time.Millisecond}.withDefaults()
	assert.Equal(t, time.Second, o.ReadTimeout)
	assert.Equal(t, 10*time.Millisecond, o.FastReadTimeout)
}

func TestClosedDevice(t *testing.T) {
	d := &USBDevice{size: DefaultReportSize}
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())

	assert.ErrorIs(t, d.WriteReport(context.Background(), make([]byte, DefaultReportSize)), ErrClosed)
	_, err := d.ReadReport(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = d.FastReadReport(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
